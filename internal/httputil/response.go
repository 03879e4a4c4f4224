package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes data as JSON. The payload is marshaled before any
// header is written so an encoding failure still yields a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail is an RFC 9457 problem document. Extra members are
// flattened into the top-level object.
type ProblemDetail struct {
	Type   string
	Title  string
	Status int
	Detail string
	Extra  map[string]any
}

func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	return json.Marshal(m)
}

// RespondError writes a problem document without extra members.
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes a problem document. Reserved members
// (type, title, status, detail) cannot be overridden by extras.
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// problemTypes points each status the API emits at its RFC 9110 section.
var problemTypes = map[int]string{
	http.StatusBadRequest:          "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.1",
	http.StatusUnauthorized:        "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.2",
	http.StatusForbidden:           "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.4",
	http.StatusNotFound:            "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.5",
	http.StatusConflict:            "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.10",
	http.StatusInternalServerError: "https://www.rfc-editor.org/rfc/rfc9110#section-15.6.1",
	http.StatusServiceUnavailable:  "https://www.rfc-editor.org/rfc/rfc9110#section-15.6.4",
}

func problemType(status int) string {
	if t, ok := problemTypes[status]; ok {
		return t
	}
	return "about:blank"
}
