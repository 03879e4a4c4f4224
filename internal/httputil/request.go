package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes bounds a request body. Bodies carry metadata only; file
// content never passes through this API.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON object from the request body into dest.
// Unknown fields are rejected so a misspelled attribute is not silently
// dropped.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}
