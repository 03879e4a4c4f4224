package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"infostore/internal/config"
	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	svc "infostore/internal/domain/services/infostore"
	"infostore/internal/httputil"
)

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	docService svc.DocumentService
	logger     *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService svc.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// Register mounts the document routes on mux.
func (h *DocumentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/folders/{id}/documents", h.ListFolder)

	mux.HandleFunc("POST /api/documents", h.CreateDocument)
	mux.HandleFunc("GET /api/documents/{id}", h.GetDocument)
	mux.HandleFunc("PATCH /api/documents/{id}", h.UpdateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", h.DeleteDocument)

	mux.HandleFunc("POST /api/documents/{id}/versions", h.AddVersion)
	mux.HandleFunc("GET /api/documents/{id}/versions", h.ListVersions)
	mux.HandleFunc("DELETE /api/documents/{id}/versions", h.DeleteVersions)
}

// DeleteVersionsRequest names the historical versions to remove.
type DeleteVersionsRequest struct {
	LastModified int64 `json:"last_modified"`
	Versions     []int `json:"versions"`
}

// caller resolves the authenticated caller or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	c, ok := httputil.GetCaller(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return c, ok
}

// CreateDocument creates a new document with its first version
// POST /api/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	var req svc.CreateDocumentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ContextID = c.ContextID

	doc, err := h.docService.CreateDocument(r.Context(), c, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// GetDocument retrieves a document
// GET /api/documents/{id}?version=n
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}
	version, err := queryInt(r, "version", 0)
	if err != nil {
		handleError(w, err)
		return
	}

	doc, err := h.docService.GetDocument(r.Context(), c, svc.DocumentRef{ContextID: c.ContextID, ID: id}, version)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// UpdateDocument changes document metadata
// PATCH /api/documents/{id}
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}

	var req svc.UpdateDocumentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docService.UpdateDocument(r.Context(), c, svc.DocumentRef{ContextID: c.ContextID, ID: id}, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// DeleteDocument deletes a document and all of its versions
// DELETE /api/documents/{id}?last_modified=ms
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}
	observed, err := queryInt64(r, "last_modified")
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.docService.DeleteDocument(r.Context(), c, svc.DocumentRef{ContextID: c.ContextID, ID: id}, observed); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddVersion uploads a new current version
// POST /api/documents/{id}/versions
func (h *DocumentHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}

	var req svc.AddVersionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docService.AddVersion(r.Context(), c, svc.DocumentRef{ContextID: c.ContextID, ID: id}, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// ListVersions lists every live version of a document
// GET /api/documents/{id}/versions
func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}

	it, err := h.docService.ListVersions(r.Context(), c, svc.DocumentRef{ContextID: c.ContextID, ID: id})
	if err != nil {
		handleError(w, err)
		return
	}
	h.respondStream(w, it)
}

// DeleteVersions removes historical versions
// DELETE /api/documents/{id}/versions
func (h *DocumentHandler) DeleteVersions(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", "Document ID")
	if !ok {
		return
	}

	var req DeleteVersionsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref := svc.DocumentRef{ContextID: c.ContextID, ID: id}
	if err := h.docService.DeleteVersions(r.Context(), c, ref, req.Versions, req.LastModified); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFolder lists the documents of a folder
// GET /api/folders/{id}/documents?fields=a,b&sort=title&order=desc&limit=n&offset=n&deleted=true
func (h *DocumentHandler) ListFolder(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	folderID, ok := PathID(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	req, err := listRequest(r, c.ContextID, folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	var it repo.DocumentIterator
	if r.URL.Query().Get("deleted") == "true" {
		it, err = h.docService.ListDeleted(r.Context(), c, req)
	} else {
		it, err = h.docService.ListFolder(r.Context(), c, req)
	}
	if err != nil {
		handleError(w, err)
		return
	}
	h.respondStream(w, it)
}

// listRequest builds a folder listing from query parameters.
func listRequest(r *http.Request, contextID, folderID int64) (*svc.ListFolderRequest, error) {
	q := r.URL.Query()
	req := &svc.ListFolderRequest{ContextID: contextID, FolderID: folderID}

	if raw := q.Get("fields"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			f, err := models.ParseField(strings.TrimSpace(name))
			if err != nil {
				return nil, &domain.ValidationError{Message: err.Error()}
			}
			req.Fields = append(req.Fields, f)
		}
	}

	if raw := q.Get("sort"); raw != "" {
		f, err := models.ParseField(raw)
		if err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
		req.Sort = &repo.Sort{Field: f, Ascending: q.Get("order") != "desc"}
	}

	var err error
	if req.Limit, err = queryInt(r, "limit", config.MaxPageSize); err != nil {
		return nil, err
	}
	if req.Offset, err = queryInt(r, "offset", 0); err != nil {
		return nil, err
	}
	return req, nil
}

// respondStream drains it into a JSON array. The iterator is always closed.
func (h *DocumentHandler) respondStream(w http.ResponseWriter, it repo.DocumentIterator) {
	defer it.Close()

	docs := make([]*models.DocumentMetadata, 0)
	for {
		more, err := it.HasNext()
		if err != nil {
			h.logger.Warn("document stream failed", "error", err)
			handleError(w, err)
			return
		}
		if !more {
			break
		}
		doc, err := it.Next()
		if err != nil {
			handleError(w, err)
			return
		}
		docs = append(docs, doc)
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// HealthCheck is a simple health check endpoint
func (h *DocumentHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}
