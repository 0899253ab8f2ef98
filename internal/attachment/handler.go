package attachment

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/transport"
)

const multipartOverhead = 1 << 20

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type AttachmentsResponse struct {
	Attachments []*Attachment `json:"attachments"`
}

// Upload handles POST /findings/{id}/attachments with a multipart "file" part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}
	findingID, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("file", "a file part is required and must not exceed 10MB", internal.ErrCodeValidationFailed))
		return
	}
	defer file.Close()

	a, err := h.Service.Create(r.Context(), actor, findingID, Upload{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, a)
}

// List handles GET /findings/{id}/attachments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	findingID, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	items, err := h.Service.ListByFinding(r.Context(), findingID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AttachmentsResponse{Attachments: items})
}

// Download handles GET /attachments/{id}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	a, body, err := h.Service.Open(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.OriginalName}))
	if a.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("attachment download interrupted", "attachment_id", id, "error", err)
	}
}

// Delete handles DELETE /attachments/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
