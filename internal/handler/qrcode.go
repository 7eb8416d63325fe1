package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/qr-genius/internal/auth"
	"github.com/sakif/qr-genius/internal/service"
)

// QRCodeHandler exposes the QR record endpoints. All of them sit behind
// RequireAuth, so every request carries a verified user ID in its context.
type QRCodeHandler struct {
	codes  *service.QRCodeService
	logger *slog.Logger
}

// NewQRCodeHandler creates a QRCodeHandler.
func NewQRCodeHandler(codes *service.QRCodeService, logger *slog.Logger) *QRCodeHandler {
	return &QRCodeHandler{codes: codes, logger: logger}
}

// callerID pulls the authenticated user ID out of the request context.
// The second return is false only if the handler was wired outside
// RequireAuth, which is a routing bug.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return 0, false
	}
	return userID, true
}

// pathID parses the {id} route parameter as a positive integer.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// HandleGenerate creates a QR record for the caller.
//
// HTTP: POST /api/generate_qr
// Body: {"url": "https://...", "format": "PNG"|"SVG"}
//
// format is optional and defaults to PNG. Returns 201 with the full
// record, including its download_url.
func (h *QRCodeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req struct {
		URL    string `json:"url"`
		Format string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON in request body",
		})
		return
	}

	code, err := h.codes.Generate(r.Context(), userID, req.URL, req.Format)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, code)
}

// HandleList returns the caller's records, newest first.
//
// HTTP: GET /api/my_qrs
func (h *QRCodeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	codes, err := h.codes.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"qr_codes": codes,
		"count":    len(codes),
	})
}

// HandleDelete removes a record the caller owns.
//
// HTTP: DELETE /api/delete_qr/{id}
//
// 404 if the record does not exist, 403 if it belongs to someone else.
func (h *QRCodeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "id must be a positive integer",
		})
		return
	}

	if err := h.codes.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "qr code deleted"})
}

// HandleDownload streams the image bytes for a record the caller owns.
//
// HTTP: GET /download_qr/{id}
//
// The Content-Type follows the record's format; Content-Disposition
// suggests the stored filename so browsers save something recognizable.
func (h *QRCodeHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "id must be a positive integer",
		})
		return
	}

	code, reader, err := h.codes.Download(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", code.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code.Filename))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already out; a broken pipe here is the client's doing.
		h.logger.Warn("download interrupted",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}
