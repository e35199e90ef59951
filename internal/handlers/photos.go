package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/internal/engine"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/photos"
)

// PhotoField is the multipart field holding the image.
const PhotoField = "photo"

// PhotoHandler handles POST /upload-photo
type PhotoHandler struct {
	actions Actions
	logger  *slog.Logger
}

func NewPhotoHandler(actions Actions, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{actions: actions, logger: logger}
}

func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// leave room for the multipart framing around a max size photo
	r.Body = http.MaxBytesReader(w, r.Body, photos.MaxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(photos.MaxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, apperr.Input("invalid_photo_size", "Photos must be smaller than 10 MB.", err))
			return
		}
		writeError(w, r, h.logger, apperr.Input("invalid_body", "Expected a multipart form with a photo.", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(PhotoField)
	if err != nil {
		writeError(w, r, h.logger, apperr.Input("missing_photo", "Please attach a photo.", err))
		return
	}
	defer func() { _ = file.Close() }()

	contentType, err := detectContentType(file, header)
	if err != nil {
		writeError(w, r, h.logger, apperr.Input("invalid_body", "Could not read the photo.", err))
		return
	}

	photo, err := h.actions.RecordPhoto(r.Context(), callerFrom(r), engine.PhotoUpload{
		Body:        file,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, photo)
}

// detectContentType trusts the part header unless it is missing or generic, then sniffs the bytes.
func detectContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	ct := header.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
