package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/core/service"
)

// multipart overhead allowed on top of the image itself
const uploadSlack = 64 << 10

// handleUploadImage handles POST /api/images (multipart field "image",
// optional field "caption").
func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImage+uploadSlack)

	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.handleServiceError(w, r, domain.ErrImageTooLarge)
			return
		}
		h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails("multipart field image is required").WithCause(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImage+1))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails("read image").WithCause(err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	res, err := h.chat.UploadImage(r.Context(), &service.UploadRequest{
		Token:         sessionToken(r),
		Filename:      header.Filename,
		ContentType:   contentType,
		Data:          data,
		Caption:       r.FormValue("caption"),
		SourceAddress: getClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, UploadImageResponse{
		ImageID: res.ImageID,
		Message: messageResponse(res.Message),
	})
}

// handleGetImage handles GET /api/images/{id}. Images are served raw.
func (h *Handler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.chat.Image(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}
