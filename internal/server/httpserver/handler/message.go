package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/core/service"
)

// handlePostMessage handles POST /api/messages.
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var att *domain.Attachment
	if req.Attachment != nil {
		att = &domain.Attachment{
			Kind:      domain.AttachmentKind(req.Attachment.Kind),
			Reference: req.Attachment.Reference,
		}
	}

	msg, err := h.chat.Post(r.Context(), &service.PostRequest{
		Token:         sessionToken(r),
		Text:          req.Text,
		Attachment:    att,
		SourceAddress: getClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, messageResponse(msg))
}

// handleListMessages handles GET /api/messages?since=N.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	var cursor uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails("since must be a non-negative integer"))
			return
		}
		cursor = n
	}

	res, err := h.chat.Since(r.Context(), sessionToken(r), cursor)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	out := ListMessagesResponse{
		Messages: make([]MessageResponse, 0, len(res.Messages)),
		LatestID: res.LatestID,
		Total:    res.Total,
	}
	for _, m := range res.Messages {
		out.Messages = append(out.Messages, messageResponse(m))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
