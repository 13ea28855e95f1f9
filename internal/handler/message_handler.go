package handler

import (
	"context"
	"net/http"

	"github.com/samber/lo"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/message"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Send は在室中の送信者からのメッセージを記録する。
	Send(ctx context.Context, in message.SendInput) (*model.Message, error)
	// ListVisible はviewerが閲覧できるメッセージを挿入順で返す。
	// limitがnilの場合は全件を返す。
	ListVisible(ctx context.Context, viewer string, limit *int) ([]*model.Message, error)
}

// MessageHandler はメッセージ送信・取得のHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{
		service: service,
	}
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

type sendMessageRequest struct {
	To   string `json:"to" validate:"required,notblank,max=100"`
	Text string `json:"text" validate:"required,notblank,max=2000"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

func toMessageResponse(m *model.Message, _ int) messageResponse {
	return messageResponse{
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Type),
		Time: m.Time,
	}
}

// Send はメッセージを送信する。本文と宛先は受け取ったまま記録する。
// POST /messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	from, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewInvalidArgumentError("User header is required"))
		return
	}

	var req sendMessageRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, apiErr)
		return
	}

	msg, err := h.service.Send(r.Context(), message.SendInput{
		From: from,
		To:   req.To,
		Text: req.Text,
		Type: model.MessageType(req.Type),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg, 0))
}

// List はリクエスト者が閲覧できるメッセージを返す。
// GET /messages?limit=N
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewInvalidArgumentError("User header is required"))
		return
	}

	var limit *int
	if q := r.URL.Query(); q.Has("limit") {
		n, err := message.ParseLimit(q.Get("limit"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		limit = &n
	}

	messages, err := h.service.ListVisible(r.Context(), viewer, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(messages, toMessageResponse))
}
