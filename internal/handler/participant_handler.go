package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/security"
)

// PresenceServiceInterface は参加者ハンドラーが必要とするサービスインターフェース。
type PresenceServiceInterface interface {
	// Join は参加者を入室させ、入室通知メッセージを記録する。
	Join(ctx context.Context, name string) (*model.Participant, error)
	// Refresh は在室中の参加者の生存通知時刻を更新する。
	Refresh(ctx context.Context, name string) error
	// ListPresent は在室中の参加者一覧を返す。
	ListPresent(ctx context.Context) ([]*model.Participant, error)
}

// ParticipantHandler は入室・在室確認・生存通知のHTTPハンドラー。
type ParticipantHandler struct {
	service PresenceServiceInterface
	guard   security.MarkupGuard
}

// NewParticipantHandler はParticipantHandlerを生成する。
func NewParticipantHandler(service PresenceServiceInterface, guard security.MarkupGuard) *ParticipantHandler {
	return &ParticipantHandler{
		service: service,
		guard:   guard,
	}
}

// participantResponse は参加者情報のAPIレスポンス。
// lastStatusはUnixミリ秒。
type participantResponse struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type joinRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func toParticipantResponse(p *model.Participant) participantResponse {
	return participantResponse{
		Name:       p.Name,
		LastStatus: p.LastStatus.UnixMilli(),
	}
}

// Join は参加者を入室させる。
// POST /participants
//
// 名前はUserヘッダーと同じく前後の空白のみ取り除いて登録する。
// HTMLを含む名前は書き換えずに422で拒否する。
func (h *ParticipantHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, apiErr)
		return
	}

	name := strings.TrimSpace(req.Name)
	if h.guard.ContainsMarkup(name) {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewInvalidArgumentError("name must not contain HTML"))
		return
	}

	participant, err := h.service.Join(r.Context(), name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantResponse(participant))
}

// List は在室中の参加者一覧を返す。
// GET /participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.ListPresent(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(participants, func(p *model.Participant, _ int) participantResponse {
		return toParticipantResponse(p)
	}))
}

// Status は生存通知を受け付ける。
// POST /status
func (h *ParticipantHandler) Status(w http.ResponseWriter, r *http.Request) {
	name, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewInvalidArgumentError("User header is required"))
		return
	}

	if err := h.service.Refresh(r.Context(), name); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
