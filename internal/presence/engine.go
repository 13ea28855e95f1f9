// Package presence は参加者の在室状態（入室・生存通知・退室）を管理する。
//
// 在室状態はストアのみが保持し、プロセス内にはキャッシュしない。
// 入室の排他性と退室時の再確認はストアの条件付き書き込みで担保する。
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/repository"
)

// Recorder は在室イベントのメトリクス記録インターフェース。
type Recorder interface {
	RecordJoin()
	RecordJoinConflict()
	RecordExpiration()
}

// Engine は参加者の入室・生存通知・退室を処理する。
type Engine struct {
	participants repository.ParticipantRepository
	recorder     Recorder
	now          func() time.Time
}

// NewEngine は新しいEngineを生成する。recorderはnilでもよい。
func NewEngine(participants repository.ParticipantRepository, recorder Recorder) *Engine {
	return &Engine{
		participants: participants,
		recorder:     recorder,
		now:          time.Now,
	}
}

// Join は参加者を入室させ、入室メッセージを同一トランザクションで追記する。
// 同名の参加者が在室中の場合はPARTICIPANT_CONFLICTを返し、何も書き込まない。
func (e *Engine) Join(ctx context.Context, name string) (*model.Participant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.NewInvalidArgumentError("name is required")
	}

	now := e.now()
	participant := &model.Participant{Name: name, LastStatus: now}

	created, err := e.participants.CreateWithJoinMessage(ctx, participant, model.NewJoinMessage(name, now))
	if err != nil {
		return nil, fmt.Errorf("failed to join participant: %w", err)
	}
	if !created {
		if e.recorder != nil {
			e.recorder.RecordJoinConflict()
		}
		return nil, model.NewParticipantConflictError(name)
	}

	if e.recorder != nil {
		e.recorder.RecordJoin()
	}
	return participant, nil
}

// Refresh は在室中の参加者のlastStatusを現在時刻に更新する。
// メッセージは追記しない。
func (e *Engine) Refresh(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return model.NewInvalidArgumentError("participant name is required")
	}

	touched, err := e.participants.Touch(ctx, name, e.now())
	if err != nil {
		return fmt.Errorf("failed to refresh participant: %w", err)
	}
	if !touched {
		return model.NewParticipantNotFoundError(name)
	}
	return nil
}

// Expire はlastStatusがcutoffより古い場合に限り参加者を退室させ、退室メッセージを追記する。
// 判定は書き込み時点の値で行われる。既に退室済み、または直前にRefreshされた場合はfalseを返す。
func (e *Engine) Expire(ctx context.Context, name string, cutoff time.Time) (bool, error) {
	removed, err := e.participants.DeleteStaleWithLeaveMessage(ctx, name, cutoff, model.NewLeaveMessage(name, e.now()))
	if err != nil {
		return false, fmt.Errorf("failed to expire participant %q: %w", name, err)
	}
	if removed && e.recorder != nil {
		e.recorder.RecordExpiration()
	}
	return removed, nil
}

// ListPresent は在室中の参加者を名前順で返す。
func (e *Engine) ListPresent(ctx context.Context) ([]*model.Participant, error) {
	participants, err := e.participants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}
