// Package message はメッセージの送信と閲覧者ごとの可視性フィルタを提供する。
package message

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/repository"
)

// Recorder は送信メッセージのメトリクス記録インターフェース。
type Recorder interface {
	RecordMessageSent(messageType string)
}

// SendInput はSendの入力。
type SendInput struct {
	From string
	To   string
	Text string
	Type model.MessageType
}

// Service はメッセージの送信と取得を行う。
type Service struct {
	messages repository.MessageRepository
	recorder Recorder
	now      func() time.Time
}

// NewService は新しいServiceを生成する。recorderはnilでもよい。
func NewService(messages repository.MessageRepository, recorder Recorder) *Service {
	return &Service{
		messages: messages,
		recorder: recorder,
		now:      time.Now,
	}
}

// Send は在室中の送信者からのメッセージをログに追記する。
// 送信者の在室確認と追記はストア側で不可分に行われる。
// 送信しても送信者のlastStatusは更新されない。
func (s *Service) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	switch {
	case strings.TrimSpace(in.From) == "":
		return nil, model.NewInvalidArgumentError("sender is required")
	case strings.TrimSpace(in.To) == "":
		return nil, model.NewInvalidArgumentError("to is required")
	case strings.TrimSpace(in.Text) == "":
		return nil, model.NewInvalidArgumentError("text is required")
	case !in.Type.IsSendable():
		return nil, model.NewInvalidArgumentError("type must be message or private_message")
	}

	now := s.now()
	msg := &model.Message{
		From:      in.From,
		To:        in.To,
		Text:      in.Text,
		Type:      in.Type,
		Time:      now.Format(model.MessageTimeLayout),
		CreatedAt: now,
	}

	appended, err := s.messages.CreateFromPresent(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	if !appended {
		return nil, model.NewUnknownSenderError(in.From)
	}

	if s.recorder != nil {
		s.recorder.RecordMessageSent(string(msg.Type))
	}
	return msg, nil
}

// ListVisible はviewerが閲覧できるメッセージを追記順で返す。
// limitが指定された場合は末尾のlimit件のみを返す。
func (s *Service) ListVisible(ctx context.Context, viewer string, limit *int) ([]*model.Message, error) {
	if strings.TrimSpace(viewer) == "" {
		return nil, model.NewInvalidArgumentError("viewer is required")
	}
	n := 0
	if limit != nil {
		if *limit <= 0 {
			return nil, model.NewInvalidArgumentError("limit must be a positive integer")
		}
		n = *limit
	}

	msgs, err := s.messages.ListVisible(ctx, viewer, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ParseLimit は指定されたlimitクエリの値を解釈する。
// 空文字列を含め、正の整数以外はINVALID_ARGUMENTを返す。
// limitが指定されていない場合は呼び出し側で無制限として扱う。
func ParseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewInvalidArgumentError("limit must be a positive integer")
	}
	return n, nil
}
