// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// ParticipantRepository は在室参加者の永続化インターフェース。
// 存在確認と更新を分けずに、条件付きの単一操作として提供する。
type ParticipantRepository interface {
	// CreateWithJoinMessage は参加者と入室メッセージを同一トランザクションで作成する。
	// 同名の参加者が既に存在する場合は何も書き込まずfalseを返す。
	// 入室メッセージのIDは作成後にmsg.IDへ設定される。
	CreateWithJoinMessage(ctx context.Context, participant *model.Participant, msg *model.Message) (bool, error)

	// Touch は参加者のlast_statusを更新する。参加者が存在しない場合はfalseを返す。
	Touch(ctx context.Context, name string, at time.Time) (bool, error)

	// ListStale はlast_statusがcutoffより古い参加者を取得する。
	ListStale(ctx context.Context, cutoff time.Time) ([]*model.Participant, error)

	// DeleteStaleWithLeaveMessage は削除時点でもlast_statusがcutoffより古い場合に限り
	// 参加者を削除し、退室メッセージを同一トランザクションで追加する。
	// 既に削除済み、または直前にステータス更新された場合は何もせずfalseを返す。
	DeleteStaleWithLeaveMessage(ctx context.Context, name string, cutoff time.Time, msg *model.Message) (bool, error)

	// List は在室中の全参加者を名前順で返す。
	List(ctx context.Context) ([]*model.Participant, error)
}

// MessageRepository はチャットログの永続化インターフェース。
// ログは追記専用で、並び順は追記順（ID順）で決まる。
type MessageRepository interface {
	// CreateFromPresent は送信者が在室している場合に限りメッセージを追記する。
	// 送信者が在室していない場合は何も書き込まずfalseを返す。
	CreateFromPresent(ctx context.Context, msg *model.Message) (bool, error)

	// ListVisible はviewerが閲覧できるメッセージを追記順で返す。
	// limitが正の場合は末尾のlimit件のみを返し、0の場合は全件を返す。
	ListVisible(ctx context.Context, viewer string, limit int) ([]*model.Message, error)

	// DeleteOlderThan はcreated_atがcutoffより古いメッセージを削除し、削除件数を返す。
	// 保持期間ジョブ専用。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
