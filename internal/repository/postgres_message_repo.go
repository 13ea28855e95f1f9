package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// messageLogLockKey はメッセージ追記を直列化するトランザクションアドバイザリロックのキー。
const messageLogLockKey int64 = 0x62617465

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
// messages.id（BIGSERIAL）の昇順がログの正規の並び順となる。
// 追記はmessageLogLockKeyで直列化され、IDの採番順とコミット順が一致する。
// これにより末尾取得中のクライアントが後からコミットされる小さいIDを取りこぼさない。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// queryRower は*sql.DBと*sql.Txの共通部分。
type queryRower interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// lockMessageLog はトランザクション終了まで保持されるメッセージ追記ロックを取得する。
// 参加者行のロックとの順序を揃えるため、追記を伴うトランザクションの最初に呼ぶ。
func lockMessageLog(ctx context.Context, q queryRower) error {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, messageLogLockKey); err != nil {
		return fmt.Errorf("failed to lock message log: %w", err)
	}
	return nil
}

// insertMessage はメッセージを1件追記し、採番されたIDをmsg.IDに設定する。
func insertMessage(ctx context.Context, q queryRower, msg *model.Message) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO messages (from_name, to_name, text, type, time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		msg.From, msg.To, msg.Text, string(msg.Type), msg.Time, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// CreateFromPresent は送信者が在室している場合に限りメッセージを追記する。
// 在室確認と追記を1文で行い、確認から追記までの間に参加者が削除されないよう共有ロックを取る。
func (r *PostgresMessageRepo) CreateFromPresent(ctx context.Context, msg *model.Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockMessageLog(ctx, tx); err != nil {
		return false, err
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (from_name, to_name, text, type, time, created_at)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE EXISTS (SELECT 1 FROM participants WHERE name = $1 FOR SHARE)
		 RETURNING id`,
		msg.From, msg.To, msg.Text, string(msg.Type), msg.Time, msg.CreatedAt,
	).Scan(&msg.ID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// ListVisible はviewerが閲覧できるメッセージを追記順で返す。
// 末尾からlimit件を取得したうえで昇順に並べ直す。limitが0の場合はLIMIT NULL（無制限）となる。
func (r *PostgresMessageRepo) ListVisible(ctx context.Context, viewer string, limit int) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_name, to_name, text, type, time, created_at
		 FROM messages
		 WHERE to_name = $1 OR to_name = $2 OR from_name = $2
		 ORDER BY id DESC
		 LIMIT $3`,
		model.BroadcastTarget, viewer, sql.NullInt64{Int64: int64(limit), Valid: limit > 0},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m := &model.Message{}
		var msgType string
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Text, &msgType, &m.Time, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Type = model.MessageType(msgType)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// DeleteOlderThan はcreated_atがcutoffより古いメッセージを削除し、削除件数を返す。
func (r *PostgresMessageRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old messages: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
