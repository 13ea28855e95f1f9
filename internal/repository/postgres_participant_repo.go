package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// PostgresParticipantRepo はPostgreSQLを使用した参加者リポジトリ。
type PostgresParticipantRepo struct {
	db *sql.DB
}

// NewPostgresParticipantRepo はPostgresParticipantRepoを生成する。
func NewPostgresParticipantRepo(db *sql.DB) *PostgresParticipantRepo {
	return &PostgresParticipantRepo{db: db}
}

// CreateWithJoinMessage は参加者と入室メッセージを同一トランザクションで作成する。
// ON CONFLICT DO NOTHINGにより、同名の同時入室は主キーで直列化され一方のみが成功する。
func (r *PostgresParticipantRepo) CreateWithJoinMessage(ctx context.Context, participant *model.Participant, msg *model.Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockMessageLog(ctx, tx); err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO participants (name, last_status)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING`,
		participant.Name, participant.LastStatus,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert participant: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if err := insertMessage(ctx, tx, msg); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// Touch は参加者のlast_statusを更新する。参加者が存在しない場合はfalseを返す。
func (r *PostgresParticipantRepo) Touch(ctx context.Context, name string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET last_status = $2 WHERE name = $1`,
		name, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update participant status: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return updated > 0, nil
}

// ListStale はlast_statusがcutoffより古い参加者を取得する。
func (r *PostgresParticipantRepo) ListStale(ctx context.Context, cutoff time.Time) ([]*model.Participant, error) {
	return r.query(ctx,
		`SELECT name, last_status FROM participants
		 WHERE last_status < $1
		 ORDER BY last_status ASC`,
		cutoff,
	)
}

// DeleteStaleWithLeaveMessage は削除時点のlast_statusを再確認したうえで参加者を削除し、
// 退室メッセージを同一トランザクションで追加する。
func (r *PostgresParticipantRepo) DeleteStaleWithLeaveMessage(ctx context.Context, name string, cutoff time.Time, msg *model.Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockMessageLog(ctx, tx); err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM participants WHERE name = $1 AND last_status < $2`,
		name, cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete participant: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if err := insertMessage(ctx, tx, msg); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// List は在室中の全参加者を名前順で返す。
func (r *PostgresParticipantRepo) List(ctx context.Context) ([]*model.Participant, error) {
	return r.query(ctx, `SELECT name, last_status FROM participants ORDER BY name ASC`)
}

func (r *PostgresParticipantRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p := &model.Participant{}
		if err := rows.Scan(&p.Name, &p.LastStatus); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// compile-time interface check
var _ ParticipantRepository = (*PostgresParticipantRepo)(nil)
