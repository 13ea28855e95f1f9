package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

var errParticipantExists = errors.New("participant already exists")

// MongoParticipantRepo はMongoDBを使用した参加者リポジトリ。
type MongoParticipantRepo struct {
	client       *mongo.Client
	participants *mongo.Collection
	messages     *mongo.Collection
	counters     *mongo.Collection
}

// NewMongoParticipantRepo はMongoParticipantRepoを生成する。
func NewMongoParticipantRepo(client *mongo.Client, db *mongo.Database) *MongoParticipantRepo {
	return &MongoParticipantRepo{
		client:       client,
		participants: db.Collection(participantsCollection),
		messages:     db.Collection(messagesCollection),
		counters:     db.Collection(countersCollection),
	}
}

// CreateWithJoinMessage は参加者と入室メッセージを同一トランザクションで作成する。
// nameのユニークインデックス違反は同名参加者の存在としてfalseを返す。
func (r *MongoParticipantRepo) CreateWithJoinMessage(ctx context.Context, participant *model.Participant, msg *model.Message) (bool, error) {
	_, err := runInTransaction(ctx, r.client, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.participants.InsertOne(sc, newMongoParticipant(participant)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, errParticipantExists
			}
			return nil, fmt.Errorf("failed to insert participant: %w", err)
		}
		return nil, insertMongoMessage(sc, r.messages, r.counters, msg)
	})
	if errors.Is(err, errParticipantExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Touch は参加者のlastStatusを更新する。参加者が存在しない場合はfalseを返す。
func (r *MongoParticipantRepo) Touch(ctx context.Context, name string, at time.Time) (bool, error) {
	result, err := r.participants.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{"lastStatus": at.UnixMilli()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update participant status: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// ListStale はlastStatusがcutoffより古い参加者を取得する。
func (r *MongoParticipantRepo) ListStale(ctx context.Context, cutoff time.Time) ([]*model.Participant, error) {
	return r.find(ctx,
		bson.M{"lastStatus": bson.M{"$lt": cutoff.UnixMilli()}},
		options.Find().SetSort(bson.D{{Key: "lastStatus", Value: 1}}),
	)
}

// DeleteStaleWithLeaveMessage は削除時点のlastStatusを条件に含めて参加者を削除し、
// 退室メッセージを同一トランザクションで追加する。
func (r *MongoParticipantRepo) DeleteStaleWithLeaveMessage(ctx context.Context, name string, cutoff time.Time, msg *model.Message) (bool, error) {
	deleted, err := runInTransaction(ctx, r.client, func(sc mongo.SessionContext) (interface{}, error) {
		result, err := r.participants.DeleteOne(sc, bson.M{
			"name":       name,
			"lastStatus": bson.M{"$lt": cutoff.UnixMilli()},
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete participant: %w", err)
		}
		if result.DeletedCount == 0 {
			return false, nil
		}
		if err := insertMongoMessage(sc, r.messages, r.counters, msg); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	ok, _ := deleted.(bool)
	return ok, nil
}

// List は在室中の全参加者を名前順で返す。
func (r *MongoParticipantRepo) List(ctx context.Context) ([]*model.Participant, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *MongoParticipantRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Participant, error) {
	cur, err := r.participants.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoParticipant
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	participants := make([]*model.Participant, 0, len(docs))
	for _, d := range docs {
		participants = append(participants, d.toModel())
	}
	return participants, nil
}

// compile-time interface check
var _ ParticipantRepository = (*MongoParticipantRepo)(nil)
