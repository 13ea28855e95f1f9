package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

var errSenderAbsent = errors.New("sender is not present")

// MongoMessageRepo はMongoDBを使用したメッセージリポジトリ。
// seqの昇順がログの正規の並び順となる。
type MongoMessageRepo struct {
	client       *mongo.Client
	participants *mongo.Collection
	messages     *mongo.Collection
	counters     *mongo.Collection
}

// NewMongoMessageRepo はMongoMessageRepoを生成する。
func NewMongoMessageRepo(client *mongo.Client, db *mongo.Database) *MongoMessageRepo {
	return &MongoMessageRepo{
		client:       client,
		participants: db.Collection(participantsCollection),
		messages:     db.Collection(messagesCollection),
		counters:     db.Collection(countersCollection),
	}
}

// CreateFromPresent は送信者が在室している場合に限りメッセージを追記する。
func (r *MongoMessageRepo) CreateFromPresent(ctx context.Context, msg *model.Message) (bool, error) {
	_, err := runInTransaction(ctx, r.client, func(sc mongo.SessionContext) (interface{}, error) {
		err := r.participants.FindOne(sc, bson.M{"name": msg.From}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errSenderAbsent
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find sender: %w", err)
		}
		return nil, insertMongoMessage(sc, r.messages, r.counters, msg)
	})
	if errors.Is(err, errSenderAbsent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListVisible はviewerが閲覧できるメッセージを追記順で返す。
func (r *MongoMessageRepo) ListVisible(ctx context.Context, viewer string, limit int) ([]*model.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"to": model.BroadcastTarget},
		bson.M{"to": viewer},
		bson.M{"from": viewer},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	messages := lo.Map(docs, func(d mongoMessage, _ int) *model.Message {
		return d.toModel()
	})
	slices.Reverse(messages)
	return messages, nil
}

// DeleteOlderThan はcreatedAtがcutoffより古いメッセージを削除し、削除件数を返す。
func (r *MongoMessageRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.messages.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old messages: %w", err)
	}
	return result.DeletedCount, nil
}

// compile-time interface check
var _ MessageRepository = (*MongoMessageRepo)(nil)
