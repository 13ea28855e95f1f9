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

// MongoDBのコレクション名。
const (
	participantsCollection = "participants"
	messagesCollection     = "messages"
	countersCollection     = "counters"

	messageCounterID = "messages"

	namespaceExistsCode = 48
)

// mongoParticipant はparticipantsコレクションのドキュメント。
// lastStatusはUNIXミリ秒で保存する。
type mongoParticipant struct {
	Name       string `bson:"name"`
	LastStatus int64  `bson:"lastStatus"`
}

func newMongoParticipant(p *model.Participant) mongoParticipant {
	return mongoParticipant{Name: p.Name, LastStatus: p.LastStatus.UnixMilli()}
}

func (d mongoParticipant) toModel() *model.Participant {
	return &model.Participant{Name: d.Name, LastStatus: time.UnixMilli(d.LastStatus)}
}

// mongoMessage はmessagesコレクションのドキュメント。
// seqはcountersコレクションで採番するログ上の位置。
type mongoMessage struct {
	Seq       int64     `bson:"seq"`
	From      string    `bson:"from"`
	To        string    `bson:"to"`
	Text      string    `bson:"text"`
	Type      string    `bson:"type"`
	Time      string    `bson:"time"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d mongoMessage) toModel() *model.Message {
	return &model.Message{
		ID:        d.Seq,
		From:      d.From,
		To:        d.To,
		Text:      d.Text,
		Type:      model.MessageType(d.Type),
		Time:      d.Time,
		CreatedAt: d.CreatedAt,
	}
}

// EnsureMongoSchema はトランザクション内で使うコレクションとインデックスを作成する。
// 冪等: 既に存在する場合はエラーにならない。
func EnsureMongoSchema(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{participantsCollection, messagesCollection, countersCollection} {
		if err := db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}

	_, err := db.Collection(participantsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "lastStatus", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create participant indexes: %w", err)
	}

	_, err = db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "to", Value: 1}}},
		{Keys: bson.D{{Key: "from", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsCode
}

// runInTransaction はfnをMongoDBのトランザクション内で実行する。
// 一時的な書き込み競合はドライバが自動的にリトライする。レプリカセット構成が必要。
func runInTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}

// insertMongoMessage はcountersで次のseqを採番してメッセージを追記し、msg.IDに設定する。
// 同じカウンタを更新するトランザクション同士は書き込み競合となるため、採番順と追記順が一致する。
func insertMongoMessage(ctx context.Context, messages, counters *mongo.Collection, msg *model.Message) error {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messageCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("failed to allocate message sequence: %w", err)
	}

	_, err = messages.InsertOne(ctx, mongoMessage{
		Seq:       counter.Seq,
		From:      msg.From,
		To:        msg.To,
		Text:      msg.Text,
		Type:      string(msg.Type),
		Time:      msg.Time,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID = counter.Seq
	return nil
}
