package cache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
)

const entriesCollection = "cache_entries"

type entry struct {
	Namespace string        `bson:"namespace"`
	ItemID    string        `bson:"item_id"`
	Fields    models.Fields `bson:"fields"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Mongo stores one document per namespace and item.
type Mongo struct {
	coll      *mongo.Collection
	namespace string
}

func NewMongo(db *mongo.Database, namespace string) *Mongo {
	coll := db.Collection(entriesCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "namespace", Value: 1}, {Key: "item_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Log.Warn().Err(err).Str("collection", entriesCollection).Msg("create indexes")
	}

	return &Mongo{coll: coll, namespace: namespace}
}

func (m *Mongo) filter(id string) bson.M {
	return bson.M{"namespace": m.namespace, "item_id": id}
}

func (m *Mongo) Get(ctx context.Context, id string) (models.Fields, bool, error) {
	var e entry
	err := m.coll.FindOne(ctx, m.filter(id)).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Fields, true, nil
}

func (m *Mongo) Merge(ctx context.Context, id string, fields models.Fields) error {
	fields = persistable(fields)
	if len(fields) == 0 {
		return nil
	}

	set := bson.M{"updated_at": time.Now()}
	for name, v := range fields {
		set["fields."+string(name)] = v
	}

	_, err := m.coll.UpdateOne(ctx, m.filter(id), bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Invalidate(ctx context.Context, id string) error {
	_, err := m.coll.DeleteOne(ctx, m.filter(id))
	return err
}

func (m *Mongo) Clear(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{"namespace": m.namespace})
	return err
}

func (m *Mongo) IDs(ctx context.Context) ([]string, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"namespace": m.namespace}, options.Find().SetProjection(bson.M{"item_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ItemID string `bson:"item_id"`
		}
		if err := cursor.Decode(&doc); err == nil {
			ids = append(ids, doc.ItemID)
		}
	}
	return ids, cursor.Err()
}
