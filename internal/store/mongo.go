package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoBatchLimit bounds a batch; far below the server's maxWriteBatchSize.
const mongoBatchLimit = 1000

// Mongo implements Store on MongoDB. Document ids are stored as hex strings in
// _id. Batches are ordered bulk writes per collection and are not atomic
// across collections.
type Mongo struct {
	db *mongo.Database
}

// NewMongo wraps a database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// Database exposes the underlying database for change streams.
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

// FromBSON converts a raw MongoDB document into a Document.
func FromBSON(raw bson.M) *Document {
	if raw == nil {
		return nil
	}
	id, _ := raw["_id"].(string)
	data := make(Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		data[k] = v
	}
	return &Document{ID: id, Data: data}
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, err
	}
	return FromBSON(raw), nil
}

var mongoOps = map[Op]string{
	OpLt:  "$lt",
	OpLte: "$lte",
	OpGt:  "$gt",
	OpGte: "$gte",
}

func mongoFilter(filters []Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		if f.Op == OpEq {
			filter[f.Field] = f.Value
			continue
		}
		sub, ok := filter[f.Field].(bson.M)
		if !ok {
			sub = bson.M{}
			filter[f.Field] = sub
		}
		sub[mongoOps[f.Op]] = f.Value
	}
	return filter
}

func (m *Mongo) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	findOptions := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		findOptions.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(q.Filters), findOptions)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]*Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, FromBSON(raw))
	}
	return docs, nil
}

func withID(id string, fields Fields) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	return doc
}

func (m *Mongo) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id := primitive.NewObjectID().Hex()
	if _, err := m.db.Collection(collection).InsertOne(ctx, withID(id, fields)); err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return id, nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, fields Fields) error {
	_, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, withID(id, fields), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields Fields) error {
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// Increment uses an aggregation-pipeline update so the add and the clamp at
// zero happen in one server-side step.
func (m *Mongo) Increment(ctx context.Context, collection, id, field string, delta int64, stamp Fields) (int64, bool, error) {
	set := bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{
		0,
		bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}},
			delta,
		}}},
	}}}}}
	for k, v := range stamp {
		set = append(set, bson.E{Key: k, Value: bson.D{{Key: "$literal", Value: v}}})
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}

	var before bson.M
	err := m.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return 0, false, fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	next := ToInt64(before[field]) + delta
	if next < 0 {
		return 0, true, nil
	}
	return next, false, nil
}

func (m *Mongo) MaxBatchOps() int {
	return mongoBatchLimit
}

func (m *Mongo) Batch() Batch {
	return &mongoBatch{db: m.db}
}

type mongoBatch struct {
	db     *mongo.Database
	writes []Write
}

func (b *mongoBatch) Update(collection, id string, fields Fields) {
	b.writes = append(b.writes, Write{Collection: collection, ID: id, Fields: fields})
}

func (b *mongoBatch) Delete(collection, id string) {
	b.writes = append(b.writes, Write{Collection: collection, ID: id, Delete: true})
}

func (b *mongoBatch) Len() int {
	return len(b.writes)
}

// Commit issues one ordered bulk write per collection, in first-use order.
// An update that matched nothing is reported as ErrNotFound after the fact.
func (b *mongoBatch) Commit(ctx context.Context) error {
	var order []string
	grouped := make(map[string][]mongo.WriteModel)
	updates := make(map[string]int64)
	for _, w := range b.writes {
		if _, ok := grouped[w.Collection]; !ok {
			order = append(order, w.Collection)
		}
		if w.Delete {
			grouped[w.Collection] = append(grouped[w.Collection], mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": w.ID}))
			continue
		}
		grouped[w.Collection] = append(grouped[w.Collection],
			mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": w.ID}).SetUpdate(bson.M{"$set": bson.M(w.Fields)}))
		updates[w.Collection]++
	}

	for _, collection := range order {
		res, err := b.db.Collection(collection).BulkWrite(ctx, grouped[collection], options.BulkWrite().SetOrdered(true))
		if err != nil {
			return fmt.Errorf("bulk write %s: %w", collection, err)
		}
		if res.MatchedCount < updates[collection] {
			return fmt.Errorf("bulk write %s: %d of %d updates matched: %w",
				collection, res.MatchedCount, updates[collection], ErrNotFound)
		}
	}
	return nil
}
