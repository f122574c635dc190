package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// ChangeStream turns a MongoDB change stream into events. Update events carry
// a Before image only when the collections have changeStreamPreAndPostImages
// enabled.
type ChangeStream struct {
	db          *mongo.Database
	delivery    *Redeliverer
	logger      *slog.Logger
	collections []string
}

// NewChangeStream watches the given collections of db.
func NewChangeStream(db *mongo.Database, delivery *Redeliverer, logger *slog.Logger, collections ...string) *ChangeStream {
	return &ChangeStream{db: db, delivery: delivery, logger: logger, collections: collections}
}

type changeEvent struct {
	OperationType string              `bson:"operationType"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.M `bson:"fullDocument"`
	FullDocumentBeforeChange bson.M `bson:"fullDocumentBeforeChange"`
}

func (c changeEvent) toEvent() (Event, bool) {
	at := time.Unix(int64(c.ClusterTime.T), int64(c.ClusterTime.I)).UTC()
	before := store.FromBSON(c.FullDocumentBeforeChange)
	after := store.FromBSON(c.FullDocument)
	if before != nil {
		before.ID = c.DocumentKey.ID
	}
	if after != nil {
		after.ID = c.DocumentKey.ID
		after.UpdateTime = at
	}

	var kind Kind
	switch c.OperationType {
	case "insert":
		kind, before = Created, nil
	case "update", "replace":
		kind = Updated
		if after == nil {
			// the document was deleted before the post-image lookup ran
			return Event{}, false
		}
		if before == nil {
			before = &store.Document{ID: c.DocumentKey.ID, Data: store.Fields{}}
		}
	case "delete":
		kind, after = Deleted, nil
		if before == nil {
			before = &store.Document{ID: c.DocumentKey.ID, Data: store.Fields{}}
		}
	default:
		return Event{}, false
	}
	return Event{
		ID:         EventID(c.NS.Coll, c.DocumentKey.ID, kind, at),
		Collection: c.NS.Coll,
		DocumentID: c.DocumentKey.ID,
		Kind:       kind,
		Before:     before,
		After:      after,
		OccurredAt: at,
	}, true
}

// Run blocks until ctx is cancelled or the stream fails.
func (s *ChangeStream) Run(ctx context.Context) error {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{
		"ns.coll":       bson.M{"$in": s.collections},
		"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
	}}}}
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)

	stream, err := s.db.Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.db.Name(), err)
	}
	defer stream.Close(context.WithoutCancel(ctx))
	s.logger.Info("change stream ready", slog.String("database", s.db.Name()), slog.Any("collections", s.collections))

	for stream.Next(ctx) {
		var raw changeEvent
		if err := stream.Decode(&raw); err != nil {
			s.logger.Error("undecodable change event", slog.String("error", err.Error()))
			continue
		}
		e, ok := raw.toEvent()
		if !ok {
			continue
		}
		observability.EventsReceived.WithLabelValues("changestream", string(e.Kind)).Inc()
		_ = s.delivery.Deliver(ctx, e)
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("change stream: %w", err)
	}
	return nil
}
