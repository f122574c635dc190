package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreBatchLimit is Firestore's maximum number of writes per commit.
const firestoreBatchLimit = 500

// Firestore implements Store on Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps an initialized Firestore client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

// Client exposes the underlying client for listeners.
func (f *Firestore) Client() *firestore.Client {
	return f.client
}

func notFound(err error, collection, id string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return err
}

// FromSnapshot converts a Firestore snapshot into a Document.
func FromSnapshot(snap *firestore.DocumentSnapshot) *Document {
	return &Document{ID: snap.Ref.ID, Data: Fields(snap.Data()), UpdateTime: snap.UpdateTime}
}

func toUpdates(fields Fields) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(err, collection, id)
	}
	return FromSnapshot(snap), nil
}

func (f *Firestore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	query := f.client.Collection(collection).Query
	for _, flt := range q.Filters {
		query = query.Where(flt.Field, string(flt.Op), flt.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]*Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, FromSnapshot(snap))
	}
	return docs, nil
}

func (f *Firestore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, map[string]interface{}(fields))
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (f *Firestore) Set(ctx context.Context, collection, id string, fields Fields) error {
	if _, err := f.client.Collection(collection).Doc(id).Set(ctx, map[string]interface{}(fields)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if _, err := f.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields)); err != nil {
		return notFound(err, collection, id)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return notFound(err, collection, id)
	}
	return nil
}

// Increment runs a single-document transaction so the clamp at zero is
// evaluated against the committed value.
func (f *Firestore) Increment(ctx context.Context, collection, id, field string, delta int64, stamp Fields) (int64, bool, error) {
	ref := f.client.Collection(collection).Doc(id)
	var next int64
	var clamped bool
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, _ := snap.DataAt(field)
		next = ToInt64(current) + delta
		clamped = next < 0
		if clamped {
			next = 0
		}
		return tx.Update(ref, toUpdates(Fields{field: next}.Merge(stamp)))
	})
	if err != nil {
		return 0, false, notFound(err, collection, id)
	}
	return next, clamped, nil
}

func (f *Firestore) MaxBatchOps() int {
	return firestoreBatchLimit
}

func (f *Firestore) Batch() Batch {
	return &firestoreBatch{client: f.client, wb: f.client.Batch()}
}

type firestoreBatch struct {
	client *firestore.Client
	wb     *firestore.WriteBatch
	n      int
}

func (b *firestoreBatch) Update(collection, id string, fields Fields) {
	b.wb.Update(b.client.Collection(collection).Doc(id), toUpdates(fields))
	b.n++
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.wb.Delete(b.client.Collection(collection).Doc(id))
	b.n++
}

func (b *firestoreBatch) Len() int {
	return b.n
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	if _, err := b.wb.Commit(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("batch commit: %w", ErrNotFound)
		}
		return fmt.Errorf("batch commit: %w", err)
	}
	return nil
}
