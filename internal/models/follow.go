package models

import "github.com/anonto42/nano-midea/socialsync/internal/store"

const (
	FieldSenderHandle   = "senderHandle"
	FieldReceiverHandle = "receiverHandle"
)

// Follow represents a directed follow relationship. At most one exists per
// ordered (sender, receiver) pair.
type Follow struct {
	FollowID       string `json:"followId"`
	SenderHandle   string `json:"senderHandle"`
	ReceiverHandle string `json:"receiverHandle"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

func (f Follow) Fields() store.Fields {
	return store.Fields{
		FieldSenderHandle:   f.SenderHandle,
		FieldReceiverHandle: f.ReceiverHandle,
		FieldCreatedAt:      f.CreatedAt,
	}
}

func FollowFromDocument(doc *store.Document) Follow {
	return Follow{
		FollowID:       doc.ID,
		SenderHandle:   doc.String(FieldSenderHandle),
		ReceiverHandle: doc.String(FieldReceiverHandle),
		CreatedAt:      doc.String(FieldCreatedAt),
	}
}
