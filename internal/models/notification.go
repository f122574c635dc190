package models

import "github.com/anonto42/nano-midea/socialsync/internal/store"

// Notification types.
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationPost    = "post"
)

const (
	FieldRecipient = "recipient"
	FieldSender    = "sender"
	FieldType      = "type"
	FieldRead      = "read"
)

// Notification is keyed by the id of the like, comment, or post that caused it.
type Notification struct {
	NotificationID string `json:"notificationId"`
	Recipient      string `json:"recipient"`
	Sender         string `json:"sender"`
	Type           string `json:"type"`
	PostID         string `json:"postId"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"createdAt"`
}

func (n Notification) Fields() store.Fields {
	return store.Fields{
		FieldRecipient: n.Recipient,
		FieldSender:    n.Sender,
		FieldType:      n.Type,
		FieldPostID:    n.PostID,
		FieldRead:      n.Read,
		FieldCreatedAt: n.CreatedAt,
	}
}

func NotificationFromDocument(doc *store.Document) Notification {
	return Notification{
		NotificationID: doc.ID,
		Recipient:      doc.String(FieldRecipient),
		Sender:         doc.String(FieldSender),
		Type:           doc.String(FieldType),
		PostID:         doc.String(FieldPostID),
		Read:           doc.Bool(FieldRead),
		CreatedAt:      doc.String(FieldCreatedAt),
	}
}

// MarkNotificationsReadRequest lists the notifications to mark as read.
type MarkNotificationsReadRequest struct {
	NotificationIDs []string `json:"notificationIds" validate:"required,min=1,max=100,dive,required"`
}
