package models

import "github.com/anonto42/nano-midea/socialsync/internal/store"

// Like represents a like on a post. At most one exists per (postId, userHandle).
type Like struct {
	LikeID     string `json:"likeId"`
	PostID     string `json:"postId"`
	UserHandle string `json:"userHandle"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func (l Like) Fields() store.Fields {
	return store.Fields{
		FieldPostID:     l.PostID,
		FieldUserHandle: l.UserHandle,
		FieldCreatedAt:  l.CreatedAt,
	}
}

func LikeFromDocument(doc *store.Document) Like {
	return Like{
		LikeID:     doc.ID,
		PostID:     doc.String(FieldPostID),
		UserHandle: doc.String(FieldUserHandle),
		CreatedAt:  doc.String(FieldCreatedAt),
	}
}
