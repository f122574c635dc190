package models

import "github.com/anonto42/nano-midea/socialsync/internal/store"

// Comment represents a comment on a post
type Comment struct {
	CommentID  string `json:"commentId"`
	PostID     string `json:"postId"`
	UserHandle string `json:"userHandle"`
	UserImage  string `json:"userImage"`
	Body       string `json:"body"`
	CreatedAt  string `json:"createdAt"`
}

func (c Comment) Fields() store.Fields {
	return store.Fields{
		FieldPostID:     c.PostID,
		FieldUserHandle: c.UserHandle,
		FieldUserImage:  c.UserImage,
		FieldBody:       c.Body,
		FieldCreatedAt:  c.CreatedAt,
	}
}

func CommentFromDocument(doc *store.Document) Comment {
	return Comment{
		CommentID:  doc.ID,
		PostID:     doc.String(FieldPostID),
		UserHandle: doc.String(FieldUserHandle),
		UserImage:  doc.String(FieldUserImage),
		Body:       doc.String(FieldBody),
		CreatedAt:  doc.String(FieldCreatedAt),
	}
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=500"`
}
