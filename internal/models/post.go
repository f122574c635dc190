package models

import "github.com/anonto42/nano-midea/socialsync/internal/store"

// Post and comment field names.
const (
	FieldUserHandle   = "userHandle"
	FieldBody         = "body"
	FieldUserImage    = "userImage"
	FieldLikeCount    = "likeCount"
	FieldCommentCount = "commentCount"
	FieldPostID       = "postId"
)

// Post represents a short message. Location is LocationExplore or the handle
// of the user whose profile it was posted to.
type Post struct {
	PostID       string `json:"postId"`
	UserHandle   string `json:"userHandle"`
	Body         string `json:"body"`
	UserImage    string `json:"userImage"`
	Location     string `json:"location"`
	LikeCount    int64  `json:"likeCount"`
	CommentCount int64  `json:"commentCount"`
	CreatedAt    string `json:"createdAt"`
}

func (p Post) Fields() store.Fields {
	return store.Fields{
		FieldUserHandle:   p.UserHandle,
		FieldBody:         p.Body,
		FieldUserImage:    p.UserImage,
		FieldLocation:     p.Location,
		FieldLikeCount:    p.LikeCount,
		FieldCommentCount: p.CommentCount,
		FieldCreatedAt:    p.CreatedAt,
	}
}

func PostFromDocument(doc *store.Document) Post {
	return Post{
		PostID:       doc.ID,
		UserHandle:   doc.String(FieldUserHandle),
		Body:         doc.String(FieldBody),
		UserImage:    doc.String(FieldUserImage),
		Location:     doc.String(FieldLocation),
		LikeCount:    doc.Int(FieldLikeCount),
		CommentCount: doc.Int(FieldCommentCount),
		CreatedAt:    doc.String(FieldCreatedAt),
	}
}

// IsProfilePost reports whether the post was written on another user's profile.
func (p Post) IsProfilePost() bool {
	return p.Location != "" && p.Location != LocationExplore
}

// PostWithComments is the response of GET /post/:postId.
type PostWithComments struct {
	Post
	Comments []Comment `json:"comments"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Body     string `json:"body" validate:"required,max=280"`
	Location string `json:"location,omitempty" validate:"omitempty,max=30"`
}
