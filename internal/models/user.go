package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// User field names.
const (
	FieldEmail          = "email"
	FieldUserID         = "userId"
	FieldImageURL       = "imageUrl"
	FieldImageURLRef    = "imageUrlRef"
	FieldHeaderURL      = "headerUrl"
	FieldHeaderURLRef   = "headerUrlRef"
	FieldBio            = "bio"
	FieldWebsite        = "website"
	FieldLocation       = "location"
	FieldFollowersCount = "followersCount"
	FieldFollowingCount = "followingCount"
	FieldCreatedAt      = "createdAt"
)

// User is keyed by its handle.
type User struct {
	Handle         string `json:"handle"`
	Email          string `json:"email"`
	UserID         string `json:"userId"`
	ImageURL       string `json:"imageUrl"`
	ImageURLRef    string `json:"-"`
	HeaderURL      string `json:"headerUrl,omitempty"`
	HeaderURLRef   string `json:"-"`
	Bio            string `json:"bio,omitempty"`
	Website        string `json:"website,omitempty"`
	Location       string `json:"location,omitempty"`
	FollowersCount int64  `json:"followersCount"`
	FollowingCount int64  `json:"followingCount"`
	CreatedAt      string `json:"createdAt"`
}

func (u User) Fields() store.Fields {
	return store.Fields{
		FieldEmail:          u.Email,
		FieldUserID:         u.UserID,
		FieldImageURL:       u.ImageURL,
		FieldImageURLRef:    u.ImageURLRef,
		FieldHeaderURL:      u.HeaderURL,
		FieldHeaderURLRef:   u.HeaderURLRef,
		FieldBio:            u.Bio,
		FieldWebsite:        u.Website,
		FieldLocation:       u.Location,
		FieldFollowersCount: u.FollowersCount,
		FieldFollowingCount: u.FollowingCount,
		FieldCreatedAt:      u.CreatedAt,
	}
}

func UserFromDocument(doc *store.Document) User {
	return User{
		Handle:         doc.ID,
		Email:          doc.String(FieldEmail),
		UserID:         doc.String(FieldUserID),
		ImageURL:       doc.String(FieldImageURL),
		ImageURLRef:    doc.String(FieldImageURLRef),
		HeaderURL:      doc.String(FieldHeaderURL),
		HeaderURLRef:   doc.String(FieldHeaderURLRef),
		Bio:            doc.String(FieldBio),
		Website:        doc.String(FieldWebsite),
		Location:       doc.String(FieldLocation),
		FollowersCount: doc.Int(FieldFollowersCount),
		FollowingCount: doc.Int(FieldFollowingCount),
		CreatedAt:      doc.String(FieldCreatedAt),
	}
}

// Credential holds a locally managed password hash, keyed by handle. Only used
// when tokens are issued by this service instead of Firebase.
type Credential struct {
	Handle       string
	Email        string
	PasswordHash string
}

func (c Credential) Fields() store.Fields {
	return store.Fields{FieldEmail: c.Email, "passwordHash": c.PasswordHash}
}

func CredentialFromDocument(doc *store.Document) Credential {
	return Credential{Handle: doc.ID, Email: doc.String(FieldEmail), PasswordHash: doc.String("passwordHash")}
}

type SignupRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Handle          string `json:"handle" validate:"required,alphanum,min=2,max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserDetailsRequest updates the free-text profile fields.
type UserDetailsRequest struct {
	Bio      string `json:"bio" validate:"max=300"`
	Website  string `json:"website" validate:"max=200"`
	Location string `json:"location" validate:"max=100"`
}

// Fields trims the details, drops empty ones, and prefixes a scheme-less
// website with http://.
func (r UserDetailsRequest) Fields() store.Fields {
	out := store.Fields{}
	if bio := strings.TrimSpace(r.Bio); bio != "" {
		out[FieldBio] = bio
	}
	if site := strings.TrimSpace(r.Website); site != "" {
		if !strings.HasPrefix(site, "http") {
			site = "http://" + site
		}
		out[FieldWebsite] = site
	}
	if loc := strings.TrimSpace(r.Location); loc != "" {
		out[FieldLocation] = loc
	}
	return out
}

// AuthenticatedUser is the response of GET /user.
type AuthenticatedUser struct {
	Credentials   User           `json:"credentials"`
	Likes         []Like         `json:"likes"`
	Notifications []Notification `json:"notifications"`
}

// UserProfile is the public view of a user with their posts.
type UserProfile struct {
	User  User   `json:"user"`
	Posts []Post `json:"posts"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	Handle string `json:"handle"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
