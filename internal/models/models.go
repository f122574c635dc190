package models

import "time"

// Collection names in the Record Store.
const (
	CollectionUsers         = "users"
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionLikes         = "likes"
	CollectionFollows       = "follows"
	CollectionNotifications = "notifications"
	CollectionCredentials   = "credentials"
)

// LocationExplore marks a post published to the public feed rather than to a
// user's profile.
const LocationExplore = "explore"

// TimestampLayout is fixed width so that string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp formats t for storage.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Now is the storage timestamp for the current instant.
func Now() string {
	return Timestamp(time.Now())
}
