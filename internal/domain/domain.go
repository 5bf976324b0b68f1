package domain

import "time"

type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
}

// UserPreference holds per-user scheduling settings. Timezone is an IANA
// zone name used to compute the user's local digest hour.
type UserPreference struct {
	UserID   int64
	Timezone string
}

type SearchTerm struct {
	ID        int64
	UserID    int64
	Term      string
	CreatedAt time.Time
}

// ArticleRef is candidate article metadata returned by a news search,
// before any content has been fetched.
type ArticleRef struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Source      string
}

// Article is a fetched article, deduplicated globally by URL.
type Article struct {
	ID          int64
	URL         string
	Title       string
	Content     string
	PublishedAt time.Time
	Source      string
	FetchedAt   time.Time
}

// Digest is one completed pipeline run for a user. SentAt is nil until
// email delivery succeeds; an unsent digest is still valid.
type Digest struct {
	ID           int64
	UserID       int64
	SearchTermID int64
	Summary      string
	Articles     []Article
	CreatedAt    time.Time
	SentAt       *time.Time
}
