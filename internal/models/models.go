package models

import "time"

// User represents an account within the LinkStash platform.
type User struct {
	ID              string
	Username        string
	Email           string
	Password        string
	DisplayName     string
	AvatarURL       string
	IsProfilePublic bool
	CreatedAt       time.Time
	LastActive      time.Time
}

// UserSummary carries the public-safe identity fields exposed to other users.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// FriendRequest is a directional, unconsumed invitation from one user to another.
type FriendRequest struct {
	ToID        string
	FromID      string
	RequestedAt time.Time
}

// Content type values accepted for saved items.
const (
	ContentTypeArticle = "article"
	ContentTypeVideo   = "video"
	ContentTypeOther   = "other"
)

// ContentItem is a saved piece of content together with its extracted metadata.
// The summary is produced externally and stored opaquely.
type ContentItem struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"ownerId"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	URL            string     `json:"url"`
	ContentType    string     `json:"contentType"`
	Domain         string     `json:"domain"`
	Tags           []string   `json:"tags"`
	QualityScore   float64    `json:"qualityScore"`
	IsPublic       bool       `json:"isPublic"`
	Author         string     `json:"author,omitempty"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
	ReadingMinutes int        `json:"readingTimeMinutes,omitempty"`
	Thumbnail      string     `json:"thumbnail,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ContentFilter narrows content listings. Zero values match everything.
type ContentFilter struct {
	ContentType string
	Domain      string
}

// DomainCount pairs a domain with the number of saved items pointing at it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// ContentStats aggregates a user's saved-content activity.
type ContentStats struct {
	TotalContent        int           `json:"totalContent"`
	ArticleCount        int           `json:"articleCount"`
	VideoCount          int           `json:"videoCount"`
	OtherCount          int           `json:"otherCount"`
	AverageQualityScore float64       `json:"averageQualityScore"`
	TotalReadingTime    int           `json:"totalReadingTime"`
	TopDomains          []DomainCount `json:"topDomains"`
	RecentCount         int           `json:"recentActivity"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
