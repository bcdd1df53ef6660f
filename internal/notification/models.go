package notification

import (
	"time"

	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/post"
)

const (
	TypeLocal  = "local"
	TypeAlert  = "alert"
	TypePost   = "post"
	TypeSystem = "system"
)

type Notification struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"type"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	RelatedPostID string          `json:"related_post_id,omitempty"`
	Location      *geo.Coordinate `json:"location,omitempty"`
	Category      string          `json:"category,omitempty"`
	ScheduledFor  *time.Time      `json:"scheduled_for,omitempty"`
	IsRead        bool            `json:"is_read"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Preference is one user's notification subscription as seen by the matcher.
type Preference struct {
	UserID     string
	Categories []string
	RadiusKm   float64
	PushToken  string
}

// Radius treats zero, negative or otherwise malformed values as "no distance
// constraint".
func (p Preference) Radius() geo.Radius {
	return geo.Bounded(p.RadiusKm)
}

// Match pairs a user with a post they should be notified about.
type Match struct {
	UserID     string
	Post       post.Post
	DistanceKm float64
	PushToken  string
}
