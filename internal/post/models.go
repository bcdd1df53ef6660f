package post

import (
	"time"

	"backend-localpulse/internal/geo"
)

type Post struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	Category     string          `json:"category"`
	Location     *geo.Coordinate `json:"location,omitempty"`
	LocationName string          `json:"location_name"`
	AuthorID     string          `json:"author_id"`
	AuthorName   string          `json:"author_name"`
	PhotoURL     string          `json:"photo_url,omitempty"`
	IsPublic     bool            `json:"is_public"`
	Likes        int             `json:"likes"`
	Verified     int             `json:"verified"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Score is the popularity ranking key.
func (p Post) Score() int {
	return p.Likes + p.Verified
}
