package user

import (
	"time"

	"backend-localpulse/internal/geo"
)

// Preferences controls which new posts a user is notified about. RadiusKm 0
// means no distance constraint.
type Preferences struct {
	Categories []string `json:"categories"`
	RadiusKm   float64  `json:"radius_km"`
}

// Radius returns the preference's distance constraint; malformed values
// collapse to unbounded rather than failing matching.
func (p Preferences) Radius() geo.Radius {
	return geo.Bounded(p.RadiusKm)
}

type Profile struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PhotoURL     string          `json:"photo_url,omitempty"`
	PushToken    string          `json:"push_token,omitempty"`
	LastLocation *geo.Coordinate `json:"last_location,omitempty"`
	Preferences  Preferences     `json:"notification_preferences"`
	CreatedAt    time.Time       `json:"created_at"`
}
