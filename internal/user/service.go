package user

import (
	"context"
	"errors"
	"strings"

	"backend-localpulse/internal/db"
	"backend-localpulse/internal/geo"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("user not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// CreateProfile stores a profile under the external auth backend's user id.
// New profiles start with no notification preferences.
func (s *Service) CreateProfile(ctx context.Context, input Profile) (Profile, error) {
	if input.Username == "" {
		input.Username = usernameFromEmail(input.Email)
	}
	input.Preferences = Preferences{Categories: []string{}}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, photo_url, notification_categories, notification_radius_km)
		VALUES ($1,$2,$3,$4,$5,0)
		RETURNING created_at
	`, input.ID, input.Username, input.Email, input.PhotoURL, input.Preferences.Categories)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Profile{}, err
	}
	return input, nil
}

func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, email, COALESCE(photo_url,''), COALESCE(push_token,''),
		       ST_Y(last_location::geometry), ST_X(last_location::geometry),
		       notification_categories, notification_radius_km, created_at
		FROM users WHERE id=$1
	`, id)

	var p Profile
	var lat, lng *float64
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PhotoURL, &p.PushToken,
		&lat, &lng, &p.Preferences.Categories, &p.Preferences.RadiusKm, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if lat != nil && lng != nil {
		p.LastLocation = &geo.Coordinate{Lat: *lat, Lng: *lng}
	}
	if p.Preferences.Categories == nil {
		p.Preferences.Categories = []string{}
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, patch Profile) (Profile, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if patch.Username != "" {
		p.Username = patch.Username
	}
	if patch.PhotoURL != "" {
		p.PhotoURL = patch.PhotoURL
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET username=$2, photo_url=$3 WHERE id=$1
	`, p.ID, p.Username, p.PhotoURL)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// PreferencesPatch updates only the fields that are present, merging with the
// stored preferences.
type PreferencesPatch struct {
	Categories *[]string `json:"categories"`
	RadiusKm   *float64  `json:"radius_km"`
}

func (s *Service) UpdatePreferences(ctx context.Context, id string, patch PreferencesPatch) (Preferences, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return Preferences{}, err
	}
	prefs := p.Preferences
	if patch.Categories != nil {
		prefs.Categories = *patch.Categories
	}
	if patch.RadiusKm != nil && *patch.RadiusKm >= 0 {
		prefs.RadiusKm = *patch.RadiusKm
	}
	if prefs.Categories == nil {
		prefs.Categories = []string{}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET notification_categories=$2, notification_radius_km=$3 WHERE id=$1
	`, id, prefs.Categories, prefs.RadiusKm)
	if err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (s *Service) UpdatePushToken(ctx context.Context, id, token string) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET push_token=$2 WHERE id=$1`, id, token)
	return err
}

// UpdateLastLocation records the user's last known location, the primary
// reference point for notification matching.
func (s *Service) UpdateLastLocation(ctx context.Context, id string, loc geo.Coordinate) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET last_location=ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography
		WHERE id=$1
	`, id, loc.Lng, loc.Lat)
	return err
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
