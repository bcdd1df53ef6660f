package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backend-localpulse/internal/db"
	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/metrics"
	"backend-localpulse/internal/post"
	"backend-localpulse/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("notification not found")

type Service struct {
	db        db.Querier
	hub       *stream.Hub
	push      Dispatcher
	collector *metrics.Collector
}

func NewService(db db.Querier, hub *stream.Hub, push Dispatcher, collector *metrics.Collector) *Service {
	return &Service{db: db, hub: hub, push: push, collector: collector}
}

// NotifyUsersAboutPost runs the notification pass for a new post: load
// subscribers whose category preferences contain the post's category, match
// them by proximity preference, then create an in-app notification and a
// fire-and-forget push per match. A failure for one user never blocks the
// rest; the return value counts users notified in-app.
func (s *Service) NotifyUsersAboutPost(ctx context.Context, p post.Post) (int, error) {
	prefs, locations, err := s.subscribers(ctx, p.Category)
	if err != nil {
		return 0, err
	}

	matches := MatchUsers(ctx, p, prefs, s.locateUser(locations))
	if s.collector != nil {
		s.collector.RecordMatches(len(matches))
	}

	notified := 0
	for _, m := range matches {
		n := Notification{
			UserID:        m.UserID,
			Type:          TypePost,
			Title:         "New " + p.Category + " post nearby",
			Content:       p.Title + " - " + p.LocationName,
			RelatedPostID: p.ID,
			Location:      p.Location,
			Category:      p.Category,
		}
		created, err := s.Create(ctx, n)
		if err != nil {
			logrus.WithError(err).WithField("user_id", m.UserID).Warn("create notification failed")
			continue
		}
		notified++
		if s.collector != nil {
			s.collector.RecordNotificationSent()
		}
		s.broadcast(created)

		if m.PushToken != "" && s.push != nil {
			go s.dispatchPush(m, n.Title, n.Content)
		}
	}
	return notified, nil
}

// Each push runs in its own goroutine with its own error boundary; duplicate
// or lost pushes are tolerated, blocked batches are not.
func (s *Service) dispatchPush(m Match, title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.push.Send(ctx, m.PushToken, title, body, map[string]string{"postId": m.Post.ID})
	if err != nil {
		logrus.WithError(err).WithField("user_id", m.UserID).Warn("push dispatch failed")
		if s.collector != nil {
			s.collector.RecordPushFailure()
		}
	}
}

func (s *Service) broadcast(n Notification) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	s.hub.Broadcast(n.UserID, payload)
}

// subscribers returns matcher preferences for every user subscribed to the
// category, plus their stored last known locations.
func (s *Service) subscribers(ctx context.Context, category string) ([]Preference, map[string]*geo.Coordinate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, notification_categories, notification_radius_km, COALESCE(push_token,''),
		       ST_Y(last_location::geometry), ST_X(last_location::geometry)
		FROM users
		WHERE $1 = ANY(notification_categories)
	`, category)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var prefs []Preference
	locations := map[string]*geo.Coordinate{}
	for rows.Next() {
		var pref Preference
		var lat, lng *float64
		if err := rows.Scan(&pref.UserID, &pref.Categories, &pref.RadiusKm, &pref.PushToken, &lat, &lng); err != nil {
			return nil, nil, err
		}
		prefs = append(prefs, pref)
		if lat != nil && lng != nil {
			locations[pref.UserID] = &geo.Coordinate{Lat: *lat, Lng: *lng}
		}
	}
	return prefs, locations, rows.Err()
}

// locateUser prefers the stored last known location and falls back to the
// user's most recent located post.
func (s *Service) locateUser(known map[string]*geo.Coordinate) LocateFunc {
	return func(ctx context.Context, userID string) (*geo.Coordinate, error) {
		if loc, ok := known[userID]; ok && loc.Valid() {
			return loc, nil
		}

		var lat, lng float64
		err := s.db.QueryRow(ctx, `
			SELECT ST_Y(location::geometry), ST_X(location::geometry)
			FROM posts
			WHERE author_id=$1 AND location IS NOT NULL
			ORDER BY created_at DESC
			LIMIT 1
		`, userID).Scan(&lat, &lng)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &geo.Coordinate{Lat: lat, Lng: lng}, nil
	}
}

func (s *Service) Create(ctx context.Context, input Notification) (Notification, error) {
	input.ID = uuid.NewString()
	input.IsRead = false

	lat, lng := coordArgs(input.Location)
	row := s.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, content, related_post_id, location, category, scheduled_for, is_read)
		VALUES ($1,$2,$3,$4,$5,$6,
		        CASE WHEN $7::float8 IS NULL THEN NULL
		             ELSE ST_SetSRID(ST_MakePoint($8,$7), 4326)::geography END,
		        $9,$10,false)
		RETURNING created_at
	`, input.ID, input.UserID, input.Type, input.Title, input.Content, input.RelatedPostID,
		lat, lng, input.Category, input.ScheduledFor)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Notification{}, err
	}
	return input, nil
}

func (s *Service) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.Query(ctx, selectColumns+`
		FROM notifications WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read
	`, userID).Scan(&count)
	return count, err
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read=true WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET is_read=true WHERE user_id=$1 AND NOT is_read`, userID)
	return err
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Schedule stores a local notification to surface at a future time.
func (s *Service) Schedule(ctx context.Context, userID, title, content string, at time.Time, category string, loc *geo.Coordinate) (Notification, error) {
	return s.Create(ctx, Notification{
		UserID:       userID,
		Type:         TypeLocal,
		Title:        title,
		Content:      content,
		Category:     category,
		Location:     loc,
		ScheduledFor: &at,
	})
}

func (s *Service) Scheduled(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.Query(ctx, selectColumns+`
		FROM notifications
		WHERE user_id=$1 AND type=$2 AND scheduled_for >= now()
		ORDER BY scheduled_for ASC
	`, userID, TypeLocal)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

const selectColumns = `
	SELECT id, user_id, type, title, content, COALESCE(related_post_id,''),
	       ST_Y(location::geometry), ST_X(location::geometry),
	       COALESCE(category,''), scheduled_for, is_read, created_at`

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var lat, lng *float64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Content, &n.RelatedPostID,
			&lat, &lng, &n.Category, &n.ScheduledFor, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			n.Location = &geo.Coordinate{Lat: *lat, Lng: *lng}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func coordArgs(c *geo.Coordinate) (lat, lng *float64) {
	if c == nil || !c.Valid() {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}
