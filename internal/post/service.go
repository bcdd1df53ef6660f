package post

import (
	"context"
	"errors"

	"backend-localpulse/internal/classify"
	"backend-localpulse/internal/db"
	"backend-localpulse/internal/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("post not found")
var ErrNotAuthor = errors.New("not the post author")

const defaultFeedLimit = 50

type Service struct {
	db         db.Querier
	categorize classify.Categorizer
}

func NewService(db db.Querier, categorize classify.Categorizer) *Service {
	if categorize == nil {
		categorize = classify.Static(classify.DefaultCategory)
	}
	return &Service{db: db, categorize: categorize}
}

func (s *Service) CreatePost(ctx context.Context, input Post) (Post, error) {
	input.ID = uuid.NewString()
	if input.Category == "" {
		input.Category = s.categorize.Classify(ctx, input.Title+" "+input.Content)
	}
	if input.LocationName == "" {
		input.LocationName = "Unknown location"
	}
	input.Likes = 0
	input.Verified = 0

	lat, lng := coordArgs(input.Location)
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (id, title, content, category, location, location_name, author_id, author_name, photo_url, is_public, likes, verified)
		VALUES ($1,$2,$3,$4,
		        CASE WHEN $5::float8 IS NULL THEN NULL
		             ELSE ST_SetSRID(ST_MakePoint($6,$5), 4326)::geography END,
		        $7,$8,$9,$10,$11,0,0)
		RETURNING created_at
	`, input.ID, input.Title, input.Content, input.Category, lat, lng,
		input.LocationName, input.AuthorID, input.AuthorName, input.PhotoURL, input.IsPublic)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Post{}, err
	}
	return input, nil
}

func (s *Service) GetPost(ctx context.Context, id string) (Post, error) {
	row := s.db.QueryRow(ctx, selectColumns+` FROM posts WHERE id=$1`, id)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// UpdatePost applies an author-owned edit. Only title, content, category and
// photo are mutable; location and authorship are fixed at creation.
func (s *Service) UpdatePost(ctx context.Context, id, authorID string, patch Post) (Post, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.AuthorID != authorID {
		return Post{}, ErrNotAuthor
	}
	if patch.Title != "" {
		p.Title = patch.Title
	}
	if patch.Content != "" {
		p.Content = patch.Content
	}
	if patch.Category != "" {
		p.Category = patch.Category
	}
	if patch.PhotoURL != "" {
		p.PhotoURL = patch.PhotoURL
	}

	_, err = s.db.Exec(ctx, `
		UPDATE posts SET title=$2, content=$3, category=$4, photo_url=$5 WHERE id=$1
	`, p.ID, p.Title, p.Content, p.Category, p.PhotoURL)
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *Service) DeletePost(ctx context.Context, id, authorID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id=$1 AND author_id=$2`, id, authorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Like increments the like counter atomically in the store; any viewer may
// call it.
func (s *Service) Like(ctx context.Context, id string) (int, error) {
	var likes int
	err := s.db.QueryRow(ctx, `UPDATE posts SET likes = likes + 1 WHERE id=$1 RETURNING likes`, id).Scan(&likes)
	return likes, err
}

func (s *Service) Verify(ctx context.Context, id string) (int, error) {
	var verified int
	err := s.db.QueryRow(ctx, `UPDATE posts SET verified = verified + 1 WHERE id=$1 RETURNING verified`, id).Scan(&verified)
	return verified, err
}

// PublicPosts fetches the feed candidates. Radius filtering happens here, at
// fetch time, and nowhere else: a bounded radius with a valid center becomes a
// store predicate, an unbounded one fetches broad.
func (s *Service) PublicPosts(ctx context.Context, center *geo.Coordinate, radius geo.Radius, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	if km, bounded := radius.Km(); bounded && center != nil && center.Valid() {
		rows, err := s.db.Query(ctx, selectColumns+`
			FROM posts
			WHERE is_public
			  AND location IS NOT NULL
			  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
			ORDER BY created_at DESC
			LIMIT $4
		`, center.Lng, center.Lat, km*1000, limit)
		if err != nil {
			return nil, err
		}
		return scanPosts(rows)
	}

	rows, err := s.db.Query(ctx, selectColumns+`
		FROM posts
		WHERE is_public
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// LatestAuthorLocation returns the location of the author's most recent
// located post, or nil when they have none.
func (s *Service) LatestAuthorLocation(ctx context.Context, authorID string) (*geo.Coordinate, error) {
	var lat, lng float64
	err := s.db.QueryRow(ctx, `
		SELECT ST_Y(location::geometry), ST_X(location::geometry)
		FROM posts
		WHERE author_id=$1 AND location IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, authorID).Scan(&lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &geo.Coordinate{Lat: lat, Lng: lng}, nil
}

const selectColumns = `
	SELECT id, title, content, category,
	       ST_Y(location::geometry), ST_X(location::geometry), location_name,
	       author_id, author_name, COALESCE(photo_url,''), is_public, likes, verified, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var p Post
	var lat, lng *float64
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Category, &lat, &lng, &p.LocationName,
		&p.AuthorID, &p.AuthorName, &p.PhotoURL, &p.IsPublic, &p.Likes, &p.Verified, &p.CreatedAt)
	if err != nil {
		return Post{}, err
	}
	if lat != nil && lng != nil {
		p.Location = &geo.Coordinate{Lat: *lat, Lng: *lng}
	}
	return p, nil
}

func scanPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func coordArgs(c *geo.Coordinate) (lat, lng *float64) {
	if c == nil || !c.Valid() {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}
