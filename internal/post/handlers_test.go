package post

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-localpulse/internal/geo"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

type stubNotifier struct {
	notified chan Post
}

func (n *stubNotifier) NotifyUsersAboutPost(_ context.Context, p Post) (int, error) {
	n.notified <- p
	return 1, nil
}

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestPostHandlersCreateAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now()
	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(pgxmock.AnyArg(), "Road closed", "Pine St is blocked", "Traffic",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "Downtown", "user-1", "Ana", "", true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	mock.ExpectQuery(`SELECT id, title, content, category,`).
		WithArgs("post-1").
		WillReturnRows(postRows().
			AddRow("post-1", "Road closed", "Pine St is blocked", "Traffic", fptr(47.62), fptr(-122.35), "Downtown",
				"user-1", "Ana", "", true, 0, 0, createdAt))

	notifier := &stubNotifier{notified: make(chan Post, 1)}
	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), notifier, nil, asUser("user-1"))

	body, _ := json.Marshal(Post{
		Title:        "Road closed",
		Content:      "Pine St is blocked",
		Category:     "Traffic",
		Location:     &geo.Coordinate{Lat: 47.62, Lng: -122.35},
		LocationName: "Downtown",
		AuthorID:     "user-1",
		AuthorName:   "Ana",
		IsPublic:     true,
	})
	req := httptest.NewRequest(http.MethodPost, "/posts/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post status: %v", err)
	}

	select {
	case p := <-notifier.notified:
		if p.Title != "Road closed" {
			t.Fatalf("unexpected notified post: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected notifier to run for a public post")
	}

	req = httptest.NewRequest(http.MethodGet, "/posts/post-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get post status: %v", err)
	}
}

func TestPostHandlersCreatePrivateSkipsNotify(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(pgxmock.AnyArg(), "Note", "Private note", "General",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "Unknown location", "user-1", "", "", false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	notifier := &stubNotifier{notified: make(chan Post, 1)}
	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), notifier, nil, asUser("user-1"))

	body, _ := json.Marshal(Post{Title: "Note", Content: "Private note", Category: "General", AuthorID: "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/posts/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post status: %v", err)
	}

	select {
	case <-notifier.notified:
		t.Fatalf("private post must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPostHandlersBadRequest(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(nil, nil), nil, nil, asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/posts/", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestPostHandlersCreateParseError(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(nil, nil), nil, nil, asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/posts/", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestPostHandlersGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, content, category,`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), nil, nil, asUser("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/posts/missing", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
}

func TestPostHandlersUpdateForbidden(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, content, category,`).
		WithArgs("post-1").
		WillReturnRows(postRows().
			AddRow("post-1", "T", "C", "General", nil, nil, "Somewhere",
				"owner", "Owner", "", true, 0, 0, time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), nil, nil, asUser("intruder"))

	body, _ := json.Marshal(Post{Title: "X"})
	req := httptest.NewRequest(http.MethodPatch, "/posts/post-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden")
	}
}

func TestPostHandlersDeleteAndLike(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM posts`).WithArgs("post-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`UPDATE posts SET likes = likes \+ 1`).WithArgs("post-2").
		WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(4))
	mock.ExpectQuery(`UPDATE posts SET verified = verified \+ 1`).WithArgs("post-2").
		WillReturnRows(pgxmock.NewRows([]string{"verified"}).AddRow(2))

	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), nil, nil, asUser("user-1"))

	req := httptest.NewRequest(http.MethodDelete, "/posts/post-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/posts/post-2/like", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("like status: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/posts/post-2/verify", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status: %v", err)
	}
}

func TestPostHandlersNearby(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(-122.35, 47.62, 2000.0, 50).
		WillReturnRows(postRows().
			AddRow("post-1", "T", "C", "Traffic", fptr(47.63), fptr(-122.34), "Near",
				"user-1", "Ana", "", true, 2, 1, time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), nil, nil, asUser("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/posts/nearby?lat=47.62&lng=-122.35&radius_km=2", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("nearby status: %v", err)
	}

	var posts []Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "post-1" {
		t.Fatalf("unexpected nearby posts: %+v", posts)
	}
}

func TestPostHandlersNearbyInvalidCenterDegradesToBroad(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	app := fiber.New()
	RegisterRoutes(app.Group("/posts"), NewService(mock, nil), nil, nil, asUser("user-1"))

	// A missing or garbage center must not anchor the bounded radius at (0,0).
	for _, query := range []string{
		"radius_km=2",
		"lat=garbage&lng=-122.35&radius_km=2",
		"lat=91&lng=-122.35&radius_km=2",
	} {
		mock.ExpectQuery(`WHERE is_public`).
			WithArgs(50).
			WillReturnRows(postRows())

		req := httptest.NewRequest(http.MethodGet, "/posts/nearby?"+query, nil)
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("nearby status for %q: %v", query, err)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
