package notification

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestNotificationHandlers(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now()
	mock.ExpectQuery(`FROM notifications WHERE user_id`).
		WithArgs("user-1").
		WillReturnRows(notificationRows().
			AddRow("n-1", "user-1", TypePost, "New Traffic post nearby", "Accident - Downtown",
				"post-1", nil, nil, "Traffic", nil, false, createdAt))

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectExec(`UPDATE notifications SET is_read=true WHERE id`).
		WithArgs("n-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec(`UPDATE notifications SET is_read=true WHERE user_id`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs("n-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(mock, nil, nil, nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/notifications/", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
	var list []Notification
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Fatalf("decode list: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("unread count status: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/notifications/n-1/read", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark read status: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("read all status: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/notifications/n-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNotificationHandlersRequireAuthenticatedUser(t *testing.T) {
	passthrough := func(c *fiber.Ctx) error { return c.Next() }

	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(nil, nil, nil, nil), passthrough)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/notifications/"},
		{http.MethodGet, "/notifications/unread-count"},
		{http.MethodGet, "/notifications/scheduled"},
		{http.MethodPost, "/notifications/read-all"},
		{http.MethodPost, "/notifications/n-1/read"},
		{http.MethodDelete, "/notifications/n-1"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected unauthorized for %s %s", p.method, p.path)
		}
	}
}

func TestNotificationHandlersIgnoreUserIDParam(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	// Listing scopes to the authenticated user even when the query string
	// names someone else.
	mock.ExpectQuery(`FROM notifications WHERE user_id`).
		WithArgs("user-2").
		WillReturnRows(notificationRows())

	// Deleting another user's notification touches no rows and returns 404.
	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs("n-owned-by-user-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(mock, nil, nil, nil), asUser("user-2"))

	req := httptest.NewRequest(http.MethodGet, "/notifications/?user_id=user-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/notifications/n-owned-by-user-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found deleting another user's notification, got %d", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNotificationHandlersSchedule(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(pgxmock.AnyArg(), "user-1", TypeLocal, "Market reminder", "Farmers market at noon",
			"", pgxmock.AnyArg(), pgxmock.AnyArg(), "Event", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(mock, nil, nil, nil), asUser("user-1"))

	body, _ := json.Marshal(map[string]any{
		"title":         "Market reminder",
		"content":       "Farmers market at noon",
		"scheduled_for": time.Now().Add(2 * time.Hour),
		"category":      "Event",
	})
	req := httptest.NewRequest(http.MethodPost, "/notifications/schedule", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("schedule status: %v", err)
	}
}

func TestNotificationHandlersScheduleBadRequest(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(nil, nil, nil, nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/notifications/schedule", bytes.NewReader([]byte(`{"title":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}
