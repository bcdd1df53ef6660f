package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Dispatcher delivers a push notification to a device token. Best-effort:
// failures are reported to the caller for logging, never retried here.
type Dispatcher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// ExpoDispatcher posts messages to an Expo-compatible push endpoint. Outbound
// sends are rate limited so a popular post cannot flood the gateway.
type ExpoDispatcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewExpoDispatcher(url string, perSecond float64) *ExpoDispatcher {
	if perSecond <= 0 {
		perSecond = 20
	}
	return &ExpoDispatcher{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)),
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type pushReceipt struct {
	Data struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
}

func (d *ExpoDispatcher) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(pushMessage{
		To:    token,
		Sound: "default",
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}

	var receipt pushReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return err
	}
	if receipt.Data.Status != "ok" {
		return fmt.Errorf("push not accepted: %s", receipt.Data.Message)
	}
	return nil
}
