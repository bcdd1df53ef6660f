package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCategory is used whenever classification cannot produce a better
// answer: short input, transport errors, empty responses.
const DefaultCategory = "General"

// Text below this length is not worth a classification round-trip.
const minTextLength = 20

// Categorizer assigns an app category to free text. Best effort; never errors.
type Categorizer interface {
	Classify(ctx context.Context, text string) string
}

// Static always returns the same category. Used when no classifier backend is
// configured and in tests.
type Static string

func (s Static) Classify(context.Context, string) string {
	if s == "" {
		return DefaultCategory
	}
	return string(s)
}

// HTTPCategorizer calls an external document-classification endpoint and maps
// its topic taxonomy onto the app's categories.
type HTTPCategorizer struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPCategorizer(url, apiKey string) *HTTPCategorizer {
	return &HTTPCategorizer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type classifyRequest struct {
	Document struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"document"`
}

type classifyResponse struct {
	Categories []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"categories"`
}

func (h *HTTPCategorizer) Classify(ctx context.Context, text string) string {
	if len(strings.TrimSpace(text)) < minTextLength {
		return DefaultCategory
	}

	var reqBody classifyRequest
	reqBody.Document.Type = "PLAIN_TEXT"
	reqBody.Document.Content = text

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return DefaultCategory
	}

	url := h.url
	if h.apiKey != "" {
		url += "?key=" + h.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return DefaultCategory
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("classify request failed")
		return DefaultCategory
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Warn("classify request rejected")
		return DefaultCategory
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return DefaultCategory
	}
	if len(parsed.Categories) == 0 {
		return DefaultCategory
	}
	return mapTopic(parsed.Categories[0].Name)
}

// mapTopic folds the classifier's topic taxonomy into the handful of
// categories the app exposes.
func mapTopic(topic string) string {
	topic = strings.ToLower(topic)
	switch {
	case containsAny(topic, "traffic", "transport", "autos", "vehicle"):
		return "Traffic"
	case containsAny(topic, "crime", "law", "public safety", "emergency", "sensitive"):
		return "Safety"
	case containsAny(topic, "event", "entertainment", "arts", "food", "sports", "music"):
		return "Event"
	case containsAny(topic, "construction", "real estate", "utilities", "business", "industrial"):
		return "Infrastructure"
	case containsAny(topic, "weather", "climate", "environment", "science"):
		return "Weather"
	default:
		return DefaultCategory
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
