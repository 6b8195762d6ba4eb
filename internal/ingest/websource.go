package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"eventdesk/internal/models"
)

// WebSource pulls a JSON listing of announcements from an aggregator feed.
// Each configured url is expected to serve an array of items with title,
// description, location, date and link fields.
type WebSource struct {
	url    string
	client *http.Client
}

func NewWebSource(url string) *WebSource {
	return &WebSource{url: url, client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *WebSource) Name() string { return "web:" + s.url }

type feedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	DateText    string `json:"date"`
	StartsAt    string `json:"starts_at"`
	URL         string `json:"url"`
}

func (s *WebSource) Fetch(ctx context.Context) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", s.url, resp.StatusCode)
	}
	var items []feedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.url, err)
	}
	out := make([]RawItem, 0, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		raw := RawItem{
			Title:       it.Title,
			Description: it.Description,
			Location:    it.Location,
			DateText:    it.DateText,
			SourceURL:   it.URL,
			Source:      models.SourceParser,
		}
		if it.StartsAt != "" {
			if t, err := time.Parse(time.RFC3339, it.StartsAt); err == nil {
				utc := t.UTC()
				raw.EventAt = &utc
			}
		}
		out = append(out, raw)
	}
	return out, nil
}
