package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"eventdesk/internal/config"
	"eventdesk/internal/models"
	"eventdesk/internal/store"
)

// RawItem is one unscored announcement pulled from a source, before the
// classifier has seen it.
type RawItem struct {
	Title       string
	Description string
	Location    string
	DateText    string
	EventAt     *time.Time
	SourceURL   string
	Source      models.EventSource
}

// Source yields candidate announcements. Implementations own their transport
// (HTTP listings, a partner mailbox) and must be safe to call repeatedly.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawItem, error)
}

// Analysis is the classifier's verdict on one item.
type Analysis struct {
	IsITRelated  bool   `json:"is_it_related"`
	Score        int    `json:"score"`
	Summary      string `json:"summary"`
	RequiredRank int    `json:"required_rank"`
}

type Classifier interface {
	Classify(ctx context.Context, item RawItem) (Analysis, error)
}

// HTTPClassifier posts items to an external scoring endpoint. Any failure
// degrades to a zero-score verdict so a classifier outage never drops the
// whole scan cycle.
type HTTPClassifier struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPClassifier(cfg config.Config) *HTTPClassifier {
	return &HTTPClassifier{
		URL:    cfg.ClassifierURL,
		Token:  cfg.ClassifierToken,
		Client: &http.Client{Timeout: time.Duration(cfg.ClassifierTimeoutSec) * time.Second},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, item RawItem) (Analysis, error) {
	if c.URL == "" {
		return Analysis{}, errors.New("classifier url not configured")
	}
	payload, err := json.Marshal(map[string]string{
		"title":       item.Title,
		"description": item.Description,
		"location":    item.Location,
		"date_text":   item.DateText,
	})
	if err != nil {
		return Analysis{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Analysis{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Analysis{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}
	var a Analysis
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// Runner drives scan cycles: pull from every source, score, and file
// everything above the threshold into the moderation queue as new.
type Runner struct {
	cfg        config.Config
	st         *store.Store
	sources    []Source
	classifier Classifier
}

func NewRunner(cfg config.Config, st *store.Store, classifier Classifier, sources ...Source) *Runner {
	return &Runner{cfg: cfg, st: st, sources: sources, classifier: classifier}
}

// RunOnce executes one full scan cycle and reports how many events were
// created. A failing source is logged and skipped; duplicates are expected
// and not errors.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	created := 0
	for _, src := range r.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			log.Printf("ingest source failed source=%s err=%v", src.Name(), err)
			continue
		}
		for _, item := range items {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			if r.ingestOne(ctx, src.Name(), item) {
				created++
			}
		}
	}
	return created, nil
}

func (r *Runner) ingestOne(ctx context.Context, sourceName string, item RawItem) bool {
	a, err := r.classifier.Classify(ctx, item)
	if err != nil {
		log.Printf("classify failed source=%s title=%q err=%v", sourceName, item.Title, err)
		a = Analysis{}
	}
	if !a.IsITRelated || a.Score < r.cfg.MinIngestScore {
		return false
	}
	rank := a.RequiredRank
	if rank < 1 || rank > 5 {
		rank = r.cfg.DefaultEventRank
	}
	analysisJSON, _ := json.Marshal(a)
	src := item.Source
	if src == "" {
		src = models.SourceParser
	}
	_, err = r.st.CreateEvent(ctx, store.EventCandidate{
		Title:        strings.TrimSpace(item.Title),
		Description:  item.Description,
		Location:     item.Location,
		DateText:     item.DateText,
		EventAt:      item.EventAt,
		SourceURL:    item.SourceURL,
		Summary:      a.Summary,
		AnalysisJSON: string(analysisJSON),
		Score:        a.Score,
		RequiredRank: rank,
		Source:       src,
		Status:       models.EventNew,
	})
	if errors.Is(err, store.ErrConflict) {
		return false
	}
	if err != nil {
		log.Printf("ingest create failed source=%s title=%q err=%v", sourceName, item.Title, err)
		return false
	}
	return true
}

// Run loops RunOnce on the configured interval until the context ends. A
// zero interval disables the loop; RunOnce stays available for the manual
// trigger.
func (r *Runner) Run(ctx context.Context) {
	if r.cfg.ScanIntervalMin <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(r.cfg.ScanIntervalMin) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				log.Printf("scan cycle aborted err=%v", err)
				continue
			}
			log.Printf("scan cycle complete created=%d", n)
		}
	}
}
