package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/immcad/backend/internal/config"
	"github.com/immcad/backend/internal/sources"
)

// Per-source run outcomes.
const (
	OutcomeUpdated       = "updated"
	OutcomeNotModified   = "not_modified"
	OutcomeUnchangedBody = "unchanged_body"
	OutcomeBlocked       = "blocked"
	OutcomeFailed        = "failed"
)

// SourceRecord is the per-source result inside a run report.
type SourceRecord struct {
	SourceID     string `json:"source_id"`
	Outcome      string `json:"outcome"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	PolicyReason string `json:"policy_reason,omitempty"`
	Error        string `json:"error,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
}

// Report aggregates one ingestion run.
type Report struct {
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Total         int            `json:"total"`
	Succeeded     int            `json:"succeeded"`
	NotModified   int            `json:"not_modified"`
	UnchangedBody int            `json:"unchanged_body"`
	Blocked       int            `json:"blocked"`
	Failed        int            `json:"failed"`
	Records       []SourceRecord `json:"records"`
}

// Engine runs cadence-selected conditional fetches over the source catalog.
// It is the sole mutator of the checkpoint store.
type Engine struct {
	registry    *sources.Registry
	policies    *sources.PolicySet
	fetchPolicy *FetchPolicy
	store       *CheckpointStore
	client      *http.Client
	environment string
	logger      *log.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewEngine wires an ingestion engine. A nil client uses http.DefaultClient;
// per-request timeouts come from the fetch policy.
func NewEngine(reg *sources.Registry, policies *sources.PolicySet, fp *FetchPolicy, store *CheckpointStore, client *http.Client, environment string) *Engine {
	if client == nil {
		client = &http.Client{}
	}
	if fp == nil {
		fp = DefaultFetchPolicy()
	}
	return &Engine{
		registry:    reg,
		policies:    policies,
		fetchPolicy: fp,
		store:       store,
		client:      client,
		environment: environment,
		logger:      log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Run executes one ingestion batch. cadence filters the selection when
// non-empty; sourceIDs restricts it to the given ids (intersected with the
// registry). Sources are processed sequentially; the checkpoint store is
// flushed once after the batch.
func (e *Engine) Run(ctx context.Context, cadence sources.Cadence, sourceIDs []string) (*Report, error) {
	selected := e.selectSources(cadence, sourceIDs)

	report := &Report{StartedAt: e.now().UTC()}
	for _, entry := range selected {
		rec := e.processSource(ctx, entry)
		report.Records = append(report.Records, rec)
		report.Total++
		switch rec.Outcome {
		case OutcomeUpdated:
			report.Succeeded++
		case OutcomeNotModified:
			report.NotModified++
		case OutcomeUnchangedBody:
			report.UnchangedBody++
		case OutcomeBlocked:
			report.Blocked++
		case OutcomeFailed:
			report.Failed++
		}
	}
	report.FinishedAt = e.now().UTC()

	if err := e.store.Flush(); err != nil {
		return report, fmt.Errorf("ingest: flush checkpoints: %w", err)
	}
	return report, nil
}

func (e *Engine) selectSources(cadence sources.Cadence, sourceIDs []string) []sources.Entry {
	var selected []sources.Entry
	if len(sourceIDs) > 0 {
		for _, id := range sourceIDs {
			if entry := e.registry.Get(id); entry != nil {
				selected = append(selected, *entry)
			}
		}
		return selected
	}
	for _, entry := range e.registry.All() {
		if cadence != "" && entry.UpdateCadence != cadence {
			continue
		}
		selected = append(selected, entry)
	}
	return selected
}

func (e *Engine) processSource(ctx context.Context, entry sources.Entry) SourceRecord {
	rec := SourceRecord{SourceID: entry.SourceID}

	if reason := e.policyBlockReason(entry.SourceID); reason != "" {
		rec.Outcome = OutcomeBlocked
		rec.PolicyReason = reason
		e.logger.Printf("blocked %s: %s", entry.SourceID, reason)
		return rec
	}

	rule := e.fetchPolicy.ForSource(entry.SourceID)
	prior, hasPrior := e.store.Get(entry.SourceID)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= rule.MaxRetries; attempt++ {
		if attempt > 0 {
			e.sleep(rule.Backoff(attempt - 1))
		}
		attempts++

		status, body, etag, lastModified, err := e.fetchOnce(ctx, entry.URL, rule, prior, hasPrior)
		if err != nil {
			lastErr = err
			continue // transport errors are retryable
		}
		rec.HTTPStatus = status
		rec.Attempts = attempts

		switch {
		case status == http.StatusNotModified:
			cp := prior
			cp.LastHTTPStatus = status
			cp.LastSuccessAt = e.now().UTC()
			e.store.Put(entry.SourceID, cp)
			rec.Outcome = OutcomeNotModified
			return rec

		case status >= 200 && status < 300:
			sum := sha256.Sum256(body)
			checksum := hex.EncodeToString(sum[:])
			cp := Checkpoint{
				ETag:           etag,
				LastModified:   lastModified,
				ChecksumSHA256: checksum,
				LastHTTPStatus: status,
				LastSuccessAt:  e.now().UTC(),
			}
			if hasPrior && prior.ChecksumSHA256 == checksum {
				rec.Outcome = OutcomeUnchangedBody
			} else {
				rec.Outcome = OutcomeUpdated
			}
			e.store.Put(entry.SourceID, cp)
			return rec

		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("http %d", status)
			continue

		default: // other 4xx are not retried
			rec.Outcome = OutcomeFailed
			rec.Error = fmt.Sprintf("http %d", status)
			e.recordFailureStatus(entry.SourceID, status, hasPrior, prior)
			return rec
		}
	}

	rec.Outcome = OutcomeFailed
	rec.Attempts = attempts
	if lastErr != nil {
		rec.Error = lastErr.Error()
	}
	e.logger.Printf("failed %s after %d attempts: %v", entry.SourceID, attempts, lastErr)
	return rec
}

// recordFailureStatus updates only last_http_status on an existing
// checkpoint. Failures never disturb etag, checksum, or success times, and
// never create a checkpoint for a source that has none.
func (e *Engine) recordFailureStatus(sourceID string, status int, hasPrior bool, prior Checkpoint) {
	if !hasPrior {
		return
	}
	prior.LastHTTPStatus = status
	e.store.Put(sourceID, prior)
}

func (e *Engine) fetchOnce(ctx context.Context, rawURL string, rule FetchRule, prior Checkpoint, hasPrior bool) (status int, body []byte, etag, lastModified string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, rule.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, "", "", err
	}
	if hasPrior {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, "", "", err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", "", err
	}
	return resp.StatusCode, body, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

func (e *Engine) policyBlockReason(sourceID string) string {
	if e.policies == nil {
		return ""
	}
	p := e.policies.ForSource(sourceID)
	production := config.IsProductionEnv(e.environment)
	if p == nil {
		if production {
			return "source_not_in_policy_for_production"
		}
		return ""
	}
	if production {
		if !p.ProductionIngestAllowed {
			return "production_ingest_blocked_by_policy"
		}
		return ""
	}
	if !p.InternalIngestAllowed {
		return "internal_ingest_blocked_by_policy"
	}
	return ""
}
