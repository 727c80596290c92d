package caselaw

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Feed endpoints per source. Overridable for tests and mirrors.
type FeedEndpoints struct {
	SCC string
	FC  string
	FCA string
}

// DefaultFeedEndpoints points at the public decision feeds.
func DefaultFeedEndpoints() FeedEndpoints {
	return FeedEndpoints{
		SCC: "https://decisions.scc-csc.ca/scc-csc/en/d/rss.do?json=1",
		FC:  "https://decisions.fct-cf.gc.ca/fc-cf/en/rss.do",
		FCA: "https://decisions.fca-caf.gc.ca/fca-caf/en/rss.do",
	}
}

// OfficialClient fans out to the official court feeds concurrently and
// merges whatever parses.
type OfficialClient struct {
	endpoints FeedEndpoints
	client    *http.Client
	timeout   time.Duration
	logger    *log.Logger
}

// NewOfficialClient builds the fan-out client. A nil httpClient uses a
// default with the per-source timeout applied via request contexts.
func NewOfficialClient(endpoints FeedEndpoints, httpClient *http.Client, timeout time.Duration) *OfficialClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OfficialClient{
		endpoints: endpoints,
		client:    httpClient,
		timeout:   timeout,
		logger:    log.New(log.Writer(), "[CASELAW] ", log.LstdFlags),
	}
}

// courtSources maps a requested court filter to the feed sources consulted.
func courtSources(court string) []string {
	switch strings.ToLower(strings.TrimSpace(court)) {
	case "scc":
		return []string{SourceSCC}
	case "fc", "fct", "fc-cf":
		return []string{SourceFC}
	case "fca", "caf", "fca-caf":
		return []string{SourceFCA}
	default:
		return []string{SourceSCC, SourceFC, SourceFCA}
	}
}

// Search fetches the mapped sources concurrently and returns every valid
// record. Per-source failures are collected; the call fails with
// SourceUnavailableError only when no source yielded records.
func (c *OfficialClient) Search(ctx context.Context, court string) ([]Decision, error) {
	sources := courtSources(court)

	var (
		mu       sync.Mutex
		decided  []Decision
		failures []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			records, err := c.fetchSource(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Printf("source failed: source=%s err=%v", src, err)
				failures = append(failures, fmt.Sprintf("%s: %v", src, err))
				return nil // isolate per-source failures
			}
			decided = append(decided, Valid(records)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(decided) == 0 {
		return nil, &SourceUnavailableError{
			Reason:    "all official case-law sources failed",
			PerSource: failures,
		}
	}
	return decided, nil
}

func (c *OfficialClient) fetchSource(ctx context.Context, sourceID string) ([]Decision, error) {
	var endpoint string
	switch sourceID {
	case SourceSCC:
		endpoint = c.endpoints.SCC
	case SourceFC:
		endpoint = c.endpoints.FC
	case SourceFCA:
		endpoint = c.endpoints.FCA
	default:
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured for %s", sourceID)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	switch sourceID {
	case SourceSCC:
		return ParseSCCFeed(body)
	case SourceFC:
		return ParseDecisiaFeed(body, SourceFC, CourtFC)
	default:
		records, err := ParseDecisiaFeed(body, SourceFCA, CourtFCA)
		if err != nil {
			// the FCA feed intermittently serves the HTML list instead of RSS
			if fallback := ParseFCAHTML(body); len(fallback) > 0 {
				return fallback, nil
			}
			return nil, err
		}
		return records, nil
	}
}
