package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	// BrowserUserAgent is sent with reachability probes; some mirrors
	// reject Go's default user agent.
	BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultCheckTimeout bounds each probe.
	DefaultCheckTimeout = 5 * time.Second
)

// CheckResult is the outcome of probing one catalog URL.
type CheckResult struct {
	Entry      Entry
	StatusCode int
	Err        error
}

// OK reports whether the URL answered HTTP 200.
func (r CheckResult) OK() bool {
	return r.Err == nil && r.StatusCode == http.StatusOK
}

// Reason is a short description of a failure, empty on success.
func (r CheckResult) Reason() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.StatusCode != http.StatusOK:
		return fmt.Sprintf("HTTP %d", r.StatusCode)
	default:
		return ""
	}
}

// Checker probes catalog URLs for reachability.
type Checker struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

// NewChecker returns a Checker with the default user agent and timeout.
func NewChecker() *Checker {
	return &Checker{
		Client:    http.DefaultClient,
		UserAgent: BrowserUserAgent,
		Timeout:   DefaultCheckTimeout,
	}
}

// Check probes every entry in order. The body is never read; only the
// status line matters.
func (c *Checker) Check(ctx context.Context, entries []Entry) []CheckResult {
	results := make([]CheckResult, 0, len(entries))
	for _, e := range entries {
		code, err := c.probe(ctx, e.URL)
		results = append(results, CheckResult{Entry: e, StatusCode: code, Err: err})
	}
	return results
}

// Reachable reports whether url answers HTTP 200.
func (c *Checker) Reachable(ctx context.Context, url string) bool {
	code, err := c.probe(ctx, url)
	return err == nil && code == http.StatusOK
}

func (c *Checker) probe(ctx context.Context, url string) (int, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// Failed filters results down to the failures.
func Failed(results []CheckResult) []CheckResult {
	var failed []CheckResult
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
