// Package sqdclient talks to SQD Portal: a head-height probe and an NDJSON
// finalized-block stream, per spec §4.B.
package sqdclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
	"github.com/prettyirrelevant/kizami/pkg/utils"
)

// Opts configures a Client. Zero values fall back to sane defaults, the
// same convention the teacher's rpc.Opts uses.
type Opts struct {
	BaseURL string

	HeadTimeout   time.Duration
	StreamTimeout time.Duration

	RPS   int
	Burst int

	BreakerFailures int
	BreakerCooldown time.Duration

	HTTPClient *http.Client
}

// Client is a rate-limited, circuit-breaking HTTP client for one SQD Portal
// base URL. The circuit breaker is generalized from the teacher's
// multi-endpoint pkg/rpc.HTTPClient down to a single endpoint (SQD Portal
// is addressed by one base URL per spec), and the token bucket is
// delegated to golang.org/x/time/rate instead of the teacher's hand-rolled
// atomic counter.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter

	headTimeout   time.Duration
	streamTimeout time.Duration

	mu               sync.Mutex
	failures         int
	openUntil        time.Time
	breakerThreshold int
	breakerCooldown  time.Duration
}

// New builds a Client, reading SQD_PORTAL_URL from the environment when
// opts.BaseURL is empty.
func New(opts Opts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = utils.Env("SQD_PORTAL_URL", "https://portal.sqd.dev")
	}
	if opts.HeadTimeout <= 0 {
		opts.HeadTimeout = time.Duration(utils.EnvInt("SQD_REQUEST_TIMEOUT_HEAD_SECS", 60)) * time.Second
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = time.Duration(utils.EnvInt("SQD_REQUEST_TIMEOUT_STREAM_SECS", 300)) * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 10 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:          opts.BaseURL,
		client:           httpClient,
		limiter:          rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		headTimeout:      opts.HeadTimeout,
		streamTimeout:    opts.StreamTimeout,
		breakerThreshold: opts.BreakerFailures,
		breakerCooldown:  opts.BreakerCooldown,
	}
}

func (c *Client) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openUntil.IsZero() {
		return false
	}
	if time.Now().After(c.openUntil) {
		c.openUntil = time.Time{}
		c.failures = 0
		return false
	}
	return true
}

func (c *Client) noteFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.breakerThreshold {
		c.openUntil = time.Now().Add(c.breakerCooldown)
	}
}

func (c *Client) noteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
}

// Head fetches the current finalized block height for slug.
func (c *Client) Head(ctx context.Context, slug string) (uint64, error) {
	if c.isOpen() {
		return 0, fmt.Errorf("%w: circuit open for %s", kizamierr.ErrUpstream, c.baseURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: rate limiter: %w", kizamierr.ErrUpstream, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.headTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/finalized-stream/head", c.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build head request: %w", kizamierr.ErrUpstream, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.noteFailure()
		return 0, fmt.Errorf("%w: head request: %w", kizamierr.ErrUpstream, err)
	}
	defer utils.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.noteFailure()
		return 0, fmt.Errorf("%w: head status %d", kizamierr.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		c.noteFailure()
		return 0, fmt.Errorf("%w: read head body: %w", kizamierr.ErrUpstream, err)
	}

	height, err := parseHead(body)
	if err != nil {
		c.noteFailure()
		return 0, fmt.Errorf("%w: parse head body: %w", kizamierr.ErrUpstream, err)
	}

	c.noteSuccess()
	return height, nil
}

// parseHead accepts either a bare integer body or a small JSON object
// containing the height, per spec §6's "Upstream wire contract".
func parseHead(body []byte) (uint64, error) {
	trimmed := bytes.TrimSpace(body)
	if n, err := strconv.ParseUint(string(trimmed), 10, 64); err == nil {
		return n, nil
	}

	var obj struct {
		Height *uint64 `json:"height"`
		Number *uint64 `json:"number"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return 0, err
	}
	if obj.Height != nil {
		return *obj.Height, nil
	}
	if obj.Number != nil {
		return *obj.Number, nil
	}
	return 0, fmt.Errorf("no height field in response")
}

// streamRequest is the body sent to the finalized-stream endpoint.
type streamRequest struct {
	FromBlock uint64   `json:"fromBlock"`
	ToBlock   uint64   `json:"toBlock"`
	Fields    []string `json:"fields"`
}

// Row is one decoded NDJSON line from the stream endpoint. Only Number and
// Timestamp are used; any other fields the portal includes are ignored.
type Row struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
}

// Stream opens the NDJSON stream for block numbers in [from, to] and
// invokes onRow for every decoded line, as it is read off the wire — the
// response is never buffered in full, which is what lets a 50,000-record
// batch stay within a bounded memory budget.
func (c *Client) Stream(ctx context.Context, slug string, from, to uint64, onRow func(Row) error) error {
	if c.isOpen() {
		return fmt.Errorf("%w: circuit open for %s", kizamierr.ErrUpstream, c.baseURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", kizamierr.ErrUpstream, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	payload, err := json.Marshal(streamRequest{FromBlock: from, ToBlock: to, Fields: []string{"number", "timestamp"}})
	if err != nil {
		return fmt.Errorf("%w: marshal stream request: %w", kizamierr.ErrUpstream, err)
	}

	url := fmt.Sprintf("%s/%s/finalized-stream", c.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build stream request: %w", kizamierr.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.client.Do(req)
	if err != nil {
		c.noteFailure()
		return fmt.Errorf("%w: stream request: %w", kizamierr.ErrUpstream, err)
	}
	defer utils.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.noteFailure()
		return fmt.Errorf("%w: stream status %d", kizamierr.ErrUpstream, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			c.noteFailure()
			return fmt.Errorf("%w: malformed ndjson line: %w", kizamierr.ErrUpstream, err)
		}
		if err := onRow(row); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		c.noteFailure()
		return fmt.Errorf("%w: stream read: %w", kizamierr.ErrUpstream, err)
	}

	c.noteSuccess()
	return nil
}
