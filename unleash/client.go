package unleash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// SDKVersion is reported in the unleash-sdk header.
const SDKVersion = "flagsync-go:0.1.0"

var ErrStopped = errors.New("unleash: client stopped")

// Ensure Client implements flagsync.FlagClient at compile time.
var _ flagsync.FlagClient = (*Client)(nil)

// Client polls the Unleash frontend API and holds the evaluated toggles for
// one evaluation context.
type Client struct {
	cfg          Config
	endpoint     *url.URL
	http         *http.Client
	logger       *slog.Logger
	connectionID string
	emitter      flagsync.Emitter

	// fetchMu serializes requests so a slow response never overwrites a
	// newer one.
	fetchMu sync.Mutex

	mu       sync.Mutex
	toggles  []flagsync.Toggle
	evalCtx  flagsync.EvaluationContext
	etag     string
	ready    bool
	started  bool
	stopped  bool
	failures int
	cancel   context.CancelFunc
	done     chan struct{}
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.http = client
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient validates cfg and builds a stopped client. A missing session id
// is generated so that gradual rollouts stay sticky for this process.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", cfg.URL, err)
	}

	c := &Client{
		cfg:          cfg,
		endpoint:     endpoint,
		http:         &http.Client{Timeout: defaultRequestTimeout},
		logger:       slog.Default(),
		connectionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}

	evalCtx := cfg.Context.Clone()
	if evalCtx.SessionID == "" {
		evalCtx.SessionID = uuid.NewString()
	}

	c.evalCtx = c.withStaticContext(evalCtx, evalCtx.SessionID)
	c.toggles = flagsync.CloneToggles(cfg.Bootstrap)

	return c, nil
}

// Start emits "init", serves bootstrap toggles if any, and begins polling
// in the background. It returns ErrStopped after Stop. ctx bounds the
// polling loop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}

	if c.started {
		c.mu.Unlock()
		return nil
	}

	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	bootstrapped := len(c.toggles) > 0
	if bootstrapped {
		c.ready = true
	}
	c.mu.Unlock()

	c.emitter.Emit(flagsync.Event{Type: flagsync.EventInit})

	if bootstrapped {
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventUpdate})
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventReady})
	}

	go c.run(runCtx)

	return nil
}

// Stop cancels polling and waits for the loop to exit. It is safe to call
// repeatedly and before Start.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ready
}

func (c *Client) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.started
}

func (c *Client) On(event flagsync.EventType, listener *flagsync.Listener) {
	c.emitter.On(event, listener)
}

func (c *Client) Off(event flagsync.EventType, listener *flagsync.Listener) {
	c.emitter.Off(event, listener)
}

// UpdateContext replaces the evaluation context. On a started client it
// fetches right away; a failed fetch is emitted as "error", not returned.
// The app name and environment from Config always win, and an empty
// session id keeps the current one.
func (c *Client) UpdateContext(ctx context.Context, evalCtx flagsync.EvaluationContext) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}

	c.evalCtx = c.withStaticContext(evalCtx.Clone(), c.evalCtx.SessionID)
	c.etag = ""
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil
	}

	_ = c.fetch(ctx)

	return nil
}

// Context returns the evaluation context sent with requests.
func (c *Client) Context() flagsync.EvaluationContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evalCtx.Clone()
}

func (c *Client) IsEnabled(name string) bool {
	toggle, ok := c.lookup(name)
	return ok && toggle.Enabled
}

// GetVariant returns flagsync.DisabledVariant for unknown toggles.
func (c *Client) GetVariant(name string) flagsync.Variant {
	toggle, ok := c.lookup(name)
	if !ok {
		return flagsync.DisabledVariant
	}

	variant := toggle.Variant
	variant.FeatureEnabled = toggle.Enabled

	return variant
}

func (c *Client) GetAllToggles() []flagsync.Toggle {
	c.mu.Lock()
	defer c.mu.Unlock()

	return flagsync.CloneToggles(c.toggles)
}

func (c *Client) lookup(name string) (flagsync.Toggle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, toggle := range c.toggles {
		if toggle.Name == name {
			return toggle, true
		}
	}

	return flagsync.Toggle{}, false
}

func (c *Client) withStaticContext(evalCtx flagsync.EvaluationContext, sessionID string) flagsync.EvaluationContext {
	evalCtx.AppName = c.cfg.AppName
	if c.cfg.Environment != "" {
		evalCtx.Environment = c.cfg.Environment
	}

	if evalCtx.SessionID == "" {
		evalCtx.SessionID = sessionID
	}

	return evalCtx
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	_ = c.fetch(ctx)

	if c.cfg.DisableRefresh {
		<-ctx.Done()
		return
	}

	for {
		c.mu.Lock()
		delay := calculateBackoff(c.failures, c.cfg.refreshInterval())
		c.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		_ = c.fetch(ctx)
	}
}

type togglesResponse struct {
	Toggles []flagsync.Toggle `json:"toggles"`
}

// fetch requests the toggles for the current context and emits the
// resulting events. Nothing is emitted when ctx was canceled.
func (c *Client) fetch(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.mu.Lock()
	evalCtx := c.evalCtx.Clone()
	etag := c.etag
	c.mu.Unlock()

	toggles, nextETag, modified, err := c.request(ctx, evalCtx, etag)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		c.failures++
		failures := c.failures
		c.mu.Unlock()

		c.logger.Debug("unleash fetch failed",
			slog.String("err", err.Error()),
			slog.Int("failures", failures),
		)
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventError, Err: err})

		return err
	}

	c.mu.Lock()
	recovered := c.failures > 0
	c.failures = 0

	if modified {
		c.toggles = toggles
		c.etag = nextETag
	}

	becameReady := !c.ready
	c.ready = true
	c.mu.Unlock()

	if modified {
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventUpdate})
	}

	if becameReady {
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventReady})
	}

	if recovered {
		c.emitter.Emit(flagsync.Event{Type: flagsync.EventRecovered})
	}

	return nil
}

func (c *Client) request(
	ctx context.Context,
	evalCtx flagsync.EvaluationContext,
	etag string,
) ([]flagsync.Toggle, string, bool, error) {
	reqURL := *c.endpoint
	reqURL.RawQuery = contextQuery(evalCtx).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("create request: %w", err)
	}

	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	req.Header.Set("Authorization", c.cfg.ClientKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("unleash-appname", c.cfg.AppName)
	req.Header.Set("unleash-connection-id", c.connectionID)
	req.Header.Set("unleash-sdk", SDKVersion)

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return nil, etag, false, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", false, fmt.Errorf("unleash: api %s returned status %d", c.endpoint.Path, resp.StatusCode)
	}

	var payload togglesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", false, fmt.Errorf("decode response: %w", err)
	}

	return payload.Toggles, resp.Header.Get("ETag"), true, nil
}

// contextQuery flattens evalCtx the way the frontend API expects:
// properties become properties[name] parameters.
func contextQuery(evalCtx flagsync.EvaluationContext) url.Values {
	values := url.Values{}

	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}

	set("userId", evalCtx.UserID)
	set("sessionId", evalCtx.SessionID)
	set("remoteAddress", evalCtx.RemoteAddress)
	set("environment", evalCtx.Environment)
	set("appName", evalCtx.AppName)
	set("currentTime", evalCtx.CurrentTime)

	for key, value := range evalCtx.Properties {
		values.Set("properties["+key+"]", value)
	}

	return values
}
