package unleash

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/flux-agi/flagsync_go/flagsync"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	maxBackoffFactor       = 10
)

// Config configures a frontend API client.
type Config struct {
	// URL is the frontend API endpoint, for example
	// https://unleash.example.com/api/frontend.
	URL       string
	ClientKey string
	AppName   string
	// Environment is sent as part of every evaluation context.
	Environment string
	// RefreshInterval is the polling cadence after a successful fetch.
	RefreshInterval time.Duration
	// DisableRefresh fetches once on Start and on context changes only.
	DisableRefresh bool
	// Bootstrap toggles are served until the first fetch completes.
	Bootstrap []flagsync.Toggle
	Context   flagsync.EvaluationContext
	// Headers are added to every request.
	Headers map[string]string
}

func (c Config) validate() error {
	var errs []error

	if strings.TrimSpace(c.URL) == "" {
		errs = append(errs, errors.New("url is required"))
	} else if _, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("parse url %q: %w", c.URL, err))
	}

	if strings.TrimSpace(c.ClientKey) == "" {
		errs = append(errs, errors.New("client key is required"))
	}

	if strings.TrimSpace(c.AppName) == "" {
		errs = append(errs, errors.New("app name is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid unleash config: %w", err)
	}

	return nil
}

func (c Config) refreshInterval() time.Duration {
	if c.RefreshInterval <= 0 {
		return DefaultRefreshInterval
	}

	return c.RefreshInterval
}
