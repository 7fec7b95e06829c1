// Package timesource reconciles the local clock with a network time service.
// TOTP generation reads Now, which never blocks: it is the local clock plus
// the last measured offset plus an optional manual summer-time hour.
package timesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/netx"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

// Status of the time source.
type Status string

const (
	StatusUnknown Status = "Unknown"
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

// SummerTimeOffset is the fixed manual adjustment.
const SummerTimeOffset = time.Hour

// ErrNoEndpoint is returned by Sync when no time endpoint is configured.
var ErrNoEndpoint = errors.New("time endpoint not configured")

const maxRetries = 2

type timeResponse struct {
	Datetime string `json:"datetime"`
}

type Reconciler struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	local    timex.Clock
	log      logging.Logger

	mu       sync.RWMutex
	offset   time.Duration
	status   Status
	summer   bool
	lastSync time.Time
}

// New builds a Reconciler. timeout bounds one whole Sync, retries and
// backoff waits included; zero means no bound. Without an endpoint the
// source starts Offline, serving local time only.
func New(endpoint string, timeout time.Duration, local timex.Clock, log logging.Logger) *Reconciler {
	status := StatusUnknown
	if endpoint == "" {
		status = StatusOffline
	}
	return &Reconciler{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
		local:    local,
		log:      log.With("component", "timesource"),
		status:   status,
	}
}

// Now is the time codes are generated for.
func (r *Reconciler) Now() time.Time {
	r.mu.RLock()
	adj := r.offset
	if r.summer {
		adj += SummerTimeOffset
	}
	r.mu.RUnlock()
	return r.local.Now().Add(adj)
}

func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Reconciler) Offset() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offset
}

// LastSync is the local time of the last successful sync, zero if none.
func (r *Reconciler) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}

func (r *Reconciler) SummerTime() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summer
}

func (r *Reconciler) SetSummerTime(on bool) {
	r.mu.Lock()
	r.summer = on
	r.mu.Unlock()
}

// Sync fetches the server time and stores serverTime - localTime. On failure
// the offset drops back to zero and the status becomes Offline.
func (r *Reconciler) Sync(ctx context.Context) error {
	if r.endpoint == "" {
		r.setOffline()
		return ErrNoEndpoint
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var server time.Time
	op := func() error {
		t, err := r.fetch(ctx)
		if err != nil {
			return err
		}
		server = t
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		r.setOffline()
		r.log.Warn(ctx, "time sync failed, using local clock", "error", err)
		return fmt.Errorf("time sync: %w", err)
	}

	local := r.local.Now()
	offset := server.Sub(local)

	r.mu.Lock()
	r.offset = offset
	r.status = StatusOnline
	r.lastSync = local
	r.mu.Unlock()

	r.log.Debug(ctx, "time synced", "offset", offset)
	return nil
}

// Run syncs once and then every interval until ctx is done. Failures are
// logged by Sync and never stop the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	_ = r.Sync(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Sync(ctx)
		}
	}
}

func (r *Reconciler) fetch(ctx context.Context) (time.Time, error) {
	body, err := netx.Get(ctx, r.client, r.endpoint, "application/json")
	if errors.Is(err, netx.ErrBadRequest) {
		return time.Time{}, backoff.Permanent(err)
	}
	if err != nil {
		return time.Time{}, err
	}

	var tr timeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return time.Time{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	t, err := time.Parse(time.RFC3339Nano, tr.Datetime)
	if err != nil {
		return time.Time{}, backoff.Permanent(fmt.Errorf("parse datetime %q: %w", tr.Datetime, err))
	}
	return t, nil
}

func (r *Reconciler) setOffline() {
	r.mu.Lock()
	r.offset = 0
	r.status = StatusOffline
	r.mu.Unlock()
}
