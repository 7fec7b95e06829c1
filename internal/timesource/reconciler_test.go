package timesource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() timex.Clock {
	return timex.ClockFunc(func() time.Time { return localNow })
}

func timeServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSync_ComputesOffset(t *testing.T) {
	srv, _ := timeServer(t, `{"datetime":"2024-06-01T14:00:05.500000+02:00","timezone":"Europe/Riga"}`, http.StatusOK)
	r := New(srv.URL, time.Second, fixedClock(), logging.Nop())

	assert.Equal(t, StatusUnknown, r.Status())
	require.NoError(t, r.Sync(context.Background()))

	assert.Equal(t, StatusOnline, r.Status())
	assert.Equal(t, 5500*time.Millisecond, r.Offset())
	assert.Equal(t, localNow.Add(5500*time.Millisecond), r.Now())
	assert.Equal(t, localNow, r.LastSync())
}

func TestSync_FailureFallsBackToLocal(t *testing.T) {
	good, _ := timeServer(t, `{"datetime":"2024-06-01T12:00:10Z"}`, http.StatusOK)
	bad, _ := timeServer(t, `{"datetime":"not a time"}`, http.StatusOK)

	r := New(good.URL, time.Second, fixedClock(), logging.Nop())
	require.NoError(t, r.Sync(context.Background()))
	require.Equal(t, 10*time.Second, r.Offset())

	r.endpoint = bad.URL
	require.Error(t, r.Sync(context.Background()))
	assert.Equal(t, StatusOffline, r.Status())
	assert.Equal(t, time.Duration(0), r.Offset())
	assert.Equal(t, localNow, r.Now())
}

func TestSync_MalformedBodyIsNotRetried(t *testing.T) {
	srv, hits := timeServer(t, `<html>`, http.StatusOK)
	r := New(srv.URL, time.Second, fixedClock(), logging.Nop())

	require.Error(t, r.Sync(context.Background()))
	assert.EqualValues(t, 1, hits.Load())
}

func TestSync_ServerErrorIsRetried(t *testing.T) {
	srv, hits := timeServer(t, `oops`, http.StatusServiceUnavailable)
	r := New(srv.URL, 5*time.Second, fixedClock(), logging.Nop())

	require.Error(t, r.Sync(context.Background()))
	assert.EqualValues(t, maxRetries+1, hits.Load())
	assert.Equal(t, StatusOffline, r.Status())
}

func TestSync_Unreachable(t *testing.T) {
	srv, _ := timeServer(t, ``, http.StatusOK)
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r := New(url, 200*time.Millisecond, fixedClock(), logging.Nop())
	require.Error(t, r.Sync(ctx))
	assert.Equal(t, StatusOffline, r.Status())
	assert.Equal(t, localNow, r.Now())
}

func TestSync_TimeoutBoundsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	r := New(srv.URL, 60*time.Millisecond, fixedClock(), logging.Nop())

	start := time.Now()
	require.Error(t, r.Sync(context.Background()))
	elapsed := time.Since(start)

	// The first backoff wait alone is at least 250ms.
	assert.Less(t, elapsed, 240*time.Millisecond)
	assert.Less(t, hits.Load(), int32(maxRetries+1))
	assert.Equal(t, StatusOffline, r.Status())
}

func TestNew_NoEndpointStartsOffline(t *testing.T) {
	assert.Equal(t, StatusOffline, New("", time.Second, fixedClock(), logging.Nop()).Status())
	assert.Equal(t, StatusUnknown, New("http://127.0.0.1:1", time.Second, fixedClock(), logging.Nop()).Status())
}

func TestSync_NoEndpoint(t *testing.T) {
	r := New("", time.Second, fixedClock(), logging.Nop())
	require.ErrorIs(t, r.Sync(context.Background()), ErrNoEndpoint)
	assert.Equal(t, StatusOffline, r.Status())
}

func TestSummerTime(t *testing.T) {
	r := New("", time.Second, fixedClock(), logging.Nop())
	assert.False(t, r.SummerTime())

	r.SetSummerTime(true)
	assert.True(t, r.SummerTime())
	assert.Equal(t, localNow.Add(time.Hour), r.Now())

	r.SetSummerTime(false)
	assert.Equal(t, localNow, r.Now())
}

func TestRun_SyncsImmediatelyAndStops(t *testing.T) {
	srv, hits := timeServer(t, `{"datetime":"2024-06-01T12:00:01Z"}`, http.StatusOK)
	r := New(srv.URL, time.Second, fixedClock(), logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 20*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return hits.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusOnline, r.Status())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
