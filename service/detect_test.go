package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/config"
	"github.com/ddp-org/detectbot/ddp"
)

func newTestService(t *testing.T, handler http.Handler, interval, budget time.Duration) *DetectService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	cfg := config.Config{
		Detect: config.DetectConfig{
			ApiURL:          *u,
			WsURL:           *u,
			AccessToken:     "token-123",
			PollInterval:    5 * time.Millisecond,
			MaxPollAttempts: 10,
			TriggerInterval: interval,
			TriggerBudget:   budget,
		},
	}
	return NewDetectService(cfg, nil)
}

func TestTriggerAnalysisImmediate(t *testing.T) {
	var calls atomic.Int32
	service := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}), 5*time.Millisecond, 100*time.Millisecond)

	err := service.TriggerAnalysis(context.Background(), "33", analysis.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTriggerAnalysisRetriesUntilReady(t *testing.T) {
	var calls atomic.Int32
	service := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}), 5*time.Millisecond, time.Second)

	err := service.TriggerAnalysis(context.Background(), "33", analysis.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestTriggerAnalysisBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	service := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}), 10*time.Millisecond, 45*time.Millisecond)

	err := service.TriggerAnalysis(context.Background(), "33", analysis.ModeFast)

	var timeoutErr *ddp.TriggerTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 45*time.Millisecond, timeoutErr.Budget)
	// The budget admits a bounded number of fixed-interval attempts; it
	// must never spin past that.
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestTriggerAnalysisOtherErrorsPassThrough(t *testing.T) {
	var calls atomic.Int32
	service := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such video", http.StatusNotFound)
	}), 5*time.Millisecond, time.Second)

	err := service.TriggerAnalysis(context.Background(), "33", analysis.ModeFast)

	var triggerErr *ddp.TriggerError
	require.ErrorAs(t, err, &triggerErr)
	assert.Equal(t, http.StatusNotFound, triggerErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTriggerAnalysisCancelled(t *testing.T) {
	service := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}), 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := service.TriggerAnalysis(ctx, "33", analysis.ModeFast)

	var cancelledErr *ddp.CancelledError
	require.ErrorAs(t, err, &cancelledErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollSettings(t *testing.T) {
	service := newTestService(t, http.NotFoundHandler(), time.Second, time.Minute)
	assert.Equal(t, 5*time.Millisecond, service.PollInterval())
	assert.Equal(t, 10, service.MaxPollAttempts())
}
