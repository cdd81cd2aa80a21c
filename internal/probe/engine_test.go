// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
)

func testEngine(t *testing.T, targets []Target) *Engine {
	t.Helper()
	return NewEngine(logging.New(logging.DefaultConfig()), Config{
		Targets:  targets,
		Interval: time.Second,
		Timeout:  2 * time.Second,
	})
}

func mustTarget(t *testing.T, spec string) Target {
	t.Helper()
	tgt, err := ParseTarget(spec)
	require.NoError(t, err)
	return tgt
}

func TestRunRoundFullOnMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("NetworkManager is online"))
	}))
	defer srv.Close()

	e := testEngine(t, []Target{mustTarget(t, srv.URL+"=NetworkManager%20is%20online")})
	lvl, results := e.RunRound(context.Background())

	assert.Equal(t, level.Full, lvl)
	require.Len(t, results, 1)
	assert.True(t, results[0].Reached)
	assert.True(t, results[0].Matched)
}

func TestRunRoundEmptyBodyMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := testEngine(t, []Target{mustTarget(t, srv.URL)})
	lvl, _ := e.RunRound(context.Background())
	assert.Equal(t, level.Full, lvl)
}

func TestRunRoundPortalOnSubstitutedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Pay for WiFi</html>"))
	}))
	defer srv.Close()

	e := testEngine(t, []Target{mustTarget(t, srv.URL+"=NetworkManager%20is%20online")})
	lvl, results := e.RunRound(context.Background())

	assert.Equal(t, level.Portal, lvl)
	require.Len(t, results, 1)
	assert.True(t, results[0].Reached)
	assert.False(t, results[0].Matched)
}

func TestRunRoundPortalOnRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://portal.local/login", http.StatusFound)
	}))
	defer srv.Close()

	e := testEngine(t, []Target{mustTarget(t, srv.URL)})
	lvl, _ := e.RunRound(context.Background())
	assert.Equal(t, level.Portal, lvl)
}

func TestRunRoundLimitedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := testEngine(t, []Target{mustTarget(t, srv.URL)})
	lvl, _ := e.RunRound(context.Background())
	assert.Equal(t, level.Limited, lvl)
}

func TestRunRoundNoneOnConnectFailure(t *testing.T) {
	// Reserve a port and close it so the connect is refused.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := testEngine(t, []Target{mustTarget(t, url)})
	lvl, results := e.RunRound(context.Background())

	assert.Equal(t, level.None, lvl)
	require.Len(t, results, 1)
	assert.False(t, results[0].Reached)
}

func TestRunRoundAggregatesMax(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.NotFoundHandler())
	badURL := bad.URL
	bad.Close()

	e := testEngine(t, []Target{mustTarget(t, badURL), mustTarget(t, good.URL)})
	lvl, results := e.RunRound(context.Background())

	assert.Equal(t, level.Full, lvl)
	assert.Len(t, results, 2)
}

func TestRunRoundEmptyTargetsIsUnknown(t *testing.T) {
	e := testEngine(t, nil)
	lvl, results := e.RunRound(context.Background())
	assert.Equal(t, level.Unknown, lvl)
	assert.Nil(t, results)
}

func TestRunRoundCancelledCommitsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := testEngine(t, []Target{mustTarget(t, srv.URL)})
	lvl, results := e.RunRound(ctx)
	assert.Equal(t, level.Unknown, lvl)
	assert.Nil(t, results)
}

func TestSetTargetsSwapsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := testEngine(t, nil)
	lvl, _ := e.RunRound(context.Background())
	require.Equal(t, level.Unknown, lvl)

	e.SetTargets([]Target{mustTarget(t, srv.URL)})
	lvl, _ = e.RunRound(context.Background())
	assert.Equal(t, level.Full, lvl)
}

func TestGatewayPingShortCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("probe issued despite dead gateway")
	}))
	defer srv.Close()

	e := NewEngine(logging.New(logging.DefaultConfig()), Config{
		Targets:     []Target{mustTarget(t, srv.URL)},
		Interval:    time.Second,
		Timeout:     200 * time.Millisecond,
		GatewayPing: true,
		// TEST-NET-1 never answers.
		GatewayFunc: func() (string, bool) { return "192.0.2.1", true },
	})
	lvl, results := e.RunRound(context.Background())
	assert.Equal(t, level.None, lvl)
	assert.Nil(t, results)
}
