package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/db"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/health"
	intnet "github.com/scc-project/scc/internal/network"
)

type fakeGame struct {
	registry *game.Registry
}

func (f *fakeGame) Status() events.ServerStatusPayload {
	return events.ServerStatusPayload{
		Mode:             events.ModeDuel,
		Port:             1212,
		Uptime:           90 * time.Second,
		ActiveSessions:   1,
		PlayersConnected: 2,
		PlayersKnown:     3,
	}
}

func (f *fakeGame) Sessions() []intnet.SessionInfo {
	return []intnet.SessionInfo{{ID: "abc", Mode: events.ModeDuel, Remotes: []string{"a", "b"}}}
}

func (f *fakeGame) Registry() *game.Registry { return f.registry }

type fakeHistory struct {
	query db.HandQuery
	err   error
}

func (f *fakeHistory) RecentHands(_ context.Context, q db.HandQuery) ([]db.HandRecord, error) {
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	return []db.HandRecord{{ID: 1, PlayerIDs: [2]int{4, 5}, Winner: 0, Loot: 2}}, nil
}

func (f *fakeHistory) Leaderboard(_ context.Context, limit int) ([]db.LeaderboardEntry, error) {
	return []db.LeaderboardEntry{{PlayerID: 4, Played: 1, Won: 1, Net: 1}}, nil
}

func newTestServer(t *testing.T, history HandHistory) http.Handler {
	t.Helper()
	registry := game.NewRegistry(10)
	registry.GetOrCreate(7)
	cfg := config.DefaultConfig()
	cfg.API.RateLimitRPS = 0
	return NewServer(cfg, &fakeGame{registry: registry}, history).Handler()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestPing(t *testing.T) {
	rec, body := get(t, newTestServer(t, nil), "/api/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestStatus(t *testing.T) {
	rec, body := get(t, newTestServer(t, &fakeHistory{}), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duel", body["mode"])
	assert.EqualValues(t, 90, body["uptime_sec"])
	assert.EqualValues(t, 2, body["players_connected"])
	assert.Equal(t, true, body["history_enabled"])
}

func TestPlayers(t *testing.T) {
	rec, body := get(t, newTestServer(t, nil), "/api/players")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	players := body["players"].([]any)
	first := players[0].(map[string]any)
	assert.EqualValues(t, 7, first["id"])
	assert.EqualValues(t, 10, first["gems"])
	assert.Equal(t, false, first["connected"])
}

func TestHandsFiltersByPlayer(t *testing.T) {
	history := &fakeHistory{}
	rec, body := get(t, newTestServer(t, history), "/api/hands?limit=5&player=4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, db.HandQuery{Limit: 5, PlayerID: 4, ByPlayer: true}, history.query)
}

func TestHandsRejectsBadQuery(t *testing.T) {
	h := newTestServer(t, &fakeHistory{})

	rec, _ := get(t, h, "/api/hands?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, h, "/api/hands?player=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandsStoreFailure(t *testing.T) {
	rec, _ := get(t, newTestServer(t, &fakeHistory{err: errors.New("disk gone")}), "/api/hands")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	h := newTestServer(t, nil)
	for _, path := range []string{"/api/hands", "/api/leaderboard"} {
		rec, _ := get(t, h, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestLeaderboard(t *testing.T) {
	rec, body := get(t, newTestServer(t, &fakeHistory{}), "/api/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["leaderboard"].([]any)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 4, entries[0].(map[string]any)["player_id"])
}

type sickHealth struct{}

func (sickHealth) Report() []health.CheckResult {
	return []health.CheckResult{{Name: "memory", Level: health.LevelCritical}}
}

func (sickHealth) Healthy() bool { return false }

func TestHealth(t *testing.T) {
	rec, body := get(t, newTestServer(t, nil), "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["healthy"])

	registry := game.NewRegistry(10)
	srv := NewServer(config.DefaultConfig(), &fakeGame{registry: registry}, nil)
	srv.SetHealth(sickHealth{})
	rec, body = get(t, srv.Handler(), "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Len(t, body["checks"], 1)
}

func TestUnknownEndpoint(t *testing.T) {
	rec, _ := get(t, newTestServer(t, nil), "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	// Burst of two, then empty.
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(idleBucket)
	rl.Allow("c")
	assert.NotContains(t, rl.buckets, "b")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("a"))
	}
}

func TestRateLimiterMiddlewareRejectsWith429(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func() int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, get())
	assert.Equal(t, http.StatusNoContent, get())
	assert.Equal(t, http.StatusTooManyRequests, get())

	// Half a second refills half a token.
	now = now.Add(500 * time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, get())
	now = now.Add(500 * time.Millisecond)
	assert.Equal(t, http.StatusNoContent, get())
}
