package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scc-project/scc/internal/db"
)

const maxListLimit = 500

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus returns mode, uptime, session and player counts and host
// load.
func (s *Server) handleStatus(c *gin.Context) {
	status := s.game.Status()
	c.JSON(http.StatusOK, gin.H{
		"name":              s.cfg.GetServer().Name,
		"mode":              status.Mode,
		"port":              status.Port,
		"uptime_sec":        int64(status.Uptime.Seconds()),
		"active_sessions":   status.ActiveSessions,
		"players_connected": status.PlayersConnected,
		"players_known":     status.PlayersKnown,
		"cpu_percent":       status.CPUPercent,
		"memory_percent":    status.MemoryPercent,
		"history_enabled":   s.history != nil,
	})
}

// handleHealth answers 503 while any check is critical.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"healthy": true, "checks": []any{}})
		return
	}

	code := http.StatusOK
	healthy := s.health.Healthy()
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"healthy": healthy,
		"checks":  s.health.Report(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.game.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handlePlayers(c *gin.Context) {
	players := s.game.Registry().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"players": players,
		"total":   len(players),
	})
}

// handleHands lists the newest hands, optionally for one player id.
func (s *Server) handleHands(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}

	q := db.HandQuery{Limit: limit}
	if raw := c.Query("player"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
			return
		}
		q.PlayerID = id
		q.ByPlayer = true
	}

	hands, err := s.history.RecentHands(c.Request.Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list hands")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read hand history"})
		return
	}
	if hands == nil {
		hands = []db.HandRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"hands": hands,
		"total": len(hands),
	})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	limit, ok := queryInt(c, "limit", 10)
	if !ok {
		return
	}

	entries, err := s.history.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read hand history"})
		return
	}
	if entries == nil {
		entries = []db.LeaderboardEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hand history is disabled"})
		return false
	}
	return true
}

// queryInt parses a positive integer query parameter, answering 400 when it
// is malformed. Values above maxListLimit are clamped.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return min(n, maxListLimit), true
}
