package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/kisaragi/internal/rank"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealthz)
	router.GET("/api/leaderboard", handleLeaderboard(opts.Ledger))
	router.GET("/api/stats", handleStats(opts))
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleLeaderboard(ledger *rank.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := rank.DefaultLeaderboardLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		entries, err := ledger.Leaderboard(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if entries == nil {
			entries = []rank.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
	}
}

func handleStats(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := opts.Ledger.UserCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		turns, err := opts.History.TurnCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		active := 0
		if opts.Sessions != nil {
			active = opts.Sessions.ActiveCount()
		}

		c.JSON(http.StatusOK, gin.H{
			"users":           users,
			"turns":           turns,
			"active_sessions": active,
		})
	}
}
