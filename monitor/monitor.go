package monitor

import (
	"net/http"
	"strconv"
	"strings"

	"franchise-dispatch-api/config"
	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
)

// RegisterSweepMonitor exposes recent sweep runs.
func RegisterSweepMonitor(router *gin.Engine, runs *services.SweepRunService, token string) {
	router.GET("/monitor/sweeps", requireToken(token), func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		rows, err := runs.Recent(c.Request.Context(), c.Query("name"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to read sweep runs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
	})
}

// RegisterLogsRoute tails the backend log file.
func RegisterLogsRoute(router *gin.Engine, token string) {
	router.GET("/logs", requireToken(token), func(c *gin.Context) {
		lines, _ := strconv.Atoi(c.DefaultQuery("lines", "200"))
		logData, err := config.TailLogFile(lines)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strings.Join(logData, "\n")))
	})
}

// requireToken guards the monitor routes. An empty token disables them.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.Query("token") != token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
