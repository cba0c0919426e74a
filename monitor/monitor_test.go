package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepMonitorRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := services.NewMemoryStore()
	runs := services.NewSweepRunService(store, time.Now)
	run, err := runs.Start(context.Background(), services.TransferSweepName, "cron")
	require.NoError(t, err)
	require.NoError(t, runs.MarkSuccess(context.Background(), run, &services.SweepSummary{Scanned: 2, Processed: 2}))

	router := gin.New()
	RegisterSweepMonitor(router, runs, "s3cret")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/sweeps", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/sweeps?token=s3cret&name=scheduled_transfer", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    []struct {
			SweepName string `json:"sweep_name"`
			Status    string `json:"status"`
			Processed uint   `json:"processed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "success", body.Data[0].Status)
	assert.Equal(t, uint(2), body.Data[0].Processed)
}

func TestMonitorDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterLogsRoute(router, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?token=", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
