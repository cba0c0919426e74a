package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"franchise-dispatch-api/controllers"
	"franchise-dispatch-api/middleware"
	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	app    *services.App
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{t: t, now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	h.app = services.NewApp(services.NewMemoryStore(), services.AppConfig{
		Policy: services.DefaultWindowPolicy(),
		Clock:  func() time.Time { return h.now },
	})
	controllers.Use(h.app)

	h.router = gin.New()
	SetupRoutes(h.router, testSecret)

	ctx := context.Background()
	for _, id := range []string{"A", "B"} {
		_, err := h.app.Dispatcher.CreateMerchant(ctx, id, "Merchant "+id, "")
		require.NoError(t, err)
	}
	_, err := h.app.Dispatcher.CreateCase(ctx, services.CaseInput{CaseID: "X", CustomerName: "Suzuki"})
	require.NoError(t, err)
	_, err = h.app.Dispatcher.Dispatch(ctx, "X", []string{"A", "B"})
	require.NoError(t, err)
	return h
}

func token(t *testing.T, claims middleware.Claims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func merchantToken(t *testing.T, merchantID string) string {
	return token(t, middleware.Claims{Subject: merchantID, MerchantID: merchantID, Role: middleware.RoleMerchant})
}

func adminToken(t *testing.T) string {
	return token(t, middleware.Claims{Subject: "ops-lead", Role: middleware.RoleAdmin})
}

func (h *harness) do(method, path, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)
	w, _ := h.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMerchantRoutesRequireMerchantRole(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(http.MethodGet, "/api/v1/merchant/deliveries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/merchant/deliveries", adminToken(t), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/admin/cancellations", merchantToken(t, "A"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCancellationRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.now = h.now.Add(72 * time.Hour)

	w, env := h.do(http.MethodPost, "/api/v1/merchant/cancellations", merchantToken(t, "A"), gin.H{
		"case_id":         "X",
		"reason_category": "no-contact",
		"contact_evidence": gin.H{
			"phone_call_count": 1,
			"sms_count":        0,
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", env.Error.Kind)
	assert.Contains(t, env.Error.Message, "insufficient follow-up")

	w, env = h.do(http.MethodPost, "/api/v1/merchant/cancellations", merchantToken(t, "A"), gin.H{
		"case_id":         "X",
		"reason_category": "no-contact",
		"reason_detail":   "voicemail every time",
		"contact_evidence": gin.H{
			"phone_call_count": 3,
			"sms_count":        1,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID          string `json:"id"`
		ElapsedDays int    `json:"elapsed_days"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 3, created.ElapsedDays)

	w, env = h.do(http.MethodPost, "/api/v1/merchant/cancellations", merchantToken(t, "A"), gin.H{
		"case_id":          "X",
		"reason_category":  "duplicate",
		"contact_evidence": gin.H{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NotEligible", env.Error.Kind)

	w, _ = h.do(http.MethodPost, "/api/v1/admin/cancellations/"+created.ID+"/reject", adminToken(t), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = h.do(http.MethodPost, "/api/v1/admin/cancellations/"+created.ID+"/approve", adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved struct {
		ApprovalStatus string `json:"approval_status"`
		Approver       string `json:"approver"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, "approved", approved.ApprovalStatus)
	assert.Equal(t, "ops-lead", approved.Approver)

	w, env = h.do(http.MethodPost, "/api/v1/admin/cancellations/"+created.ID+"/approve", adminToken(t), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", env.Error.Kind)

	w, env = h.do(http.MethodGet, "/api/v1/merchant/deliveries?category=closed", merchantToken(t, "A"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var closed []struct {
		CaseID       string `json:"case_id"`
		DetailStatus string `json:"detail_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	require.Len(t, closed, 1)
	assert.Equal(t, "cancelled", closed[0].DetailStatus)
}

func TestUpdateDeliveryStatusAcceptsAliases(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodPut, "/api/v1/merchant/deliveries/X/status", merchantToken(t, "B"), gin.H{"status": "アポ確定"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec struct {
		DetailStatus   string `json:"detail_status"`
		LastModifiedBy string `json:"last_modified_by"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "appointment-set", rec.DetailStatus)
	assert.Equal(t, "B", rec.LastModifiedBy)

	w, _ = h.do(http.MethodPut, "/api/v1/merchant/deliveries/X/status", merchantToken(t, "B"), gin.H{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = h.do(http.MethodPut, "/api/v1/merchant/deliveries/nope/status", merchantToken(t, "B"), gin.H{"status": "quoted"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", env.Error.Kind)
}

func TestExtensionRoundTrip(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodPost, "/api/v1/merchant/extensions", merchantToken(t, "A"), gin.H{
		"case_id":                "X",
		"contact_achieved_at":    h.now.Add(24 * time.Hour).Format(time.RFC3339),
		"planned_appointment_at": h.now.Add(15 * 24 * time.Hour).Format(time.RFC3339),
		"justification":          "customer abroad until February",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ext struct {
		ID       string    `json:"id"`
		Deadline time.Time `json:"computed_extended_deadline"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ext))
	assert.True(t, time.Date(2025, 2, 28, 23, 59, 59, 999_000_000, time.UTC).Equal(ext.Deadline))

	w, _ = h.do(http.MethodPost, "/api/v1/admin/extensions/"+ext.ID+"/approve", adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.now = h.now.Add(20 * 24 * time.Hour)
	w, env = h.do(http.MethodGet, "/api/v1/merchant/cancellations/eligible", merchantToken(t, "A"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligible []struct {
		ElapsedDays int `json:"elapsed_days"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &eligible))
	require.Len(t, eligible, 1)
	assert.Equal(t, 20, eligible[0].ElapsedDays)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", env.Error.Kind)
}
