package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/service/mocks"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testJWTSecret = "test-secret"

// newTestHandler создает новый экземпляр Handler с мокированным сервисом
func newTestHandler(t *testing.T, mutate ...func(*config.Config)) (*mocks.MockIncidentService, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockIncidentService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		JWTSecret:      testJWTSecret,
		APIKeys:        []string{"test-api-key"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	for _, m := range mutate {
		m(cfg)
	}

	handler := NewHandler(mockService, nil, logger, cfg)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return mockService, router
}

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func bearer(t *testing.T, subject, role string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signToken(t, testJWTSecret, subject, role)}
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func ptr[T any](v T) *T { return &v }

func sampleIncident(id uuid.UUID) *models.Incident {
	now := time.Now().UTC()
	return &models.Incident{
		ID:         id,
		ReporterID: ptr("victim-1"),
		Type:       "accident",
		Severity:   models.SeveritySevere,
		Advice:     "stay still",
		Confidence: 0.8,
		Location:   models.Location{Lat: 55.75, Lng: 37.61},
		Status:     models.StatusActive,
		Responders: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateIncident_Success(t *testing.T) {
	mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	reqBody := CreateIncidentRequest{
		Type:        "accident",
		Description: "car crash",
		Location:    LocationDTO{Lat: ptr(55.75), Lng: ptr(37.61)},
		Telemetry:   &TelemetryDTO{SpeedKmh: 60, ForceN: 250, ImpactDurationMs: 150},
	}

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input service.CreateIncidentInput) (*models.Incident, []models.MatchResult, error) {
			// reporter берется из токена
			require.NotNil(t, input.ReporterID)
			assert.Equal(t, "victim-1", *input.ReporterID)
			require.NotNil(t, input.Telemetry)
			assert.Equal(t, 250.0, input.Telemetry.ForceN)
			assert.Equal(t, models.Location{Lat: 55.75, Lng: 37.61}, input.Location)
			return sampleIncident(incidentID), []models.MatchResult{
				{ResponderID: "r1", MatchScore: 3.2, DistanceMeters: 500, ETAMinutes: 3, ETAWindow: models.ETAWindow{Min: 2, Max: 6}},
			}, nil
		}).Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp CreateIncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incidentID, resp.Incident.ID)
	assert.Equal(t, "severe", resp.Incident.Severity)
	assert.Equal(t, "active", resp.Incident.Status)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "r1", resp.Matches[0].ResponderID)
	assert.Equal(t, 6, resp.Matches[0].ETAWindow.Max)
}

func TestCreateIncident_FalseAlert(t *testing.T) {
	mockService, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{
		Type:      "accident",
		Location:  LocationDTO{Lat: ptr(1.0), Lng: ptr(1.0)},
		Telemetry: &TelemetryDTO{SpeedKmh: 2, ForceN: 150},
	}

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		Return(nil, nil, &triage.FalseAlertError{Reason: triage.ReasonAccidentalDrop}).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, triage.ReasonAccidentalDrop, resp.Reason)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	mockService, router := newTestHandler(t)

	mockService.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBufferString(`{"type": "fire"`), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_ValidationError(t *testing.T) {
	mockService, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{ // нет type и координат
		Description: "help",
	}

	mockService.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Type' failed on the 'required' tag")
}

func TestCreateIncident_StorageUnavailable(t *testing.T) {
	mockService, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{Type: "fire", Location: LocationDTO{Lat: ptr(0.0), Lng: ptr(0.0)}}

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		Return(nil, nil, fmt.Errorf("service: could not create incident: %w", errors.New("connection refused"))).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateIncident_RateLimited(t *testing.T) {
	mockService, router := newTestHandler(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	})
	reqBody := CreateIncidentRequest{Type: "fire", Location: LocationDTO{Lat: ptr(1.0), Lng: ptr(1.0)}}

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		Return(sampleIncident(uuid.New()), []models.MatchResult{}, nil).
		Times(1)

	first := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))
	second := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestAuth_MissingOrInvalidToken(t *testing.T) {
	mockService, router := newTestHandler(t)
	mockService.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)
	url := "/api/v1/incidents/" + uuid.New().String()

	w := makeRequest(router, "GET", url, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = makeRequest(router, "GET", url, nil, map[string]string{
		"Authorization": "Bearer " + signToken(t, "other-secret", "victim-1", RoleVictim),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = makeRequest(router, "GET", url, nil, map[string]string{
		"Authorization": "Bearer " + signToken(t, testJWTSecret, "victim-1", "hacker"),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIncident_Success(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()

	mockService.EXPECT().GetIncident(gomock.Any(), id).Return(sampleIncident(id), nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/"+id.String(), nil, bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, []string{}, resp.Responders)
}

func TestGetIncident_NotFound(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()

	mockService.EXPECT().
		GetIncident(gomock.Any(), id).
		Return(nil, fmt.Errorf("service: could not get incident: %w", service.ErrIncidentNotFound)).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/"+id.String(), nil, bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncident_InvalidID(t *testing.T) {
	mockService, router := newTestHandler(t)
	mockService.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents/not-a-uuid", nil, bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestListActive_RoleRequired(t *testing.T) {
	mockService, router := newTestHandler(t)
	first, second := sampleIncident(uuid.New()), sampleIncident(uuid.New())

	mockService.EXPECT().ListActive(gomock.Any()).Return([]*models.Incident{first, second}, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/active", nil, bearer(t, "victim-1", RoleVictim))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(router, "GET", "/api/v1/incidents/active", nil, bearer(t, "r1", RoleVolunteer))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, first.ID, resp[0].ID)
}

func TestAcceptMission(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()
	accepted := sampleIncident(id)
	accepted.Responders = []string{"r1"}

	gomock.InOrder(
		mockService.EXPECT().AcceptMission(gomock.Any(), id, "r1").Return(accepted, nil),
		mockService.EXPECT().
			AcceptMission(gomock.Any(), id, "r2").
			Return(nil, fmt.Errorf("service: could not accept mission: %w", service.ErrIncidentNotActive)),
	)

	w := makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/accept", nil, bearer(t, "r1", RoleVolunteer))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"r1"}, resp.Responders)

	w = makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/accept", nil, bearer(t, "r2", RoleProfessional))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "incident is not active")

	// пострадавший не может принять миссию
	w = makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/accept", nil, bearer(t, "victim-1", RoleVictim))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateVitals_PartialPatch(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()
	assigned := sampleIncident(id)
	assigned.Responders = []string{"r1"}
	updated := sampleIncident(id)
	updated.Vitals = models.Vitals{Status: "conscious", HeartRate: ptr(88)}

	mockService.EXPECT().GetIncident(gomock.Any(), id).Return(assigned, nil).Times(1)
	mockService.EXPECT().
		UpdateVitals(gomock.Any(), id, models.VitalsPatch{HeartRate: ptr(88)}).
		Return(updated, nil).
		Times(1)

	w := makeRequest(router, "PATCH", "/api/v1/incidents/"+id.String()+"/vitals",
		bytes.NewBufferString(`{"heart_rate": 88}`), bearer(t, "r1", RoleVolunteer))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 88, *resp.Vitals.HeartRate)
	assert.Equal(t, "conscious", resp.Vitals.Status)
}

func TestUpdateVitals_ValidationError(t *testing.T) {
	mockService, router := newTestHandler(t)
	mockService.EXPECT().UpdateVitals(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "PATCH", "/api/v1/incidents/"+uuid.New().String()+"/vitals",
		bytes.NewBufferString(`{"heart_rate": 900}`), bearer(t, "r1", RoleVolunteer))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveAndCancel(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()
	resolved := sampleIncident(id)
	resolved.Status = models.StatusResolved

	mockService.EXPECT().ResolveIncident(gomock.Any(), id).Return(resolved, nil).Times(1)
	mockService.EXPECT().GetIncident(gomock.Any(), id).Return(sampleIncident(id), nil).Times(1)
	mockService.EXPECT().
		CancelIncident(gomock.Any(), id).
		Return(nil, fmt.Errorf("service: could not change incident status: %w", service.ErrInvalidTransition)).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/resolve", nil, bearer(t, "r1", RoleProfessional))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"resolved"`)

	w = makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/cancel", nil, bearer(t, "victim-1", RoleVictim))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIncidentAccess(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		action  string
		body    string
		subject string
		role    string
		allowed bool
	}{
		{"reporter cancels", "POST", "cancel", "", "victim-1", RoleVictim, true},
		{"other victim cannot cancel", "POST", "cancel", "", "victim-2", RoleVictim, false},
		{"assigned volunteer cannot cancel", "POST", "cancel", "", "r1", RoleVolunteer, false},
		{"other victim cannot resolve", "POST", "resolve", "", "victim-2", RoleVictim, false},
		{"assigned volunteer resolves", "POST", "resolve", "", "r1", RoleVolunteer, true},
		{"unassigned volunteer cannot resolve", "POST", "resolve", "", "r2", RoleVolunteer, false},
		{"other victim cannot update vitals", "PATCH", "vitals", `{"notes":"x"}`, "victim-2", RoleVictim, false},
		{"reporter updates vitals", "PATCH", "vitals", `{"notes":"x"}`, "victim-1", RoleVictim, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler(t)
			id := uuid.New()
			incident := sampleIncident(id)
			incident.Responders = []string{"r1"}

			mockService.EXPECT().GetIncident(gomock.Any(), id).Return(incident, nil).Times(1)
			calls := 0
			if tt.allowed {
				calls = 1
			}
			mockService.EXPECT().CancelIncident(gomock.Any(), id).Return(incident, nil).MaxTimes(calls)
			mockService.EXPECT().ResolveIncident(gomock.Any(), id).Return(incident, nil).MaxTimes(calls)
			mockService.EXPECT().UpdateVitals(gomock.Any(), id, gomock.Any()).Return(incident, nil).MaxTimes(calls)

			var body io.Reader
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			w := makeRequest(router, tt.method, "/api/v1/incidents/"+id.String()+"/"+tt.action, body, bearer(t, tt.subject, tt.role))

			if tt.allowed {
				assert.Equal(t, http.StatusOK, w.Code)
			} else {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestIncidentAccess_ProfessionalSkipsLookup(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()
	cancelled := sampleIncident(id)
	cancelled.Status = models.StatusCancelled

	mockService.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)
	mockService.EXPECT().CancelIncident(gomock.Any(), id).Return(cancelled, nil).Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/cancel", nil, bearer(t, "p1", RoleProfessional))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIncidentAccess_UnknownIncident(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()

	mockService.EXPECT().GetIncident(gomock.Any(), id).
		Return(nil, fmt.Errorf("service: could not get incident: %w", service.ErrIncidentNotFound)).Times(1)
	mockService.EXPECT().ResolveIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/incidents/"+id.String()+"/resolve", nil, bearer(t, "victim-1", RoleVictim))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReclassify_AdminOnly(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()
	reclassified := sampleIncident(id)
	reclassified.Severity = models.SeverityCritical

	mockService.EXPECT().ReclassifyIncident(gomock.Any(), id, models.SeverityCritical).Return(reclassified, nil).Times(1)

	body := `{"severity":"critical"}`
	w := makeRequest(router, "PUT", "/api/v1/incidents/"+id.String()+"/severity", bytes.NewBufferString(body), bearer(t, "r1", RoleProfessional))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(router, "PUT", "/api/v1/incidents/"+id.String()+"/severity", bytes.NewBufferString(`{"severity":"extreme"}`), bearer(t, "root", RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = makeRequest(router, "PUT", "/api/v1/incidents/"+id.String()+"/severity", bytes.NewBufferString(body), bearer(t, "root", RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"severity":"critical"`)
}

func TestMatchIncident(t *testing.T) {
	mockService, router := newTestHandler(t)
	id := uuid.New()

	mockService.EXPECT().
		MatchIncident(gomock.Any(), id).
		Return([]models.MatchResult{{ResponderID: "r1", MatchScore: 2}, {ResponderID: "r2", MatchScore: 1}}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/"+id.String()+"/matches", nil, bearer(t, "r1", RoleProfessional))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "r1", resp[0].ResponderID)
}

func TestRankResponders_APIKey(t *testing.T) {
	mockService, router := newTestHandler(t)
	reqBody := RankRequest{
		Location: LocationDTO{Lat: ptr(55.75), Lng: ptr(37.61)},
		Candidates: []ResponderDTO{
			{ID: "r1", Location: LocationDTO{Lat: ptr(55.76), Lng: ptr(37.61)}, TrustScore: 4.5, SaveCount: 3},
		},
	}

	mockService.EXPECT().
		RankResponders(gomock.Any(), models.Location{Lat: 55.75, Lng: 37.61}, gomock.Len(1)).
		Return([]models.MatchResult{{ResponderID: "r1", MatchScore: 5}}).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/responders/rank", jsonBody(t, reqBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = makeRequest(router, "POST", "/api/v1/responders/rank", jsonBody(t, reqBody), map[string]string{"X-API-Key": "test-api-key"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"responder_id":"r1"`)
}

func TestRankResponders_InvalidCandidate(t *testing.T) {
	mockService, router := newTestHandler(t)
	mockService.EXPECT().RankResponders(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	reqBody := RankRequest{
		Location: LocationDTO{Lat: ptr(55.75), Lng: ptr(37.61)},
		Candidates: []ResponderDTO{
			{ID: "r1", Location: LocationDTO{Lat: ptr(55.76), Lng: ptr(37.61)}, TrustScore: 9},
		},
	}

	w := makeRequest(router, "POST", "/api/v1/responders/rank", jsonBody(t, reqBody), map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebsocket_DisabledWithoutHub(t *testing.T) {
	_, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/ws?token="+signToken(t, testJWTSecret, "r1", RoleVolunteer), nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
