package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/sirupsen/logrus"
)

// SessionServer обслуживает websocket-сессии респондеров
type SessionServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

type Handler struct {
	incidentService service.IncidentService
	sessions        SessionServer
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, sessions SessionServer, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		sessions:        sessions,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ
func (h *Handler) writeServiceError(c *gin.Context, log *logrus.Entry, err error) {
	var falseAlert *triage.FalseAlertError
	switch {
	case errors.As(err, &falseAlert):
		log.WithField("reason", falseAlert.Reason).Info("Signal rejected as false alert")
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "false alert", Reason: falseAlert.Reason})
	case errors.Is(err, service.ErrIncidentNotFound):
		log.WithError(err).Warn("Incident not found")
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "incident not found"})
	case errors.Is(err, service.ErrIncidentNotActive):
		log.WithError(err).Warn("Incident is not active")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "incident is not active"})
	case errors.Is(err, service.ErrInvalidTransition):
		log.WithError(err).Warn("Invalid status transition")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid status transition"})
	default:
		log.WithError(err).Error("Service call failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service unavailable"})
	}
}

func (h *Handler) bindAndValidate(c *gin.Context, log *logrus.Entry, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func parseIncidentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return uuid.Nil, false
	}
	return id, true
}

// authorizeIncident пускает professional/admin, заявителя и, если allowResponders,
// респондеров, принявших миссию. Ответ об ошибке уже записан, если вернулось false.
func (h *Handler) authorizeIncident(c *gin.Context, log *logrus.Entry, id uuid.UUID, allowResponders bool) bool {
	switch c.GetString(ctxRoleKey) {
	case RoleProfessional, RoleAdmin:
		return true
	}

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return false
	}

	caller := callerID(c)
	if incident.ReporterID != nil && *incident.ReporterID == caller {
		return true
	}
	if allowResponders && incident.HasResponder(caller) {
		return true
	}
	log.WithField("caller", caller).Warn("Caller is not a party to the incident")
	c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	return false
}

// @Summary Report an SOS signal
// @Description Triage the signal and open an active incident. The caller becomes the reporter.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param incident body CreateIncidentRequest true "SOS signal"
// @Success 201 {object} CreateIncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 422 {object} ErrorResponse "False alert"
// @Failure 429 {object} ErrorResponse "Too many requests"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	log := h.logger.WithField("method", "createIncident")

	var input CreateIncidentRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	incident, matches, err := h.incidentService.CreateIncident(c.Request.Context(), DTOToCreateInput(input, callerID(c)))
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, CreateIncidentResponse{
		Incident: ModelToIncidentResponse(incident),
		Matches:  MatchesToResponses(matches),
	})
}

// @Summary List active incidents
// @Description Active incidents, newest first.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/active [get]
func (h *Handler) listActiveIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listActiveIncidents")

	incidents, err := h.incidentService.ListActive(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Accept a mission
// @Description The caller joins the incident's responders. Repeated calls change nothing.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Incident is not active"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id}/accept [post]
func (h *Handler) acceptMission(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	responderID := callerID(c)
	log := h.logger.WithFields(logrus.Fields{"method": "acceptMission", "id": id, "responder_id": responderID})

	incident, err := h.incidentService.AcceptMission(c.Request.Context(), id, responderID)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Update vitals
// @Description Partial update; omitted fields keep their values. Allowed in any status.
// @Description Reporter, accepted responders, professional or admin.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param vitals body UpdateVitalsRequest true "Vitals patch"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID or request body"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id}/vitals [patch]
func (h *Handler) updateVitals(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateVitals").WithField("id", id)

	var input UpdateVitalsRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}
	if !h.authorizeIncident(c, log, id, true) {
		return
	}

	incident, err := h.incidentService.UpdateVitals(c.Request.Context(), id, DTOToVitalsPatch(input))
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Resolve an incident
// @Description Reporter, accepted responders, professional or admin.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Invalid status transition"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id}/resolve [post]
func (h *Handler) resolveIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "resolveIncident").WithField("id", id)
	if !h.authorizeIncident(c, log, id, true) {
		return
	}

	incident, err := h.incidentService.ResolveIncident(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Cancel an incident
// @Description Reporter, professional or admin.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Invalid status transition"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id}/cancel [post]
func (h *Handler) cancelIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "cancelIncident").WithField("id", id)
	if !h.authorizeIncident(c, log, id, false) {
		return
	}

	incident, err := h.incidentService.CancelIncident(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Reclassify severity
// @Description Explicit severity override. Admin only.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param severity body ReclassifyRequest true "New severity"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID or request body"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /incidents/{id}/severity [put]
func (h *Handler) reclassifyIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "reclassifyIncident").WithField("id", id)

	var input ReclassifyRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}
	severity, err := models.ParseSeverity(input.Severity)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	incident, err := h.incidentService.ReclassifyIncident(c.Request.Context(), id, severity)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Rank available responders for an incident
// @Tags Dispatch
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} MatchResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 503 {object} ErrorResponse "Directory or storage unavailable"
// @Router /incidents/{id}/matches [get]
func (h *Handler) matchIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "matchIncident").WithField("id", id)

	matches, err := h.incidentService.MatchIncident(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, MatchesToResponses(matches))
}

// @Summary Rank supplied candidates
// @Description Scores candidates against a location. For dispatch console integrations.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body RankRequest true "Location and candidates"
// @Success 200 {array} MatchResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /responders/rank [post]
func (h *Handler) rankResponders(c *gin.Context) {
	log := h.logger.WithField("method", "rankResponders")

	var input RankRequest
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	matches := h.incidentService.RankResponders(c.Request.Context(), dtoToLocation(input.Location), DTOsToResponders(input.Candidates))
	c.JSON(http.StatusOK, MatchesToResponses(matches))
}

// @Summary Responder websocket
// @Description Receives incident.offered events; accepts incident.claim messages.
// @Tags Dispatch
// @Security BearerAuth
// @Param token query string false "Access token when the Authorization header cannot be set"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /ws [get]
func (h *Handler) serveWebsocket(c *gin.Context) {
	log := h.logger.WithField("method", "serveWebsocket")
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "realtime dispatch disabled"})
		return
	}
	if err := h.sessions.ServeWS(c.Writer, c.Request, callerID(c)); err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
	}
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
