package service

//go:generate mockgen -source=incident.go -destination=mocks/incident.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/dispatch"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/webhook"
	"github.com/sirupsen/logrus"
)

// IncidentRepository определяет контракт для работы с бд инцидентов.
// Все изменения - одиночные условные обновления записи.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// AddResponder добавляет респондера только если статус active; повторное добавление - no-op
	AddResponder(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error)
	// Transition переводит инцидент из active в to, иначе ErrInvalidTransition
	Transition(ctx context.Context, id uuid.UUID, to models.IncidentStatus) (*models.Incident, error)
	UpdateVitals(ctx context.Context, id uuid.UUID, patch models.VitalsPatch) (*models.Incident, error)
	UpdateSeverity(ctx context.Context, id uuid.UUID, severity models.SeverityTier) (*models.Incident, error)
	ListByStatus(ctx context.Context, status models.IncidentStatus) ([]*models.Incident, error)
}

// IncidentCache - кеш инцидентов по id
type IncidentCache interface {
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// SetIncidentCache записывает состояние, вернувшееся из изменения
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	// SetIncidentCacheIfAbsent заполняет кеш после промаха; false, если ключ уже есть
	SetIncidentCacheIfAbsent(ctx context.Context, incident *models.Incident) (bool, error)
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// ResponderDirectory - внешний справочник доступных респондеров
type ResponderDirectory interface {
	ListAvailable(ctx context.Context) ([]models.Responder, error)
}

// Assessor - сортировка сигнала: фильтр, тяжесть, совет
type Assessor interface {
	Assess(description, incidentType string, telemetry *models.Telemetry) (models.TriageResult, error)
}

// OfferBroadcaster рассылает предложение миссии подключенным респондерам
type OfferBroadcaster interface {
	BroadcastOffer(ctx context.Context, incident *models.Incident)
}

// CreateIncidentInput - входные данные сигнала SOS
type CreateIncidentInput struct {
	ReporterID  *string
	Type        string
	Description string
	Location    models.Location
	Vitals      models.Vitals
	Telemetry   *models.Telemetry
}

// IncidentService определяет контракт жизненного цикла инцидента
type IncidentService interface {
	CreateIncident(ctx context.Context, input CreateIncidentInput) (*models.Incident, []models.MatchResult, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	AcceptMission(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error)
	UpdateVitals(ctx context.Context, id uuid.UUID, patch models.VitalsPatch) (*models.Incident, error)
	ResolveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	CancelIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ReclassifyIncident(ctx context.Context, id uuid.UUID, severity models.SeverityTier) (*models.Incident, error)
	ListActive(ctx context.Context) ([]*models.Incident, error)
	MatchIncident(ctx context.Context, id uuid.UUID) ([]models.MatchResult, error)
	RankResponders(ctx context.Context, location models.Location, candidates []models.Responder) []models.MatchResult
}

// Deps - зависимости сервиса инцидентов. Cache, Directory, Broadcaster и Webhooks необязательны.
type Deps struct {
	Repo        IncidentRepository
	Cache       IncidentCache
	Directory   ResponderDirectory
	Triage      Assessor
	Ranker      dispatch.Ranker
	Broadcaster OfferBroadcaster
	Webhooks    webhook.WebhookPublisher
	Logger      *logrus.Logger
}

type incidentService struct {
	repo        IncidentRepository
	cache       IncidentCache
	directory   ResponderDirectory
	triage      Assessor
	ranker      dispatch.Ranker
	broadcaster OfferBroadcaster
	webhooks    webhook.WebhookPublisher
	logger      *logrus.Logger
	now         func() time.Time
}

func NewIncidentService(deps Deps) IncidentService {
	s := &incidentService{
		repo:        deps.Repo,
		cache:       deps.Cache,
		directory:   deps.Directory,
		triage:      deps.Triage,
		ranker:      deps.Ranker,
		broadcaster: deps.Broadcaster,
		webhooks:    deps.Webhooks,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.ranker == nil {
		s.ranker = dispatch.NewScoreRanker(dispatch.DefaultWeights(), dispatch.NewETAEstimator())
	}
	if s.webhooks == nil {
		s.webhooks = webhook.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	return s
}

// CreateIncident проводит сортировку сигнала и создает активный инцидент.
// Ложная тревога возвращается как *triage.FalseAlertError до записи в бд.
func (s *incidentService) CreateIncident(ctx context.Context, input CreateIncidentInput) (*models.Incident, []models.MatchResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":       "incident",
		"method":        "CreateIncident",
		"type":          input.Type,
		"has_telemetry": input.Telemetry != nil,
	})
	log.Info("Attempting to create a new incident")

	result, err := s.triage.Assess(input.Description, input.Type, input.Telemetry)
	if err != nil {
		log.WithError(err).Warn("Signal rejected by triage")
		return nil, nil, err
	}

	now := s.now()
	incident := &models.Incident{
		ID:          uuid.New(),
		ReporterID:  input.ReporterID,
		Type:        input.Type,
		Description: input.Description,
		Severity:    result.Priority,
		Advice:      result.Advice,
		Confidence:  result.Confidence,
		Location:    input.Location,
		Vitals:      input.Vitals,
		Status:      models.StatusActive,
		Responders:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"severity":    incident.Severity.String(),
	})
	log.Info("Incident created successfully")

	matches := s.shortlist(ctx, log, incident)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastOffer(ctx, incident)
	}
	s.publish(ctx, log, webhook.EventIncidentCreated, incident, "")

	return incident, matches, nil
}

// GetIncident получает инцидент по ID, сначала из кеша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	if s.cache != nil {
		cached, err := s.cache.GetIncidentFromCache(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read incident from cache")
		} else if cached != nil {
			log.Debug("Incident served from cache")
			return cached, nil
		}
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	// промах не перетирает запись, сделанную изменением после нашего чтения
	if s.cache != nil {
		if _, err := s.cache.SetIncidentCacheIfAbsent(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}

	log.Info("Incident fetched successfully")
	return incident, nil
}

// AcceptMission добавляет респондера в миссию. Повторный вызов ничего не меняет.
func (s *incidentService) AcceptMission(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "incident",
		"method":       "AcceptMission",
		"incident_id":  id,
		"responder_id": responderID,
	})
	log.Info("Responder is accepting mission")

	incident, err := s.repo.AddResponder(ctx, id, responderID)
	if err != nil {
		if errors.Is(err, ErrIncidentNotActive) || errors.Is(err, ErrIncidentNotFound) {
			log.WithError(err).Warn("Mission cannot be accepted")
		} else {
			log.WithError(err).Error("Failed to add responder in repository")
		}
		return nil, fmt.Errorf("service: could not accept mission: %w", err)
	}
	s.writeThrough(ctx, log, incident)

	log.WithField("responders", len(incident.Responders)).Info("Mission accepted")
	s.publish(ctx, log, webhook.EventIncidentAccepted, incident, responderID)
	return incident, nil
}

// UpdateVitals частично обновляет показатели, статус инцидента не важен
func (s *incidentService) UpdateVitals(ctx context.Context, id uuid.UUID, patch models.VitalsPatch) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateVitals",
		"incident_id": id,
	})
	log.Info("Updating vitals")

	incident, err := s.repo.UpdateVitals(ctx, id, patch)
	if err != nil {
		log.WithError(err).Error("Failed to update vitals in repository")
		return nil, fmt.Errorf("service: could not update vitals: %w", err)
	}
	s.writeThrough(ctx, log, incident)

	log.Info("Vitals updated successfully")
	return incident, nil
}

// ResolveIncident переводит active -> resolved
func (s *incidentService) ResolveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return s.transition(ctx, "ResolveIncident", id, models.StatusResolved, webhook.EventIncidentResolved)
}

// CancelIncident переводит active -> cancelled
func (s *incidentService) CancelIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return s.transition(ctx, "CancelIncident", id, models.StatusCancelled, webhook.EventIncidentCancelled)
}

func (s *incidentService) transition(ctx context.Context, method string, id uuid.UUID, to models.IncidentStatus, event string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      method,
		"incident_id": id,
		"to":          to,
	})
	log.Info("Attempting status transition")

	incident, err := s.repo.Transition(ctx, id, to)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrIncidentNotFound) {
			log.WithError(err).Warn("Status transition rejected")
		} else {
			log.WithError(err).Error("Failed to change status in repository")
		}
		return nil, fmt.Errorf("service: could not change incident status: %w", err)
	}
	s.writeThrough(ctx, log, incident)

	log.Info("Incident status changed")
	s.publish(ctx, log, event, incident, "")
	return incident, nil
}

// ReclassifyIncident - явная смена тяжести, вне обычного жизненного цикла
func (s *incidentService) ReclassifyIncident(ctx context.Context, id uuid.UUID, severity models.SeverityTier) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ReclassifyIncident",
		"incident_id": id,
		"severity":    severity.String(),
	})
	log.Info("Reclassifying incident")

	incident, err := s.repo.UpdateSeverity(ctx, id, severity)
	if err != nil {
		log.WithError(err).Error("Failed to update severity in repository")
		return nil, fmt.Errorf("service: could not reclassify incident: %w", err)
	}
	s.writeThrough(ctx, log, incident)

	log.Info("Incident reclassified")
	return incident, nil
}

// ListActive возвращает активные инциденты, новые первыми
func (s *incidentService) ListActive(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListActive",
	})
	log.Info("Listing active incidents")

	incidents, err := s.repo.ListByStatus(ctx, models.StatusActive)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// MatchIncident ранжирует доступных респондеров для существующего инцидента
func (s *incidentService) MatchIncident(ctx context.Context, id uuid.UUID) ([]models.MatchResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "MatchIncident",
		"incident_id": id,
	})

	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.directory == nil {
		return []models.MatchResult{}, nil
	}

	candidates, err := s.directory.ListAvailable(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list responders from directory")
		return nil, fmt.Errorf("service: could not list responders: %w", err)
	}
	return s.ranker.Rank(incident.Location, candidates), nil
}

// RankResponders ранжирует переданных кандидатов относительно точки
func (s *incidentService) RankResponders(_ context.Context, location models.Location, candidates []models.Responder) []models.MatchResult {
	return s.ranker.Rank(location, candidates)
}

// shortlist - ранжирование при создании; ошибка справочника не отменяет инцидент
func (s *incidentService) shortlist(ctx context.Context, log *logrus.Entry, incident *models.Incident) []models.MatchResult {
	if s.directory == nil {
		return []models.MatchResult{}
	}
	candidates, err := s.directory.ListAvailable(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list responders for shortlist")
		return []models.MatchResult{}
	}
	matches := s.ranker.Rank(incident.Location, candidates)
	log.WithField("candidates", len(matches)).Info("Responder shortlist computed")
	return matches
}

// writeThrough кладет в кеш состояние из RETURNING; если записать не удалось, ключ удаляется
func (s *incidentService) writeThrough(ctx context.Context, log *logrus.Entry, incident *models.Incident) {
	if s.cache == nil {
		return
	}
	err := s.cache.SetIncidentCache(ctx, incident)
	if err == nil {
		return
	}
	log.WithError(err).Warn("Failed to write incident to cache")
	if err := s.cache.InvalidateIncidentCache(ctx, incident.ID); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
}

func (s *incidentService) publish(ctx context.Context, log *logrus.Entry, event string, incident *models.Incident, responderID string) {
	ev := webhook.NewWebhookEvent(event, incident)
	ev.ResponderID = responderID
	if err := s.webhooks.Publish(ctx, ev); err != nil {
		log.WithError(err).WithField("event", event).Error("Failed to publish webhook event")
	}
}
