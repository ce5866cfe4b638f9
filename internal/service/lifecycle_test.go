package service_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/repository"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	offers []*models.Incident
}

func (b *recordingBroadcaster) BroadcastOffer(_ context.Context, incident *models.Incident) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offers = append(b.offers, incident)
}

// newSQLiteService собирает сервис поверх настоящего хранилища и конвейера сортировки
func newSQLiteService(t *testing.T) (service.IncidentService, *repository.SQLiteIncidentRepository, *recordingBroadcaster) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "lifecycle.db") + "?_pragma=busy_timeout(5000)"
	repo, err := repository.NewSQLiteIncidentRepository(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	broadcaster := &recordingBroadcaster{}
	svc := service.NewIncidentService(service.Deps{
		Repo:        repo,
		Directory:   repo.Responders(),
		Triage:      triage.NewPipelineFromTable(triage.DefaultTable(), triage.WithJitter(func() float64 { return 0 })),
		Broadcaster: broadcaster,
		Logger:      logger,
	})
	return svc, repo, broadcaster
}

func TestLifecycle_EndToEnd(t *testing.T) {
	svc, repo, broadcaster := newSQLiteService(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertResponder(ctx, models.Responder{
		ID: "r1", Location: models.Location{Lat: 55.751, Lng: 37.61}, TrustScore: 4.5, SaveCount: 3,
	}, true))

	reporter := "victim-1"
	incident, matches, err := svc.CreateIncident(ctx, service.CreateIncidentInput{
		ReporterID:  &reporter,
		Type:        "accident",
		Description: "car crash",
		Location:    models.Location{Lat: 55.75, Lng: 37.61},
		Vitals:      models.Vitals{Status: "conscious"},
		Telemetry:   &models.Telemetry{SpeedKmh: 60, ForceN: 250, ImpactDurationMs: 150},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeveritySevere, incident.Severity)
	assert.GreaterOrEqual(t, incident.Confidence, 0.8)
	assert.LessOrEqual(t, incident.Confidence, 1.0)
	assert.Equal(t, models.StatusActive, incident.Status)
	assert.NotEmpty(t, incident.Advice)
	require.Len(t, matches, 1)
	assert.Equal(t, "r1", matches[0].ResponderID)
	require.Len(t, broadcaster.offers, 1)

	accepted, err := svc.AcceptMission(ctx, incident.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, accepted.Responders)

	resolved, err := svc.ResolveIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, resolved.Status)

	_, err = svc.AcceptMission(ctx, incident.ID, "R2")
	assert.ErrorIs(t, err, service.ErrIncidentNotActive)

	final, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, final.Responders)
	assert.Equal(t, models.StatusResolved, final.Status)
	assert.Equal(t, models.SeveritySevere, final.Severity)
}

func TestLifecycle_FalseAlertIsNotPersisted(t *testing.T) {
	svc, _, broadcaster := newSQLiteService(t)
	ctx := context.Background()

	_, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{
		Type:      "accident",
		Location:  models.Location{Lat: 1, Lng: 1},
		Telemetry: &models.Telemetry{SpeedKmh: 2, ForceN: 150},
	})

	var falseAlert *triage.FalseAlertError
	require.ErrorAs(t, err, &falseAlert)
	assert.Equal(t, triage.ReasonAccidentalDrop, falseAlert.Reason)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, broadcaster.offers)
}

func TestLifecycle_TextOnlyTriage(t *testing.T) {
	svc, _, _ := newSQLiteService(t)

	incident, _, err := svc.CreateIncident(context.Background(), service.CreateIncidentInput{
		Type:        "medical",
		Description: "my father has heart pain",
		Location:    models.Location{Lat: 1, Lng: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, incident.Severity)
	assert.InDelta(t, 0.95, incident.Confidence, 1e-9)
}

func TestLifecycle_DoubleAcceptIsIdempotent(t *testing.T) {
	svc, _, _ := newSQLiteService(t)
	ctx := context.Background()
	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AcceptMission(ctx, incident.ID, "R1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, got.Responders)
}

func TestLifecycle_ResolveThenAcceptLeavesIncidentUnchanged(t *testing.T) {
	svc, _, _ := newSQLiteService(t)
	ctx := context.Background()
	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)

	resolved, err := svc.ResolveIncident(ctx, incident.ID)
	require.NoError(t, err)

	_, err = svc.AcceptMission(ctx, incident.ID, "R1")
	require.ErrorIs(t, err, service.ErrIncidentNotActive)

	_, err = svc.CancelIncident(ctx, incident.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransition)

	got, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.Status, got.Status)
	assert.Empty(t, got.Responders)
	assert.Equal(t, resolved.UpdatedAt, got.UpdatedAt)
}

func TestLifecycle_VitalsPartialMerge(t *testing.T) {
	svc, _, _ := newSQLiteService(t)
	ctx := context.Background()
	hr := 110
	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{
		Type:     "fracture",
		Location: models.Location{Lat: 1, Lng: 1},
		Vitals:   models.Vitals{Status: "conscious", HeartRate: &hr},
	})
	require.NoError(t, err)

	notes := "leg splinted"
	got, err := svc.UpdateVitals(ctx, incident.ID, models.VitalsPatch{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, "conscious", got.Vitals.Status)
	assert.Equal(t, 110, *got.Vitals.HeartRate)
	assert.Equal(t, notes, *got.Vitals.Notes)
}

func TestLifecycle_ListActiveNewestFirst(t *testing.T) {
	svc, _, _ := newSQLiteService(t)
	ctx := context.Background()

	first, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "burn", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	third, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)
	_, err = svc.CancelIncident(ctx, third.ID)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)
}

func TestLifecycle_ReclassifyOnlyChangesSeverity(t *testing.T) {
	svc, _, _ := newSQLiteService(t)
	ctx := context.Background()
	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fracture", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityModerate, incident.Severity)

	got, err := svc.ReclassifyIncident(ctx, incident.ID, models.SeverityCritical)
	require.NoError(t, err)

	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, incident.Advice, got.Advice)
}

// memoryCache повторяет семантику Redis-кеша: запись по версии updated_at и заполнение только при отсутствии ключа
type memoryCache struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Incident
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[uuid.UUID]models.Incident)}
}

func (c *memoryCache) GetIncidentFromCache(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	incident, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	return &incident, nil
}

func (c *memoryCache) SetIncidentCache(_ context.Context, incident *models.Incident) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.items[incident.ID]; ok && cur.UpdatedAt.After(incident.UpdatedAt) {
		return nil
	}
	c.items[incident.ID] = *incident
	return nil
}

func (c *memoryCache) SetIncidentCacheIfAbsent(_ context.Context, incident *models.Incident) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[incident.ID]; ok {
		return false, nil
	}
	c.items[incident.ID] = *incident
	return true, nil
}

func (c *memoryCache) InvalidateIncidentCache(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

// interleavingRepo выполняет afterRead один раз между чтением строки и возвратом ее сервису
type interleavingRepo struct {
	service.IncidentRepository
	afterRead func()
}

func (r *interleavingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident, err := r.IncidentRepository.GetByID(ctx, id)
	if r.afterRead != nil {
		hook := r.afterRead
		r.afterRead = nil
		hook()
	}
	return incident, err
}

func TestLifecycle_CacheMissDoesNotOverwriteNewerState(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "cache.db") + "?_pragma=busy_timeout(5000)"
	sqliteRepo, err := repository.NewSQLiteIncidentRepository(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	repo := &interleavingRepo{IncidentRepository: sqliteRepo}
	cache := newMemoryCache()
	svc := service.NewIncidentService(service.Deps{
		Repo:   repo,
		Cache:  cache,
		Triage: triage.NewPipelineFromTable(triage.DefaultTable(), triage.WithJitter(func() float64 { return 0 })),
		Logger: logger,
	})
	ctx := context.Background()

	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)

	// Между чтением из бд и заполнением кеша инцидент закрывается
	repo.afterRead = func() {
		_, err := svc.ResolveIncident(ctx, incident.ID)
		require.NoError(t, err)
	}

	stale, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stale.Status)

	got, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)

	_, err = svc.AcceptMission(ctx, incident.ID, "R1")
	assert.ErrorIs(t, err, service.ErrIncidentNotActive)
}

func TestLifecycle_MutationsWriteThroughCache(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "writethrough.db") + "?_pragma=busy_timeout(5000)"
	repo, err := repository.NewSQLiteIncidentRepository(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cache := newMemoryCache()
	svc := service.NewIncidentService(service.Deps{
		Repo:   repo,
		Cache:  cache,
		Triage: triage.NewPipelineFromTable(triage.DefaultTable(), triage.WithJitter(func() float64 { return 0 })),
		Logger: logger,
	})
	ctx := context.Background()

	incident, _, err := svc.CreateIncident(ctx, service.CreateIncidentInput{Type: "fire", Location: models.Location{Lat: 1, Lng: 1}})
	require.NoError(t, err)
	_, err = svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)

	_, err = svc.AcceptMission(ctx, incident.ID, "R1")
	require.NoError(t, err)

	cached, err := cache.GetIncidentFromCache(ctx, incident.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, []string{"R1"}, cached.Responders)
}
