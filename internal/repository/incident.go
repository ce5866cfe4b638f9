package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
)

const incidentColumns = `
	id,
	reporter_id,
	type,
	description,
	severity,
	advice,
	confidence,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	vitals_status,
	heart_rate,
	notes,
	status,
	responders,
	created_at,
	updated_at,
	resolved_at`

type IncidentRepository struct {
	db *pgxpool.Pool
}

func NewIncidentRepository(db *pgxpool.Pool) service.IncidentRepository {
	return &IncidentRepository{
		db: db,
	}
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (
			id, reporter_id, type, description, severity, advice, confidence,
			location, vitals_status, heart_rate, notes, status, responders, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ST_SetSRID(ST_MakePoint($8, $9), 4326), $10, $11, $12, $13, $14, $15, $16);
	`
	responders := incident.Responders
	if responders == nil {
		responders = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.ReporterID,
		incident.Type,
		incident.Description,
		int16(incident.Severity),
		incident.Advice,
		incident.Confidence,
		incident.Location.Lng,
		incident.Location.Lat,
		incident.Vitals.Status,
		incident.Vitals.HeartRate,
		incident.Vitals.Notes,
		string(incident.Status),
		responders,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// AddResponder - условное добавление: одна команда UPDATE с проверкой статуса,
// поэтому гонка с resolve/cancel не может потерять обновление
func (r *IncidentRepository) AddResponder(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			responders = CASE
				WHEN $2::text = ANY(responders) THEN responders
				ELSE array_append(responders, $2::text)
			END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, responderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missReason(ctx, id, service.ErrIncidentNotActive)
		}
		return nil, fmt.Errorf("failed to add responder: %w", err)
	}
	return incident, nil
}

// Transition переводит активный инцидент в терминальный статус
func (r *IncidentRepository) Transition(ctx context.Context, id uuid.UUID, to models.IncidentStatus) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			status = $2::text,
			updated_at = NOW(),
			resolved_at = CASE WHEN $2::text = 'resolved' THEN NOW() ELSE resolved_at END
		WHERE id = $1 AND status = 'active'
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missReason(ctx, id, service.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to change incident status: %w", err)
	}
	return incident, nil
}

// UpdateVitals сливает показатели: NULL в патче сохраняет прежнее значение
func (r *IncidentRepository) UpdateVitals(ctx context.Context, id uuid.UUID, patch models.VitalsPatch) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			vitals_status = COALESCE($2, vitals_status),
			heart_rate = COALESCE($3, heart_rate),
			notes = COALESCE($4, notes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, patch.Status, patch.HeartRate, patch.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to update vitals: %w", err)
	}
	return incident, nil
}

// UpdateSeverity - явная переклассификация
func (r *IncidentRepository) UpdateSeverity(ctx context.Context, id uuid.UUID, severity models.SeverityTier) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			severity = $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, int16(severity)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to update severity: %w", err)
	}
	return incident, nil
}

// ListByStatus возвращает инциденты со статусом, новые первыми
func (r *IncidentRepository) ListByStatus(ctx context.Context, status models.IncidentStatus) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE status = $1 ORDER BY created_at DESC;`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

// missReason выясняет, почему условное обновление не затронуло строк
func (r *IncidentRepository) missReason(ctx context.Context, id uuid.UUID, conflict error) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM incidents WHERE id = $1;`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return fmt.Errorf("failed to read incident status: %w", err)
	}
	return fmt.Errorf("incident with id %s is %s: %w", id, status, conflict)
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var (
		severity int16
		status   string
	)
	err := row.Scan(
		&incident.ID,
		&incident.ReporterID,
		&incident.Type,
		&incident.Description,
		&severity,
		&incident.Advice,
		&incident.Confidence,
		&incident.Location.Lat,
		&incident.Location.Lng,
		&incident.Vitals.Status,
		&incident.Vitals.HeartRate,
		&incident.Vitals.Notes,
		&status,
		&incident.Responders,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.Severity = models.SeverityTier(severity)
	incident.Status = models.IncidentStatus(status)
	if incident.Responders == nil {
		incident.Responders = []string{}
	}
	return incident, nil
}
