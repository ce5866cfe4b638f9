package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	_ "modernc.org/sqlite"
)

const sqliteIncidentColumns = `
	id, reporter_id, type, description, severity, advice, confidence,
	latitude, longitude, vitals_status, heart_rate, notes, status,
	responders, created_at, updated_at, resolved_at`

// SQLiteIncidentRepository - хранилище инцидентов в SQLite для локального запуска и тестов
type SQLiteIncidentRepository struct {
	db *sql.DB
}

// NewSQLiteIncidentRepository открывает базу и создает схему
func NewSQLiteIncidentRepository(ctx context.Context, dsn string) (*SQLiteIncidentRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:sos_dispatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// один писатель: все условные обновления выполняются последовательно
	db.SetMaxOpenConns(1)

	repo := &SQLiteIncidentRepository{db: db}
	if err := repo.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteIncidentRepository) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			reporter_id TEXT,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			severity INTEGER NOT NULL,
			advice TEXT NOT NULL,
			confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			vitals_status TEXT NOT NULL DEFAULT '',
			heart_rate INTEGER,
			notes TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			responders TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			resolved_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_status_created_at ON incidents(status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS responders (
			id TEXT PRIMARY KEY,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			trust_score REAL NOT NULL DEFAULT 0,
			save_count INTEGER NOT NULL DEFAULT 0,
			is_professional INTEGER NOT NULL DEFAULT 0,
			is_available INTEGER NOT NULL DEFAULT 1
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init sqlite schema: %w", err)
		}
	}
	return nil
}

// Close закрывает соединение с базой
func (r *SQLiteIncidentRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteIncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	responders := incident.Responders
	if responders == nil {
		responders = []string{}
	}
	respondersJSON, err := json.Marshal(responders)
	if err != nil {
		return fmt.Errorf("failed to marshal responders: %w", err)
	}

	query := `
		INSERT INTO incidents (
			id, reporter_id, type, description, severity, advice, confidence,
			latitude, longitude, vitals_status, heart_rate, notes, status,
			responders, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		incident.ID.String(),
		nullable(incident.ReporterID),
		incident.Type,
		incident.Description,
		int(incident.Severity),
		incident.Advice,
		incident.Confidence,
		incident.Location.Lat,
		incident.Location.Lng,
		incident.Vitals.Status,
		nullable(incident.Vitals.HeartRate),
		nullable(incident.Vitals.Notes),
		string(incident.Status),
		string(respondersJSON),
		incident.CreatedAt.UnixNano(),
		incident.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

func (r *SQLiteIncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + sqliteIncidentColumns + ` FROM incidents WHERE id = ?`
	incident, err := scanSQLiteIncident(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

func (r *SQLiteIncidentRepository) AddResponder(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			responders = CASE
				WHEN EXISTS (SELECT 1 FROM json_each(incidents.responders) WHERE json_each.value = ?2) THEN responders
				ELSE json_insert(responders, '$[#]', ?2)
			END,
			updated_at = ?3
		WHERE id = ?1 AND status = 'active'
		RETURNING ` + sqliteIncidentColumns
	incident, err := scanSQLiteIncident(r.db.QueryRowContext(ctx, query, id.String(), responderID, nowNano()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missReason(ctx, id, service.ErrIncidentNotActive)
		}
		return nil, fmt.Errorf("failed to add responder: %w", err)
	}
	return incident, nil
}

func (r *SQLiteIncidentRepository) Transition(ctx context.Context, id uuid.UUID, to models.IncidentStatus) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			status = ?2,
			updated_at = ?3,
			resolved_at = CASE WHEN ?2 = 'resolved' THEN ?3 ELSE resolved_at END
		WHERE id = ?1 AND status = 'active'
		RETURNING ` + sqliteIncidentColumns
	incident, err := scanSQLiteIncident(r.db.QueryRowContext(ctx, query, id.String(), string(to), nowNano()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missReason(ctx, id, service.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to change incident status: %w", err)
	}
	return incident, nil
}

func (r *SQLiteIncidentRepository) UpdateVitals(ctx context.Context, id uuid.UUID, patch models.VitalsPatch) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			vitals_status = COALESCE(?2, vitals_status),
			heart_rate = COALESCE(?3, heart_rate),
			notes = COALESCE(?4, notes),
			updated_at = ?5
		WHERE id = ?1
		RETURNING ` + sqliteIncidentColumns
	incident, err := scanSQLiteIncident(r.db.QueryRowContext(ctx, query,
		id.String(), nullable(patch.Status), nullable(patch.HeartRate), nullable(patch.Notes), nowNano()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to update vitals: %w", err)
	}
	return incident, nil
}

func (r *SQLiteIncidentRepository) UpdateSeverity(ctx context.Context, id uuid.UUID, severity models.SeverityTier) (*models.Incident, error) {
	query := `
		UPDATE incidents SET severity = ?2, updated_at = ?3
		WHERE id = ?1
		RETURNING ` + sqliteIncidentColumns
	incident, err := scanSQLiteIncident(r.db.QueryRowContext(ctx, query, id.String(), int(severity), nowNano()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to update severity: %w", err)
	}
	return incident, nil
}

func (r *SQLiteIncidentRepository) ListByStatus(ctx context.Context, status models.IncidentStatus) ([]*models.Incident, error) {
	query := `SELECT ` + sqliteIncidentColumns + ` FROM incidents WHERE status = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanSQLiteIncident(rows)
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

func (r *SQLiteIncidentRepository) missReason(ctx context.Context, id uuid.UUID, conflict error) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM incidents WHERE id = ?`, id.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("incident with id %s: %w", id, service.ErrIncidentNotFound)
		}
		return fmt.Errorf("failed to read incident status: %w", err)
	}
	return fmt.Errorf("incident with id %s is %s: %w", id, status, conflict)
}

// Responders возвращает справочник респондеров из той же базы
func (r *SQLiteIncidentRepository) Responders() service.ResponderDirectory {
	return &sqliteResponderDirectory{db: r.db}
}

// UpsertResponder сохраняет снимок респондера
func (r *SQLiteIncidentRepository) UpsertResponder(ctx context.Context, rsp models.Responder, available bool) error {
	query := `
		INSERT INTO responders (id, latitude, longitude, trust_score, save_count, is_professional, is_available)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			trust_score = excluded.trust_score,
			save_count = excluded.save_count,
			is_professional = excluded.is_professional,
			is_available = excluded.is_available`
	_, err := r.db.ExecContext(ctx, query,
		rsp.ID, rsp.Location.Lat, rsp.Location.Lng, rsp.TrustScore, rsp.SaveCount, rsp.IsProfessional, available)
	if err != nil {
		return fmt.Errorf("failed to upsert responder: %w", err)
	}
	return nil
}

type sqliteResponderDirectory struct {
	db *sql.DB
}

func (d *sqliteResponderDirectory) ListAvailable(ctx context.Context) ([]models.Responder, error) {
	query := `
		SELECT id, latitude, longitude, trust_score, save_count, is_professional
		FROM responders
		WHERE is_available = 1
		ORDER BY id`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list responders: %w", err)
	}
	defer rows.Close()

	responders := make([]models.Responder, 0)
	for rows.Next() {
		var rsp models.Responder
		if err := rows.Scan(&rsp.ID, &rsp.Location.Lat, &rsp.Location.Lng, &rsp.TrustScore, &rsp.SaveCount, &rsp.IsProfessional); err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, rsp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error responder iteration: %w", err)
	}
	return responders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteIncident(row rowScanner) (*models.Incident, error) {
	var (
		incident   models.Incident
		id         string
		reporterID sql.NullString
		severity   int
		heartRate  sql.NullInt64
		notes      sql.NullString
		status     string
		responders string
		createdAt  int64
		updatedAt  int64
		resolvedAt sql.NullInt64
	)
	err := row.Scan(
		&id,
		&reporterID,
		&incident.Type,
		&incident.Description,
		&severity,
		&incident.Advice,
		&incident.Confidence,
		&incident.Location.Lat,
		&incident.Location.Lng,
		&incident.Vitals.Status,
		&heartRate,
		&notes,
		&status,
		&responders,
		&createdAt,
		&updatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if incident.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid incident id %q: %w", id, err)
	}
	if reporterID.Valid {
		incident.ReporterID = &reporterID.String
	}
	if heartRate.Valid {
		hr := int(heartRate.Int64)
		incident.Vitals.HeartRate = &hr
	}
	if notes.Valid {
		incident.Vitals.Notes = &notes.String
	}
	if err := json.Unmarshal([]byte(responders), &incident.Responders); err != nil {
		return nil, fmt.Errorf("invalid responders column: %w", err)
	}
	if incident.Responders == nil {
		incident.Responders = []string{}
	}
	incident.Severity = models.SeverityTier(severity)
	incident.Status = models.IncidentStatus(status)
	incident.CreatedAt = time.Unix(0, createdAt).UTC()
	incident.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if resolvedAt.Valid {
		t := time.Unix(0, resolvedAt.Int64).UTC()
		incident.ResolvedAt = &t
	}
	return &incident, nil
}

// nullable разыменовывает указатель, nil превращается в NULL
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nowNano() int64 {
	return time.Now().UTC().UnixNano()
}
