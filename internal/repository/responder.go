package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
)

// ResponderDirectory читает проекцию внешнего справочника респондеров
type ResponderDirectory struct {
	db *pgxpool.Pool
}

func NewResponderDirectory(db *pgxpool.Pool) service.ResponderDirectory {
	return &ResponderDirectory{db: db}
}

// ListAvailable возвращает респондеров, готовых к выезду
func (r *ResponderDirectory) ListAvailable(ctx context.Context) ([]models.Responder, error) {
	query := `
		SELECT
			id,
			ST_Y(location::geometry) AS latitude,
			ST_X(location::geometry) AS longitude,
			trust_score,
			save_count,
			is_professional
		FROM responders
		WHERE is_available
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list responders: %w", err)
	}
	defer rows.Close()

	responders := make([]models.Responder, 0)
	for rows.Next() {
		var rsp models.Responder
		if err := rows.Scan(
			&rsp.ID,
			&rsp.Location.Lat,
			&rsp.Location.Lng,
			&rsp.TrustScore,
			&rsp.SaveCount,
			&rsp.IsProfessional,
		); err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, rsp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error responder iteration: %w", err)
	}
	return responders, nil
}
