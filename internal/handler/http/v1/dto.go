package v1

import (
	"time"

	"github.com/google/uuid"
)

// LocationDTO координаты точки
// @Description координаты точки
type LocationDTO struct {
	Lat *float64 `json:"lat" validate:"required,latitude" example:"55.7558"`
	Lng *float64 `json:"lng" validate:"required,longitude" example:"37.6173"`
}

// TelemetryDTO показания датчиков устройства
// @Description показания датчиков устройства
type TelemetryDTO struct {
	SpeedKmh         float64 `json:"speed_kmh" validate:"gte=0"`
	ForceN           float64 `json:"force_n" validate:"gte=0"`
	AccelX           float64 `json:"accel_x"`
	AccelY           float64 `json:"accel_y"`
	AccelZ           float64 `json:"accel_z"`
	ImpactDurationMs float64 `json:"impact_duration_ms" validate:"gte=0"`
}

// VitalsDTO состояние пострадавшего
// @Description состояние пострадавшего
type VitalsDTO struct {
	Status    string  `json:"status" validate:"max=64"`
	HeartRate *int    `json:"heart_rate,omitempty" validate:"omitempty,gte=0,lte=300"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CreateIncidentRequest DTO сигнала SOS
// @Description DTO сигнала SOS
type CreateIncidentRequest struct {
	Type        string        `json:"type" validate:"required,max=64" example:"accident"`
	Description string        `json:"description,omitempty" validate:"max=2000"`
	Location    LocationDTO   `json:"location"`
	Vitals      *VitalsDTO    `json:"vitals,omitempty"`
	Telemetry   *TelemetryDTO `json:"telemetry,omitempty"`
}

// UpdateVitalsRequest DTO частичного обновления показателей
// @Description DTO частичного обновления показателей
type UpdateVitalsRequest struct {
	Status    *string `json:"status,omitempty" validate:"omitempty,max=64"`
	HeartRate *int    `json:"heart_rate,omitempty" validate:"omitempty,gte=0,lte=300"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ReclassifyRequest DTO ручной смены тяжести
// @Description DTO ручной смены тяжести
type ReclassifyRequest struct {
	Severity string `json:"severity" validate:"required,oneof=low moderate severe critical" example:"critical"`
}

// ResponderDTO кандидат для ранжирования
// @Description кандидат для ранжирования
type ResponderDTO struct {
	ID             string      `json:"id" validate:"required"`
	Location       LocationDTO `json:"location"`
	TrustScore     float64     `json:"trust_score" validate:"gte=0,lte=5"`
	SaveCount      int         `json:"save_count" validate:"gte=0"`
	IsProfessional bool        `json:"is_professional"`
}

// RankRequest DTO ранжирования кандидатов
// @Description DTO ранжирования кандидатов
type RankRequest struct {
	Location   LocationDTO    `json:"location"`
	Candidates []ResponderDTO `json:"candidates" validate:"dive"`
}

// LocationResponse координаты в ответе
type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VitalsResponse показатели в ответе
type VitalsResponse struct {
	Status    string  `json:"status"`
	HeartRate *int    `json:"heart_rate,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID          uuid.UUID        `json:"id"`
	ReporterID  *string          `json:"reporter_id,omitempty"`
	Type        string           `json:"type"`
	Description string           `json:"description,omitempty"`
	Severity    string           `json:"severity" example:"severe"`
	Advice      string           `json:"advice"`
	Confidence  float64          `json:"confidence"`
	Location    LocationResponse `json:"location"`
	Vitals      VitalsResponse   `json:"vitals"`
	Status      string           `json:"status" example:"active"`
	Responders  []string         `json:"responders"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// ETAWindowResponse интервал прибытия в минутах
type ETAWindowResponse struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// MatchResponse DTO результата ранжирования
// @Description DTO результата ранжирования
type MatchResponse struct {
	ResponderID    string            `json:"responder_id"`
	MatchScore     float64           `json:"match_score"`
	DistanceMeters float64           `json:"distance_meters"`
	ETAMinutes     int               `json:"eta_minutes"`
	ETAWindow      ETAWindowResponse `json:"eta_window"`
}

// CreateIncidentResponse DTO ответа на сигнал SOS
// @Description DTO ответа на сигнал SOS
type CreateIncidentResponse struct {
	Incident *IncidentResponse `json:"incident"`
	Matches  []MatchResponse   `json:"matches"`
}

// ErrorResponse DTO ошибки
// @Description DTO ошибки
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
