package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentStatus - статус жизненного цикла инцидента
type IncidentStatus string

const (
	StatusActive    IncidentStatus = "active"
	StatusResolved  IncidentStatus = "resolved"
	StatusCancelled IncidentStatus = "cancelled"
)

// IsTerminal сообщает, что из статуса нет переходов
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Location - точка на карте
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vitals - состояние пострадавшего
type Vitals struct {
	Status    string  `json:"status"`
	HeartRate *int    `json:"heart_rate,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// VitalsPatch - частичное обновление Vitals, nil-поля сохраняют прежнее значение
type VitalsPatch struct {
	Status    *string `json:"status,omitempty"`
	HeartRate *int    `json:"heart_rate,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Merge применяет патч к текущим показателям
func (v Vitals) Merge(p VitalsPatch) Vitals {
	out := v
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.HeartRate != nil {
		hr := *p.HeartRate
		out.HeartRate = &hr
	}
	if p.Notes != nil {
		notes := *p.Notes
		out.Notes = &notes
	}
	return out
}

type Incident struct {
	ID          uuid.UUID      `json:"id"`
	ReporterID  *string        `json:"reporter_id,omitempty"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Severity    SeverityTier   `json:"severity"`
	Advice      string         `json:"advice"`
	Confidence  float64        `json:"confidence"`
	Location    Location       `json:"location"`
	Vitals      Vitals         `json:"vitals"`
	Status      IncidentStatus `json:"status"`
	Responders  []string       `json:"responders"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// HasResponder проверяет, участвует ли респондер в миссии
func (i *Incident) HasResponder(responderID string) bool {
	for _, id := range i.Responders {
		if id == responderID {
			return true
		}
	}
	return false
}
