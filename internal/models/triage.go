package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SeverityTier - упорядоченная шкала тяжести: Low < Moderate < Severe < Critical
type SeverityTier int

const (
	SeverityLow SeverityTier = iota
	SeverityModerate
	SeveritySevere
	SeverityCritical
)

var severityNames = [...]string{"low", "moderate", "severe", "critical"}

func (s SeverityTier) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity разбирает строковое представление уровня тяжести
func ParseSeverity(v string) (SeverityTier, error) {
	for i, name := range severityNames {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return SeverityTier(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", v)
}

func (s SeverityTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SeverityTier) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s SeverityTier) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SeverityTier) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Telemetry - показания датчиков движения и удара, не изменяются после получения
type Telemetry struct {
	SpeedKmh         float64 `json:"speed_kmh"`
	ForceN           float64 `json:"force_n"`
	AccelX           float64 `json:"accel_x"`
	AccelY           float64 `json:"accel_y"`
	AccelZ           float64 `json:"accel_z"`
	ImpactDurationMs float64 `json:"impact_duration_ms"`
}

// TriageResult - результат сортировки: совет, приоритет и уверенность
type TriageResult struct {
	Advice     string       `json:"advice"`
	Priority   SeverityTier `json:"priority"`
	Confidence float64      `json:"confidence"`
}
