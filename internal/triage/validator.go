package triage

import "github.com/shenikar/sos_dispatch/internal/models"

const (
	ReasonAccidentalDrop       = "accidental device drop"
	ReasonInsufficientMomentum = "insufficient momentum for vehicle-scale accident"
)

// ValidationResult - решение фильтра по одной записи телеметрии
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// SensorValidator отсекает ложные срабатывания (например, упавший телефон)
// до создания инцидента. Правила проверяются по порядку, срабатывает первое.
type SensorValidator struct{}

func NewSensorValidator() *SensorValidator {
	return &SensorValidator{}
}

func (v *SensorValidator) Validate(t models.Telemetry) ValidationResult {
	// сильный удар без движения - устройство упало, а не человек
	if t.SpeedKmh < 5 && t.ForceN > 100 {
		return ValidationResult{Valid: false, Reason: ReasonAccidentalDrop}
	}

	vehicleImpact := t.SpeedKmh > 15 && t.ForceN > 50
	sustainedImpact := t.ImpactDurationMs > 200 && t.ForceN > 30
	if !vehicleImpact && !sustainedImpact {
		return ValidationResult{Valid: false, Reason: ReasonInsufficientMomentum}
	}

	return ValidationResult{Valid: true}
}
