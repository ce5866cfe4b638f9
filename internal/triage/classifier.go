package triage

import "github.com/shenikar/sos_dispatch/internal/models"

// Classifier - узкий интерфейс классификатора тяжести, чтобы правила можно было
// заменить обученной моделью без изменений в жизненном цикле инцидента.
type Classifier interface {
	Predict(t models.Telemetry) models.SeverityTier
	Confidence(t models.Telemetry) float64
}

// SeverityThresholds - пороги правил классификации
type SeverityThresholds struct {
	CriticalForceN      float64 `yaml:"critical_force_n"`
	CriticalSpeedKmh    float64 `yaml:"critical_speed_kmh"`
	CriticalSpeedForceN float64 `yaml:"critical_speed_force_n"`
	SevereForceN        float64 `yaml:"severe_force_n"`
	SevereSpeedKmh      float64 `yaml:"severe_speed_kmh"`
	ModerateForceN      float64 `yaml:"moderate_force_n"`
}

// DefaultThresholds возвращает пороги по умолчанию
func DefaultThresholds() SeverityThresholds {
	return SeverityThresholds{
		CriticalForceN:      500,
		CriticalSpeedKmh:    80,
		CriticalSpeedForceN: 200,
		SevereForceN:        200,
		SevereSpeedKmh:      40,
		ModerateForceN:      50,
	}
}

const (
	baseConfidence   = 0.4
	signalConfidence = 0.2
	maxConfidence    = 0.99
)

// RuleClassifier - детерминированная таблица правил
type RuleClassifier struct {
	thresholds SeverityThresholds
}

func NewRuleClassifier(thresholds SeverityThresholds) *RuleClassifier {
	return &RuleClassifier{thresholds: thresholds}
}

// Predict проверяет правила сверху вниз, первое совпадение побеждает
func (c *RuleClassifier) Predict(t models.Telemetry) models.SeverityTier {
	th := c.thresholds
	switch {
	case t.ForceN > th.CriticalForceN || (t.SpeedKmh > th.CriticalSpeedKmh && t.ForceN > th.CriticalSpeedForceN):
		return models.SeverityCritical
	case t.ForceN > th.SevereForceN || t.SpeedKmh > th.SevereSpeedKmh:
		return models.SeveritySevere
	case t.ForceN > th.ModerateForceN:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// Confidence - эвристика "больше сигналов, выше уверенность", не вероятность
func (c *RuleClassifier) Confidence(t models.Telemetry) float64 {
	confidence := baseConfidence
	if t.ForceN > 0 {
		confidence += signalConfidence
	}
	if t.SpeedKmh > 0 {
		confidence += signalConfidence
	}
	if t.AccelX != 0 {
		confidence += signalConfidence
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return confidence
}
