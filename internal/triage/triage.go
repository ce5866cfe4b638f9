// Package triage решает, является ли сигнал SOS настоящим инцидентом,
// и определяет его тяжесть и рекомендации первой помощи.
package triage

import "github.com/shenikar/sos_dispatch/internal/models"

// Pipeline объединяет фильтр телеметрии, классификатор и базу советов
type Pipeline struct {
	validator  *SensorValidator
	classifier Classifier
	advisory   *AdvisoryEngine
}

func NewPipeline(classifier Classifier, advisory *AdvisoryEngine) *Pipeline {
	return &Pipeline{
		validator:  NewSensorValidator(),
		classifier: classifier,
		advisory:   advisory,
	}
}

// NewPipelineFromTable собирает конвейер из таблицы правил
func NewPipelineFromTable(table Table, opts ...AdvisoryOption) *Pipeline {
	return NewPipeline(
		NewRuleClassifier(table.Thresholds),
		NewAdvisoryEngine(table.Knowledge, opts...),
	)
}

// Assess проводит сортировку. Телеметрия, если есть, проверяется первой и
// ее тяжесть и уверенность важнее текстовых. Совет всегда из базы знаний.
func (p *Pipeline) Assess(description, incidentType string, telemetry *models.Telemetry) (models.TriageResult, error) {
	if telemetry != nil {
		if res := p.validator.Validate(*telemetry); !res.Valid {
			return models.TriageResult{}, &FalseAlertError{Reason: res.Reason}
		}
	}

	result := p.advisory.Triage(description, incidentType)
	if telemetry != nil {
		result.Priority = p.classifier.Predict(*telemetry)
		result.Confidence = p.classifier.Confidence(*telemetry)
	}
	result.Confidence = clamp(result.Confidence)
	return result, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
