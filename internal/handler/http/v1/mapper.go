package v1

import (
	"strings"

	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
)

func dtoToLocation(dto LocationDTO) models.Location {
	return models.Location{Lat: *dto.Lat, Lng: *dto.Lng}
}

// DTOToCreateInput преобразует запрос SOS во входные данные сервиса
func DTOToCreateInput(dto CreateIncidentRequest, reporterID string) service.CreateIncidentInput {
	input := service.CreateIncidentInput{
		Type:        strings.TrimSpace(dto.Type),
		Description: dto.Description,
		Location:    dtoToLocation(dto.Location),
	}
	if reporterID != "" {
		input.ReporterID = &reporterID
	}
	if dto.Vitals != nil {
		input.Vitals = models.Vitals{
			Status:    dto.Vitals.Status,
			HeartRate: dto.Vitals.HeartRate,
			Notes:     dto.Vitals.Notes,
		}
	}
	if dto.Telemetry != nil {
		input.Telemetry = &models.Telemetry{
			SpeedKmh:         dto.Telemetry.SpeedKmh,
			ForceN:           dto.Telemetry.ForceN,
			AccelX:           dto.Telemetry.AccelX,
			AccelY:           dto.Telemetry.AccelY,
			AccelZ:           dto.Telemetry.AccelZ,
			ImpactDurationMs: dto.Telemetry.ImpactDurationMs,
		}
	}
	return input
}

// DTOToVitalsPatch преобразует запрос обновления показателей
func DTOToVitalsPatch(dto UpdateVitalsRequest) models.VitalsPatch {
	return models.VitalsPatch{
		Status:    dto.Status,
		HeartRate: dto.HeartRate,
		Notes:     dto.Notes,
	}
}

// DTOsToResponders преобразует кандидатов запроса ранжирования
func DTOsToResponders(dtos []ResponderDTO) []models.Responder {
	responders := make([]models.Responder, len(dtos))
	for i, dto := range dtos {
		responders[i] = models.Responder{
			ID:             dto.ID,
			Location:       dtoToLocation(dto.Location),
			TrustScore:     dto.TrustScore,
			SaveCount:      dto.SaveCount,
			IsProfessional: dto.IsProfessional,
		}
	}
	return responders
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	responders := model.Responders
	if responders == nil {
		responders = []string{}
	}
	return &IncidentResponse{
		ID:          model.ID,
		ReporterID:  model.ReporterID,
		Type:        model.Type,
		Description: model.Description,
		Severity:    model.Severity.String(),
		Advice:      model.Advice,
		Confidence:  model.Confidence,
		Location:    LocationResponse{Lat: model.Location.Lat, Lng: model.Location.Lng},
		Vitals: VitalsResponse{
			Status:    model.Vitals.Status,
			HeartRate: model.Vitals.HeartRate,
			Notes:     model.Vitals.Notes,
		},
		Status:     string(model.Status),
		Responders: responders,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
		ResolvedAt: model.ResolvedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// MatchesToResponses преобразует результаты ранжирования
func MatchesToResponses(matches []models.MatchResult) []MatchResponse {
	responses := make([]MatchResponse, len(matches))
	for i, m := range matches {
		responses[i] = MatchResponse{
			ResponderID:    m.ResponderID,
			MatchScore:     m.MatchScore,
			DistanceMeters: m.DistanceMeters,
			ETAMinutes:     m.ETAMinutes,
			ETAWindow:      ETAWindowResponse{Min: m.ETAWindow.Min, Max: m.ETAWindow.Max},
		}
	}
	return responses
}
