package dispatch

import (
	"math"

	"github.com/shenikar/sos_dispatch/internal/models"
)

const (
	baseSpeedKmh           = 30.0
	professionalMultiplier = 1.5
	dispatchOverheadMin    = 2
)

// ETAEstimator переводит расстояние в ожидаемое время прибытия
type ETAEstimator struct{}

func NewETAEstimator() *ETAEstimator {
	return &ETAEstimator{}
}

// EstimateArrival возвращает минуты до прибытия, округленные вверх,
// с учетом фиксированной задержки на выезд
func (e *ETAEstimator) EstimateArrival(distanceMeters float64, isProfessional bool) int {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	speedKmh := baseSpeedKmh
	if isProfessional {
		speedKmh *= professionalMultiplier
	}
	metersPerSecond := speedKmh * 1000 / 3600
	minutes := distanceMeters / metersPerSecond / 60
	return int(math.Ceil(minutes)) + dispatchOverheadMin
}

// EstimateWindow - асимметричный интервал: опоздание вероятнее раннего прибытия
func (e *ETAEstimator) EstimateWindow(distanceMeters float64) models.ETAWindow {
	return windowAround(e.EstimateArrival(distanceMeters, false))
}

func windowAround(estimate int) models.ETAWindow {
	return models.ETAWindow{
		Min: max(1, estimate-1),
		Max: estimate + 3,
	}
}
