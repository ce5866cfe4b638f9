package dispatch

import (
	"math"

	"github.com/shenikar/sos_dispatch/internal/models"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters - плоская (equirectangular) оценка расстояния между точками.
// Для радиусов городского масштаба погрешность несущественна.
func DistanceMeters(a, b models.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	x := dLng * math.Cos((lat1+lat2)/2)
	return earthRadiusMeters * math.Sqrt(x*x+dLat*dLat)
}
