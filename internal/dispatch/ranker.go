// Package dispatch оценивает время прибытия и ранжирует кандидатов на выезд.
package dispatch

import (
	"math"
	"sort"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// Ranker - узкий интерфейс ранжирования, точка замены на обученную модель
type Ranker interface {
	Rank(incident models.Location, candidates []models.Responder) []models.MatchResult
}

const (
	TrustWeight     = 0.4
	SavesWeight     = 0.2
	ProximityWeight = 0.4

	maxTrustScore = 5.0
	// minDistanceMeters защищает от деления на ноль, когда респондер на месте
	minDistanceMeters = 1.0
)

// RankWeights - веса факторов оценки
type RankWeights struct {
	Trust     float64
	Saves     float64
	Proximity float64
}

// DefaultWeights возвращает веса 0.4/0.2/0.4
func DefaultWeights() RankWeights {
	return RankWeights{Trust: TrustWeight, Saves: SavesWeight, Proximity: ProximityWeight}
}

// ScoreRanker - жадное ранжирование по рейтингу, числу спасений и близости
type ScoreRanker struct {
	weights RankWeights
	eta     *ETAEstimator
}

func NewScoreRanker(weights RankWeights, eta *ETAEstimator) *ScoreRanker {
	if eta == nil {
		eta = NewETAEstimator()
	}
	return &ScoreRanker{weights: weights, eta: eta}
}

// Rank возвращает кандидатов по убыванию оценки. При равенстве ближе - выше,
// затем по id для детерминизма.
func (r *ScoreRanker) Rank(incident models.Location, candidates []models.Responder) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		distance := DistanceMeters(incident, c.Location)
		eta := r.eta.EstimateArrival(distance, c.IsProfessional)
		results = append(results, models.MatchResult{
			ResponderID:    c.ID,
			MatchScore:     r.score(c, distance),
			DistanceMeters: distance,
			ETAMinutes:     eta,
			ETAWindow:      windowAround(eta),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		return a.ResponderID < b.ResponderID
	})
	return results
}

func (r *ScoreRanker) score(c models.Responder, distance float64) float64 {
	trust := math.Min(math.Max(c.TrustScore, 0), maxTrustScore) / maxTrustScore
	saves := math.Log(float64(max(c.SaveCount, 0)) + 1)
	proximity := 1 / math.Max(distance, minDistanceMeters)

	return r.weights.Trust*trust + r.weights.Saves*saves + r.weights.Proximity*proximity
}
