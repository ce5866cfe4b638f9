package models

// Responder - снимок кандидата из внешнего справочника пользователей
type Responder struct {
	ID             string   `json:"id"`
	Location       Location `json:"location"`
	TrustScore     float64  `json:"trust_score"`
	SaveCount      int      `json:"save_count"`
	IsProfessional bool     `json:"is_professional"`
}

// ETAWindow - ожидаемый интервал прибытия в минутах
type ETAWindow struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// MatchResult - результат ранжирования одного кандидата
type MatchResult struct {
	ResponderID    string    `json:"responder_id"`
	MatchScore     float64   `json:"match_score"`
	DistanceMeters float64   `json:"distance_meters"`
	ETAMinutes     int       `json:"eta_minutes"`
	ETAWindow      ETAWindow `json:"eta_window"`
}
