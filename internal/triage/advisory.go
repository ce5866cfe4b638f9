package triage

import (
	"math/rand/v2"
	"strings"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// KnowledgeEntry - ключевое слово и связанная с ним помощь
type KnowledgeEntry struct {
	Keyword  string
	Advice   string
	Priority models.SeverityTier
}

// KnowledgeBase - упорядоченная таблица, порядок записей задает приоритет при совпадениях
type KnowledgeBase struct {
	Entries         []KnowledgeEntry
	DefaultAdvice   string
	DefaultPriority models.SeverityTier
}

const (
	defaultConfidence = 0.85
	matchConfidence   = 0.95
	matchJitter       = 0.04
)

// DefaultKnowledgeBase возвращает встроенную таблицу первой помощи
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		Entries: []KnowledgeEntry{
			{
				Keyword:  "accident",
				Advice:   "Do not move the victim unless there is immediate danger. Turn off the engine, switch on hazard lights and keep the head and neck still.",
				Priority: models.SeveritySevere,
			},
			{
				Keyword:  "heart",
				Advice:   "Call emergency services. Keep the person seated and calm, loosen tight clothing. If unresponsive and not breathing, start CPR: 30 chest compressions, 2 rescue breaths.",
				Priority: models.SeverityCritical,
			},
			{
				Keyword:  "choking",
				Advice:   "Encourage coughing. If the person cannot breathe, give 5 back blows between the shoulder blades followed by 5 abdominal thrusts.",
				Priority: models.SeverityCritical,
			},
			{
				Keyword:  "burn",
				Advice:   "Cool the burn under cool running water for at least 20 minutes. Remove jewellery near the area, cover loosely with cling film. Do not apply ice or creams.",
				Priority: models.SeveritySevere,
			},
			{
				Keyword:  "fracture",
				Advice:   "Immobilise the injured limb in the position found, support it with padding and apply a cold pack wrapped in cloth. Do not try to realign the bone.",
				Priority: models.SeverityModerate,
			},
		},
		DefaultAdvice:   "Stay calm and move to a safe place if you can. Keep your phone on, help is on the way.",
		DefaultPriority: models.SeverityModerate,
	}
}

// AdvisoryEngine подбирает совет по первому совпавшему ключевому слову
type AdvisoryEngine struct {
	kb     KnowledgeBase
	jitter func() float64
}

// AdvisoryOption настраивает AdvisoryEngine
type AdvisoryOption func(*AdvisoryEngine)

// WithJitter подменяет источник случайной добавки к уверенности, значения в [0,1)
func WithJitter(fn func() float64) AdvisoryOption {
	return func(e *AdvisoryEngine) {
		e.jitter = fn
	}
}

func NewAdvisoryEngine(kb KnowledgeBase, opts ...AdvisoryOption) *AdvisoryEngine {
	entries := make([]KnowledgeEntry, len(kb.Entries))
	copy(entries, kb.Entries)
	kb.Entries = entries

	e := &AdvisoryEngine{kb: kb, jitter: rand.Float64}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Triage ищет первое ключевое слово, входящее в описание или тип инцидента
func (e *AdvisoryEngine) Triage(description, incidentType string) models.TriageResult {
	desc := strings.ToLower(description)
	typ := strings.ToLower(incidentType)

	for _, entry := range e.kb.Entries {
		keyword := strings.ToLower(entry.Keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(desc, keyword) || strings.Contains(typ, keyword) {
			return models.TriageResult{
				Advice:     entry.Advice,
				Priority:   entry.Priority,
				Confidence: matchConfidence + e.jitterValue()*matchJitter,
			}
		}
	}

	return models.TriageResult{
		Advice:     e.kb.DefaultAdvice,
		Priority:   e.kb.DefaultPriority,
		Confidence: defaultConfidence,
	}
}

func (e *AdvisoryEngine) jitterValue() float64 {
	v := e.jitter()
	if v < 0 || v >= 1 {
		return 0
	}
	return v
}
