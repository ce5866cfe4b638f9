// Package broadcast рассылает предложения миссий подключенным по websocket
// респондерам и принимает от них заявки на выезд.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/sirupsen/logrus"
)

// Типы сообщений websocket
const (
	EventIncidentOffered       = "incident.offered"
	EventIncidentClaim         = "incident.claim"
	EventIncidentClaimed       = "incident.claimed"
	EventIncidentClaimRejected = "incident.claim_rejected"
)

const (
	sendBufferSize = 256
	claimTimeout   = 5 * time.Second
	relayTimeout   = 2 * time.Second
)

// Event - исходящее сообщение клиенту
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage - входящее сообщение от клиента
type ClientMessage struct {
	Type       string `json:"type"`
	IncidentID string `json:"incidentId"`
}

// Offer - полезная нагрузка incident.offered
type Offer struct {
	ID       uuid.UUID             `json:"id"`
	Type     string                `json:"type"`
	Severity models.SeverityTier   `json:"severity"`
	Location models.Location       `json:"location"`
	Status   models.IncidentStatus `json:"status"`
}

// ClaimRejected - полезная нагрузка incident.claim_rejected
type ClaimRejected struct {
	IncidentID string `json:"incidentId"`
	Reason     string `json:"reason"`
}

// ClaimAccepted - полезная нагрузка incident.claimed
type ClaimAccepted struct {
	Incident *models.Incident `json:"incident"`
}

// Claimer принимает заявку респондера на миссию
type Claimer interface {
	AcceptMission(ctx context.Context, id uuid.UUID, responderID string) (*models.Incident, error)
}

// Relay пересылает предложения другим узлам API
type Relay interface {
	Publish(ctx context.Context, msg RelayMessage) error
}

// RelayMessage - предложение, переданное между узлами
type RelayMessage struct {
	Node       string `json:"node"`
	ReporterID string `json:"reporter_id,omitempty"`
	Offer      Offer  `json:"offer"`
}

// Client - одна websocket-сессия аутентифицированного пользователя
type Client struct {
	ID     string
	UserID string
	Send   chan []byte
}

// NewClient создает сессию с буфером исходящих сообщений
func NewClient(userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Hub хранит активные сессии. Все операции потокобезопасны.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	claimMu sync.RWMutex
	claimer Claimer

	relay  Relay
	nodeID string
	logger *logrus.Logger
}

// HubOption настраивает Hub
type HubOption func(*Hub)

// WithRelay включает пересылку предложений на другие узлы
func WithRelay(relay Relay) HubOption {
	return func(h *Hub) { h.relay = relay }
}

// WithNodeID задает идентификатор узла для релея
func WithNodeID(nodeID string) HubOption {
	return func(h *Hub) { h.nodeID = nodeID }
}

func NewHub(logger *logrus.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	h := &Hub{
		clients: make(map[*Client]struct{}),
		nodeID:  uuid.New().String(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NodeID возвращает идентификатор узла
func (h *Hub) NodeID() string {
	return h.nodeID
}

// SetClaimer подключает обработчик заявок. Сервис создается после хаба.
func (h *Hub) SetClaimer(claimer Claimer) {
	h.claimMu.Lock()
	defer h.claimMu.Unlock()
	h.claimer = claimer
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister удаляет сессию и закрывает ее канал Send
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// ClientCount возвращает число подключенных сессий
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastOffer рассылает предложение всем сессиям, кроме сессий заявителя,
// и передает его на другие узлы
func (h *Hub) BroadcastOffer(ctx context.Context, incident *models.Incident) {
	msg := RelayMessage{
		Node:  h.nodeID,
		Offer: NewOffer(incident),
	}
	if incident.ReporterID != nil {
		msg.ReporterID = *incident.ReporterID
	}

	delivered := h.deliverOffer(msg)
	h.logger.WithFields(logrus.Fields{
		"component":   "broadcast",
		"incident_id": incident.ID,
		"delivered":   delivered,
	}).Info("Mission offer broadcast")

	if h.relay == nil {
		return
	}
	go h.publishRelay(context.WithoutCancel(ctx), msg)
}

// publishRelay отправляет предложение на другие узлы вне запроса, создавшего инцидент
func (h *Hub) publishRelay(parent context.Context, msg RelayMessage) {
	ctx, cancel := context.WithTimeout(parent, relayTimeout)
	defer cancel()

	if err := h.relay.Publish(ctx, msg); err != nil {
		h.logger.WithError(err).WithField("incident_id", msg.Offer.ID).Warn("Failed to relay mission offer")
	}
}

// ReceiveRelayed доставляет предложение, пришедшее с другого узла
func (h *Hub) ReceiveRelayed(msg RelayMessage) {
	if msg.Node == h.nodeID {
		return
	}
	h.deliverOffer(msg)
}

func (h *Hub) deliverOffer(msg RelayMessage) int {
	data, err := encodeEvent(EventIncidentOffered, msg.Offer)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal offer")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		if msg.ReporterID != "" && client.UserID == msg.ReporterID {
			continue
		}
		select {
		case client.Send <- data:
			delivered++
		default:
			// буфер полон, сообщение теряется
		}
	}
	return delivered
}

// HandleMessage обрабатывает входящее сообщение сессии
func (h *Hub) HandleMessage(client *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != EventIncidentClaim {
		return
	}
	h.handleClaim(client, msg.IncidentID)
}

func (h *Hub) handleClaim(client *Client, rawID string) {
	log := h.logger.WithFields(logrus.Fields{
		"component":    "broadcast",
		"incident_id":  rawID,
		"responder_id": client.UserID,
	})

	id, err := uuid.Parse(rawID)
	if err != nil {
		h.reject(client, rawID, "invalid incident id")
		return
	}

	h.claimMu.RLock()
	claimer := h.claimer
	h.claimMu.RUnlock()
	if claimer == nil {
		h.reject(client, rawID, "claims are not accepted")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), claimTimeout)
	defer cancel()

	incident, err := claimer.AcceptMission(ctx, id, client.UserID)
	if err != nil {
		log.WithError(err).Warn("Claim rejected")
		h.reject(client, rawID, rejectReason(err))
		return
	}

	data, err := encodeEvent(EventIncidentClaimed, ClaimAccepted{Incident: incident})
	if err != nil {
		log.WithError(err).Error("Failed to marshal claim reply")
		return
	}
	h.sendTo(client, data)
	log.Info("Claim accepted")
}

func (h *Hub) reject(client *Client, incidentID, reason string) {
	data, err := encodeEvent(EventIncidentClaimRejected, ClaimRejected{IncidentID: incidentID, Reason: reason})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal claim rejection")
		return
	}
	h.sendTo(client, data)
}

func (h *Hub) sendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, service.ErrIncidentNotActive):
		return service.ErrIncidentNotActive.Error()
	case errors.Is(err, service.ErrIncidentNotFound):
		return service.ErrIncidentNotFound.Error()
	default:
		return "claim failed"
	}
}

// NewOffer строит предложение из инцидента
func NewOffer(incident *models.Incident) Offer {
	return Offer{
		ID:       incident.ID,
		Type:     incident.Type,
		Severity: incident.Severity,
		Location: incident.Location,
		Status:   incident.Status,
	}
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
