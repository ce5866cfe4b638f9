// Package ingest принимает сигналы SOS из очереди Kafka.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/sirupsen/logrus"
)

// Signal - сообщение SOS в топике
type Signal struct {
	ReporterID  string            `json:"reporter_id"`
	Type        string            `json:"type" validate:"required,max=64"`
	Description string            `json:"description" validate:"max=2000"`
	Location    SignalLocation    `json:"location"`
	Vitals      *models.Vitals    `json:"vitals,omitempty"`
	Telemetry   *models.Telemetry `json:"telemetry,omitempty"`
}

// SignalLocation - координаты сигнала
type SignalLocation struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// IncidentCreator - часть сервиса инцидентов, нужная потребителю
type IncidentCreator interface {
	CreateIncident(ctx context.Context, input service.CreateIncidentInput) (*models.Incident, []models.MatchResult, error)
}

// ConsumerConfig - параметры подключения к Kafka
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

const (
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
)

// messageReader - часть *kafka.Reader с ручным подтверждением смещений
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает сигналы и создает по ним инциденты.
// Смещение подтверждается только после того, как сигнал обработан окончательно.
type Consumer struct {
	reader     messageReader
	cfg        ConsumerConfig
	creator    IncidentCreator
	validator  *validator.Validate
	logger     *logrus.Logger
	retryDelay time.Duration
	maxDelay   time.Duration
}

func NewConsumer(cfg ConsumerConfig, creator IncidentCreator, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:     reader,
		cfg:        cfg,
		creator:    creator,
		validator:  validator.New(),
		logger:     logger,
		retryDelay: defaultRetryDelay,
		maxDelay:   defaultMaxDelay,
	}
}

// Run читает топик до отмены ctx
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	c.logger.WithFields(logrus.Fields{
		"brokers":  c.cfg.Brokers,
		"topic":    c.cfg.Topic,
		"group_id": c.cfg.GroupID,
	}).Info("Kafka SOS ingest started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Kafka SOS ingest stopped")
				return
			}
			c.logger.WithError(err).Warn("Kafka fetch error")
			continue
		}

		if !c.deliver(ctx, m) {
			c.logger.WithFields(logrus.Fields{
				"partition": m.Partition,
				"offset":    m.Offset,
			}).Info("Kafka SOS ingest stopped, signal left uncommitted")
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.WithError(err).WithField("offset", m.Offset).Error("Failed to commit Kafka offset")
		}
	}
}

// deliver повторяет обработку с растущей задержкой, пока сигнал не будет
// создан или отброшен. false - контекст отменен, смещение подтверждать нельзя.
func (c *Consumer) deliver(ctx context.Context, m kafka.Message) bool {
	delay := c.retryDelay
	for {
		err := c.handle(ctx, m.Value, m.Partition, m.Offset)
		if err == nil {
			return true
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"partition": m.Partition,
			"offset":    m.Offset,
			"retry_in":  delay,
		}).Warn("SOS signal not persisted, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay = min(delay*2, c.maxDelay)
	}
}

// handle возвращает ошибку, только если сигнал нужно обработать повторно.
// Некорректные сообщения и ложные тревоги считаются обработанными.
func (c *Consumer) handle(ctx context.Context, payload []byte, partition int, offset int64) error {
	log := c.logger.WithFields(logrus.Fields{
		"component": "ingest",
		"partition": partition,
		"offset":    offset,
	})

	input, err := DecodeSignal(c.validator, payload)
	if err != nil {
		log.WithError(err).Warn("Skipping malformed SOS signal")
		return nil
	}

	incident, _, err := c.creator.CreateIncident(ctx, input)
	if err != nil {
		var falseAlert *triage.FalseAlertError
		if errors.As(err, &falseAlert) {
			log.WithField("reason", falseAlert.Reason).Info("SOS signal discarded as false alert")
			return nil
		}
		log.WithError(err).Error("Failed to create incident from SOS signal")
		return err
	}
	log.WithField("incident_id", incident.ID).Info("Incident created from SOS signal")
	return nil
}

// DecodeSignal разбирает и проверяет сообщение SOS
func DecodeSignal(v *validator.Validate, payload []byte) (service.CreateIncidentInput, error) {
	var sig Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return service.CreateIncidentInput{}, fmt.Errorf("invalid signal json: %w", err)
	}
	if err := v.Struct(sig); err != nil {
		return service.CreateIncidentInput{}, fmt.Errorf("invalid signal: %w", err)
	}

	input := service.CreateIncidentInput{
		Type:        strings.TrimSpace(sig.Type),
		Description: sig.Description,
		Location:    models.Location{Lat: *sig.Location.Lat, Lng: *sig.Location.Lng},
		Telemetry:   sig.Telemetry,
	}
	if id := strings.TrimSpace(sig.ReporterID); id != "" {
		input.ReporterID = &id
	}
	if sig.Vitals != nil {
		input.Vitals = *sig.Vitals
	}
	return input, nil
}
