package ingest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCreator запоминает входы; первые failures вызовов возвращают err
type recordingCreator struct {
	mu       sync.Mutex
	inputs   []service.CreateIncidentInput
	err      error
	failures int
}

func (r *recordingCreator) CreateIncident(_ context.Context, input service.CreateIncidentInput) (*models.Incident, []models.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	if r.err != nil && (r.failures < 0 || len(r.inputs) <= r.failures) {
		return nil, nil, r.err
	}
	return &models.Incident{ID: uuid.New()}, nil, nil
}

func (r *recordingCreator) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

// fakeReader отдает сообщения по очереди, затем блокируется до отмены ctx
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		m := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	offsets := make([]int64, 0, len(f.committed))
	for _, m := range f.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func newTestConsumer(creator IncidentCreator) *Consumer {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return &Consumer{
		creator:    creator,
		validator:  validator.New(),
		logger:     logger,
		retryDelay: time.Millisecond,
		maxDelay:   5 * time.Millisecond,
	}
}

// runConsumer запускает Run и возвращает функцию остановки, дожидающуюся выхода
func runConsumer(t *testing.T, c *Consumer) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop")
		}
	}
}

const validSignal = `{"type":"fire","location":{"lat":1,"lng":2}}`

func TestDecodeSignal(t *testing.T) {
	v := validator.New()
	payload := []byte(`{
		"reporter_id": "victim-1",
		"type": "accident",
		"description": "car crash on the highway",
		"location": {"lat": 55.75, "lng": 37.61},
		"telemetry": {"speed_kmh": 60, "force_n": 250, "impact_duration_ms": 150}
	}`)

	input, err := DecodeSignal(v, payload)
	require.NoError(t, err)
	require.NotNil(t, input.ReporterID)
	assert.Equal(t, "victim-1", *input.ReporterID)
	assert.Equal(t, "accident", input.Type)
	assert.Equal(t, models.Location{Lat: 55.75, Lng: 37.61}, input.Location)
	require.NotNil(t, input.Telemetry)
	assert.Equal(t, 250.0, input.Telemetry.ForceN)
}

func TestDecodeSignal_ZeroCoordinatesAreValid(t *testing.T) {
	input, err := DecodeSignal(validator.New(), []byte(`{"type":"fire","location":{"lat":0,"lng":0}}`))
	require.NoError(t, err)
	assert.Nil(t, input.ReporterID)
	assert.Nil(t, input.Telemetry)
}

func TestDecodeSignal_Invalid(t *testing.T) {
	v := validator.New()
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"missing type", `{"location":{"lat":1,"lng":1}}`},
		{"missing location", `{"type":"fire"}`},
		{"latitude out of range", `{"type":"fire","location":{"lat":91,"lng":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSignal(v, []byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestConsumer_Handle(t *testing.T) {
	creator := &recordingCreator{}
	c := newTestConsumer(creator)

	assert.NoError(t, c.handle(context.Background(), []byte(validSignal), 0, 1))
	assert.NoError(t, c.handle(context.Background(), []byte(`garbage`), 0, 2))

	require.Len(t, creator.inputs, 1)
	assert.Equal(t, "fire", creator.inputs[0].Type)
}

func TestConsumer_HandleCreationErrors(t *testing.T) {
	falseAlert := &recordingCreator{err: &triage.FalseAlertError{Reason: triage.ReasonAccidentalDrop}, failures: -1}
	assert.NoError(t, newTestConsumer(falseAlert).handle(context.Background(), []byte(validSignal), 0, 1))

	storageDown := &recordingCreator{err: errors.New("db down"), failures: -1}
	assert.Error(t, newTestConsumer(storageDown).handle(context.Background(), []byte(validSignal), 0, 1))
}

func TestConsumer_RunCommitsHandledSignals(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(validSignal)},
		{Offset: 2, Value: []byte(`garbage`)},
	}}
	creator := &recordingCreator{}
	c := newTestConsumer(creator)
	c.reader = reader

	stop := runConsumer(t, c)
	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Equal(t, 1, creator.calls())
	assert.True(t, reader.closed)
}

func TestConsumer_RunRetriesUntilPersisted(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Offset: 7, Value: []byte(validSignal)}}}
	creator := &recordingCreator{err: errors.New("db down"), failures: 2}
	c := newTestConsumer(creator)
	c.reader = reader

	stop := runConsumer(t, c)
	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, 3, creator.calls())
	assert.Equal(t, []int64{7}, reader.commits())
}

func TestConsumer_RunDoesNotCommitUnpersistedSignal(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Offset: 3, Value: []byte(validSignal)}}}
	creator := &recordingCreator{err: errors.New("db down"), failures: -1}
	c := newTestConsumer(creator)
	c.reader = reader

	stop := runConsumer(t, c)
	require.Eventually(t, func() bool { return creator.calls() >= 3 }, time.Second, time.Millisecond)
	stop()

	assert.Empty(t, reader.commits())
}
