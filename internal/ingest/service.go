// Package ingest turns device HTTP payloads into history, status and alerts.
// It is transport-agnostic: the gin router and the lambda entry point both
// wrap Service.Handle.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"smart-bin-backend/internal/fullness"
	"smart-bin-backend/internal/metrics"
	"smart-bin-backend/internal/model"
	"smart-bin-backend/internal/notification"
	"smart-bin-backend/internal/store"
)

const (
	MsgSuccess          = "Success: Data logged"
	MsgNoJSON           = "No JSON received"
	MsgMissingDeviceID  = "Missing device_id"
	MsgMethodNotAllowed = "Method not allowed"

	// NoCommand is returned to a polling device when nothing is pending.
	NoCommand = "NONE"
)

var (
	errNoJSON          = errors.New(MsgNoJSON)
	errMissingDeviceID = errors.New(MsgMissingDeviceID)
)

// Request is the transport-neutral view of an incoming HTTP request.
type Request struct {
	Method string
	Body   []byte
}

// Response is written back verbatim by the host.
type Response struct {
	StatusCode int
	Body       string
	Header     map[string]string
}

// Payload is the JSON document a device posts. Every field is optional on the wire.
type Payload struct {
	DeviceID       string   `json:"device_id"`
	CommandCheck   any      `json:"command_check"`
	FillPercentage *float64 `json:"fill_percentage"`
	TrashLevelCM   *float64 `json:"trash_level_cm"`
	TempC          *float64 `json:"temp_c"`
	HumidityPct    *float64 `json:"humidity_pct"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
}

// IsCommandCheck is true only for a literal JSON true.
func (p Payload) IsCommandCheck() bool {
	b, ok := p.CommandCheck.(bool)
	return ok && b
}

// Sink receives every reading after it has been appended to history.
type Sink interface {
	PublishReading(ctx context.Context, reading model.Reading) error
}

// Service holds dependencies for the ingest logic.
type Service struct {
	store           store.Store
	notifier        notification.Notifier
	sinks           []Sink
	logger          *slog.Logger
	now             func() time.Time
	newID           func() (string, error)
	defaultDeviceID string
	maxAttempts     int
	locks           *keyedMutex
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultDeviceID accepts payloads without a device_id under the given id.
func WithDefaultDeviceID(id string) Option {
	return func(s *Service) { s.defaultDeviceID = id }
}

// WithMaxStatusAttempts bounds the read-compare-write retries on version conflicts.
func WithMaxStatusAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(st store.Store, notifier notification.Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	s := &Service{
		store:       st,
		notifier:    notifier,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       newReadingID,
		maxAttempts: 3,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newReadingID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CORSHeaders are returned on preflight requests.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Max-Age":       "3600",
	}
}

// Handle processes one request. It never returns an error: every failure,
// including a panic, is turned into a response.
func (s *Service) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic recovered in ingest handler", "panic", r)
			resp = text(http.StatusInternalServerError, fmt.Sprintf("Error: %v", r))
		}
	}()

	switch req.Method {
	case http.MethodOptions:
		return Response{StatusCode: http.StatusNoContent, Header: CORSHeaders()}
	case http.MethodPost:
		return s.handlePost(ctx, req.Body)
	default:
		return text(http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	}
}

func (s *Service) handlePost(ctx context.Context, body []byte) Response {
	payload, err := s.decode(body)
	switch {
	case errors.Is(err, errNoJSON), errors.Is(err, errMissingDeviceID):
		return text(http.StatusBadRequest, err.Error())
	case err != nil:
		return text(http.StatusInternalServerError, "Error: "+err.Error())
	}

	if payload.IsCommandCheck() {
		action, err := s.CheckCommand(ctx, payload.DeviceID)
		if err != nil {
			s.logger.ErrorContext(ctx, "command check failed", "device_id", payload.DeviceID, "error", err)
			return text(http.StatusInternalServerError, "Error: "+err.Error())
		}
		return text(http.StatusOK, action)
	}

	if err := s.Record(ctx, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to record reading", "device_id", payload.DeviceID, "error", err)
		return text(http.StatusInternalServerError, "Error: "+err.Error())
	}
	return text(http.StatusOK, MsgSuccess)
}

// decode rejects bodies that are empty, not JSON, or not a non-empty object.
func (s *Service) decode(body []byte) (Payload, error) {
	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &fields) != nil || len(fields) == 0 {
		return Payload{}, errNoJSON
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("invalid payload: %w", err)
	}

	if p.DeviceID == "" {
		if s.defaultDeviceID == "" {
			return Payload{}, errMissingDeviceID
		}
		p.DeviceID = s.defaultDeviceID
	}
	return p, nil
}

// CheckCommand consumes the pending command of a device. It returns NoCommand
// when none is pending or the stored action is empty.
func (s *Service) CheckCommand(ctx context.Context, deviceID string) (string, error) {
	cmd, err := s.store.TakeCommand(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.CommandChecks.WithLabelValues("none").Inc()
		return NoCommand, nil
	}
	if err != nil {
		return "", err
	}

	if cmd.Action == "" {
		metrics.CommandChecks.WithLabelValues("none").Inc()
		return NoCommand, nil
	}
	metrics.CommandChecks.WithLabelValues("delivered").Inc()
	s.logger.InfoContext(ctx, "command delivered", "device_id", deviceID, "action", cmd.Action)
	return cmd.Action, nil
}

// Record appends a reading, updates the status under a version check and
// alerts when the bin has just become full.
func (s *Service) Record(ctx context.Context, p Payload) error {
	unlock := s.locks.Lock(p.DeviceID)
	defer unlock()

	now := s.now().UTC()
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("failed to generate reading id: %w", err)
	}

	reading := model.Reading{
		ID:             id,
		DeviceID:       p.DeviceID,
		FillPercentage: valueOr(p.FillPercentage, 0),
		TrashLevelCM:   p.TrashLevelCM,
		TempC:          p.TempC,
		HumidityPct:    p.HumidityPct,
		Lat:            valueOr(p.Lat, 0),
		Lon:            valueOr(p.Lon, 0),
		Timestamp:      now,
	}

	previous, err := s.previousStatus(ctx, p.DeviceID)
	if err != nil {
		return err
	}

	if err := s.store.AppendReadings(ctx, reading); err != nil {
		return err
	}
	metrics.ObserveReading(reading.DeviceID, reading.FillPercentage)
	s.publish(ctx, reading)

	for attempt := 1; ; attempt++ {
		transition := fullness.Evaluate(previous.IsFull, reading.FillPercentage)
		status := model.Status{
			DeviceID:       reading.DeviceID,
			FillPercentage: reading.FillPercentage,
			IsFull:         transition.Current,
			TempC:          reading.TempC,
			HumidityPct:    reading.HumidityPct,
			Lat:            reading.Lat,
			Lon:            reading.Lon,
			LastUpdated:    now,
		}

		err := s.store.SaveStatus(ctx, status, previous.Version)
		if err == nil {
			if transition.ShouldAlert() {
				s.alert(ctx, reading)
			}
			return nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}

		metrics.StatusConflicts.Inc()
		if attempt >= s.maxAttempts {
			return fmt.Errorf("status for %s not saved after %d attempts: %w", p.DeviceID, attempt, err)
		}
		s.logger.DebugContext(ctx, "status version conflict, retrying", "device_id", p.DeviceID, "attempt", attempt)

		if previous, err = s.previousStatus(ctx, p.DeviceID); err != nil {
			return err
		}
	}
}

// previousStatus returns the stored status or a zero status (not full, version 0).
func (s *Service) previousStatus(ctx context.Context, deviceID string) (model.Status, error) {
	status, err := s.store.GetStatus(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Status{DeviceID: deviceID}, nil
	}
	return status, err
}

func (s *Service) publish(ctx context.Context, reading model.Reading) {
	for _, sink := range s.sinks {
		if err := sink.PublishReading(ctx, reading); err != nil {
			s.logger.WarnContext(ctx, "reading sink failed", "device_id", reading.DeviceID, "error", err)
		}
	}
}

func (s *Service) alert(ctx context.Context, reading model.Reading) {
	err := s.notifier.Notify(ctx, notification.Alert{
		DeviceID:       reading.DeviceID,
		FillPercentage: reading.FillPercentage,
		Lat:            reading.Lat,
		Lon:            reading.Lon,
	})
	if err != nil {
		metrics.Alerts.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "full-bin alert failed", "device_id", reading.DeviceID, "error", err)
		return
	}
	metrics.Alerts.WithLabelValues("sent").Inc()
	s.logger.InfoContext(ctx, "full-bin alert sent", "device_id", reading.DeviceID, "fill_percentage", reading.FillPercentage)
}

func text(code int, body string) Response {
	return Response{
		StatusCode: code,
		Body:       body,
		Header: map[string]string{
			"Content-Type":                "text/plain; charset=utf-8",
			"Access-Control-Allow-Origin": "*",
		},
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
