// Package ingest turns queue deliveries into rows of the users table and
// settles each delivery with the broker.
//
// A delivery that is not JSON, or that cannot be stored, is negatively
// acknowledged and requeued. A delivery that is JSON but misses a required
// key, or carries null or a nested value for one, can never succeed, so it is
// acknowledged and dropped. Empty strings and scalar values are stored.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"user-ingest/internal/apperrors"
	"user-ingest/internal/metrics"
	"user-ingest/internal/model"
)

const defaultPersistTimeout = 5 * time.Second

// Outcome is the result of handling one delivery. It doubles as the label of
// the messages-handled metric.
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeUndecodable Outcome = "undecodable"
	OutcomeFailed      Outcome = "failed"
)

// Ack reports whether the outcome settles the delivery with an ack. Every
// other outcome requests redelivery.
func (o Outcome) Ack() bool {
	return o == OutcomeProcessed || o == OutcomeInvalid
}

// RecordStore persists validated events.
type RecordStore interface {
	InsertRecord(ctx context.Context, r *model.Record) error
}

// Handler decodes, validates and persists deliveries. It is safe for use by
// several workers at once.
type Handler struct {
	log      *zap.Logger
	store    RecordStore
	validate *validator.Validate
	timeout  time.Duration
	newID    func() uuid.UUID
}

// NewHandler returns a Handler writing to store. Each insert gets
// persistTimeout; zero or less falls back to five seconds.
func NewHandler(log *zap.Logger, store RecordStore, persistTimeout time.Duration) *Handler {
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		log:      log,
		store:    store,
		validate: v,
		timeout:  persistTimeout,
		newID:    uuid.New,
	}
}

// Handle processes one delivery and settles it. It never returns an error:
// every failure is translated into an ack or a nack.
func (h *Handler) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	log := h.log.With(
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.String("message_id", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
	)
	log.Info("Message received", zap.Int("size", len(d.Body)))
	log.Debug("Message payload", zap.ByteString("body", d.Body))

	outcome, err := h.Process(ctx, d.Body)
	switch outcome {
	case OutcomeProcessed:
		log.Info("Message processed")
	case OutcomeInvalid:
		log.Warn("Dropping invalid message", zap.Error(err))
	case OutcomeUndecodable:
		log.Error("Failed to decode message", zap.Error(err))
	default:
		log.Error("Failed to process message", zap.Error(err))
	}

	h.settle(log, d, outcome)
	metrics.MessagesHandled.WithLabelValues(string(outcome)).Inc()

	return outcome
}

// Process runs decode, validate and persist on a raw payload and reports the
// outcome together with the error that caused it, if any.
func (h *Handler) Process(ctx context.Context, body []byte) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("panic while handling message: %v", r)
		}
	}()

	evt, err := h.decode(body)
	if err != nil {
		if errors.Is(err, apperrors.ErrDecode) {
			return OutcomeUndecodable, err
		}
		return OutcomeInvalid, err
	}

	if err := h.check(evt); err != nil {
		return OutcomeInvalid, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	rec := evt.Record(h.newID())
	if err := h.store.InsertRecord(ctx, rec); err != nil {
		return OutcomeFailed, fmt.Errorf("save record %s: %w", rec.ID, err)
	}

	return OutcomeProcessed, nil
}

func (h *Handler) decode(body []byte) (*model.Event, error) {
	var evt model.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrDecode, err)
		}
		// well-formed JSON of the wrong shape, e.g. an array or a nested name
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	return &evt, nil
}

func (h *Handler) check(evt *model.Event) error {
	err := h.validate.Struct(evt)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return fmt.Errorf("%w: missing or null required key: %s", apperrors.ErrValidation, strings.Join(missing, ", "))
}

func (h *Handler) settle(log *zap.Logger, d amqp.Delivery, outcome Outcome) {
	if outcome.Ack() {
		if err := d.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
		return
	}

	if err := d.Nack(false, true); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
}
