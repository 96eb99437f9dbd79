package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/mail"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the write side of a Kafka topic (see kafka.Producer).
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type Queue struct {
	Publishers map[Kind]Publisher
	Status     *StatusStore
	Producer   string
	Log        *zap.Logger
	now        func() time.Time
}

func NewQueue(publishers map[Kind]Publisher, status *StatusStore, producer string, log *zap.Logger) *Queue {
	return &Queue{Publishers: publishers, Status: status, Producer: producer, Log: log, now: time.Now}
}

// Enqueue records the task as pending and publishes it. ownerID scopes who
// may read the status back; zero means nobody outside the workers.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, ownerID int64, payload any) (string, error) {
	pub, ok := q.Publishers[kind]
	if !ok {
		return "", fmt.Errorf("no publisher for task kind %q", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", kind, err)
	}
	env := Envelope{
		TaskID:     uuid.NewString(),
		Kind:       kind,
		Version:    envelopeVersion,
		EnqueuedAt: q.now().UTC(),
		Producer:   q.Producer,
		Payload:    raw,
	}
	st := Status{TaskID: env.TaskID, Kind: kind, State: StatePending, OwnerID: ownerID}
	if err := q.Status.Put(ctx, st); err != nil {
		return "", fmt.Errorf("record task %s: %w", env.TaskID, err)
	}

	value, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := pub.Publish(ctx, []byte(env.TaskID), value, kafka.Header{Key: "kind", Value: []byte(kind)}); err != nil {
		st.State, st.Error = StateFailed, err.Error()
		if perr := q.Status.Put(ctx, st); perr != nil {
			q.Log.Warn("task status write failed", zap.String("task_id", env.TaskID), zap.Error(perr))
		}
		return "", fmt.Errorf("publish task %s: %w", env.TaskID, err)
	}
	q.Log.Debug("task enqueued", zap.String("task_id", env.TaskID), zap.String("kind", string(kind)))
	return env.TaskID, nil
}

// EnqueueImport validates the request and queues it for the import worker.
func (q *Queue) EnqueueImport(ctx context.Context, req pricelist.Request) (string, error) {
	if err := pricelist.ValidateRequest(req); err != nil {
		return "", err
	}
	return q.Enqueue(ctx, KindImportPriceList, req.PartnerID, ImportPriceList(req))
}

func (q *Queue) EnqueueEmail(ctx context.Context, m mail.Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	return q.Enqueue(ctx, KindSendEmail, 0, SendEmail(m))
}
