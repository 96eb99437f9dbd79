package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

type Status struct {
	TaskID    string          `json:"task_id"`
	Kind      Kind            `json:"kind"`
	State     State           `json:"state"`
	OwnerID   int64           `json:"-"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// stored keeps the owner in Redis while hiding it from API responses.
type stored struct {
	Status
	OwnerID int64 `json:"owner_id,omitempty"`
}

type StatusStore struct {
	RDB redis.Cmdable
	TTL time.Duration
	now func() time.Time
}

func NewStatusStore(rdb redis.Cmdable, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = redisx.TTLTaskStatus
	}
	return &StatusStore{RDB: rdb, TTL: ttl, now: time.Now}
}

func (s *StatusStore) Put(ctx context.Context, st Status) error {
	st.UpdatedAt = s.now().UTC()
	b, err := json.Marshal(stored{Status: st, OwnerID: st.OwnerID})
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, fmt.Sprintf(redisx.KeyTaskStatus, st.TaskID), b, s.TTL).Err()
}

func (s *StatusStore) Get(ctx context.Context, taskID string) (*Status, error) {
	b, err := s.RDB.Get(ctx, fmt.Sprintf(redisx.KeyTaskStatus, taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("task %s not found", taskID)
	}
	if err != nil {
		return nil, err
	}
	var v stored
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	v.Status.OwnerID = v.OwnerID
	return &v.Status, nil
}

// Update loads the record, applies fn and writes it back. A missing record
// is recreated from taskID.
func (s *StatusStore) Update(ctx context.Context, taskID string, fn func(*Status)) error {
	st, err := s.Get(ctx, taskID)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		st, err = &Status{TaskID: taskID}, nil
	}
	if err != nil {
		return err
	}
	fn(st)
	return s.Put(ctx, *st)
}
