package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/mail"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Importer interface {
	Import(ctx context.Context, req pricelist.Request) (*catalog.ImportSummary, error)
}

// Runner executes tasks delivered by the consumers.
type Runner struct {
	Importer    Importer
	Mailer      mail.Mailer
	Status      *StatusStore
	Redis       redis.Cmdable
	ServiceName string
	Log         *zap.Logger
}

// Handle is a kafka.Handler. It returns an error only when the message
// should not be committed.
func (r *Runner) Handle(ctx context.Context, m kafka.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.TaskID == "" {
		r.Log.Error("dropping undecodable task", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	log := r.Log.With(zap.String("task_id", env.TaskID), zap.String("kind", string(env.Kind)))

	switch env.Kind {
	case KindImportPriceList:
		return r.runImport(ctx, env, log)
	case KindSendEmail:
		return r.runEmail(ctx, env, log)
	}
	log.Warn("unknown task kind", zap.String("header_kind", kafkax.Header(m, "kind")))
	return nil
}

func (r *Runner) mark(ctx context.Context, env Envelope, state State, cause error, result any, log *zap.Logger) {
	err := r.Status.Update(ctx, env.TaskID, func(st *Status) {
		st.Kind, st.State, st.Error = env.Kind, state, ""
		if cause != nil {
			st.Error = cause.Error()
		}
		if result != nil {
			st.Result, _ = json.Marshal(result)
		}
	})
	if err != nil {
		log.Warn("task status write failed", zap.String("state", string(state)), zap.Error(err))
	}
}

// runImport records failures instead of retrying them: a broken document or
// an ownership conflict will not fix itself on redelivery.
func (r *Runner) runImport(ctx context.Context, env Envelope, log *zap.Logger) error {
	req, err := kafkax.UnwrapPayload[ImportPriceList](env.Payload)
	if err != nil {
		r.mark(ctx, env, StateFailed, err, nil, log)
		return nil
	}
	r.mark(ctx, env, StateRunning, nil, nil, log)

	sum, err := r.Importer.Import(ctx, req)
	if err != nil {
		log.Warn("import task failed", zap.Int64("partner_id", req.PartnerID), zap.Error(err))
		r.mark(ctx, env, StateFailed, err, nil, log)
		return nil
	}
	r.mark(ctx, env, StateSucceeded, nil, sum, log)
	return nil
}

func (r *Runner) runEmail(ctx context.Context, env Envelope, log *zap.Logger) error {
	msg, err := kafkax.UnwrapPayload[SendEmail](env.Payload)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		log.Warn("dropping invalid email task", zap.Error(err))
		r.mark(ctx, env, StateFailed, err, nil, log)
		return nil
	}

	dedupKey := fmt.Sprintf(redisx.KeyDedup, r.ServiceName, env.TaskID)
	claimed, err := redisx.Claim(ctx, r.Redis, dedupKey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("claim %s: %w", dedupKey, err)
	}
	if !claimed {
		log.Info("email already sent, skipping")
		return nil
	}
	r.mark(ctx, env, StateRunning, nil, nil, log)

	if err := r.Mailer.Send(ctx, msg); err != nil {
		if derr := r.Redis.Del(ctx, dedupKey).Err(); derr != nil {
			log.Warn("dedup release failed", zap.Error(derr))
		}
		r.mark(ctx, env, StateFailed, err, nil, log)
		return fmt.Errorf("send email: %w", err)
	}
	r.mark(ctx, env, StateSucceeded, nil, nil, log)
	return nil
}
