// Package tasks moves background work through Kafka and tracks it in Redis.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/mail"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
)

type Kind string

const (
	KindImportPriceList Kind = "import_price_list"
	KindSendEmail       Kind = "send_email"
)

const (
	TopicImport = "retail.tasks.import"
	TopicEmail  = "retail.tasks.email"
)

// Topic returns the topic carrying tasks of kind k.
func (k Kind) Topic() string {
	switch k {
	case KindImportPriceList:
		return TopicImport
	case KindSendEmail:
		return TopicEmail
	}
	return ""
}

const envelopeVersion = 1

type Envelope struct {
	TaskID     string          `json:"task_id"`
	Kind       Kind            `json:"kind"`
	Version    int             `json:"version"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

// ---- typed payloads ----

type ImportPriceList = pricelist.Request

type SendEmail = mail.Message
