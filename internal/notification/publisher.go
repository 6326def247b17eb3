package notification

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
)

const DefaultSubjectPrefix = "event-requests"

// Publisher emits every transition on "<prefix>.<action>" for downstream
// consumers such as a calendar sync.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Subject(action string) string {
	return p.prefix + "." + action
}

func (p *Publisher) Dispatch(_ context.Context, ev domain.TransitionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	subject := p.Subject(ev.Action)
	logger.ExternalServiceCall("nats", "publish", "subject", subject, "requestID", ev.RequestID)
	err = p.nc.Publish(subject, data)
	logger.ExternalServiceResult("nats", "publish", err, "subject", subject)
	return err
}
