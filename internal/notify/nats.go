package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// NATSNotifier publishes build events as JSON to a NATS subject. Transient
// publish failures are retried with backoff.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	policy  retry.Policy
}

// NewNATSNotifier connects to url and publishes to subject.
func NewNATSNotifier(url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, builderrors.NotifyFailed(subject, err)
	}
	logger.Info("notifier connected", slog.String("url", url), logfields.Subject(subject))
	return &NATSNotifier{conn: conn, subject: subject, logger: logger, policy: retry.DefaultPolicy()}, nil
}

func (n *NATSNotifier) Publish(ctx context.Context, ev BuildEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return builderrors.NotifyFailed(n.subject, err)
	}
	err = n.policy.Do(ctx, func() error {
		return n.conn.Publish(n.subject, payload)
	})
	if err != nil {
		return builderrors.NotifyFailed(n.subject, err)
	}
	n.logger.Debug("build event published",
		logfields.Subject(n.subject),
		logfields.BuildID(ev.BuildID),
		logfields.Outcome(ev.Outcome))
	return nil
}

func (n *NATSNotifier) Close() error {
	n.conn.Close()
	return nil
}

var _ Notifier = (*NATSNotifier)(nil)
var _ Notifier = Noop{}
