package notify

import (
	"context"
	"io"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/sgc/internal/domain"
)

// EmailSender delivers one HTML message.
type EmailSender interface {
	SendHTML(ctx context.Context, to, subject, body string) error
}

// Directory resolves the unit hierarchy used to pick recipients.
type Directory interface {
	UnitSnapshot(context.Context) (*domain.UnitTree, error)
}

// Metrics observes delivery outcomes per template.
type Metrics interface {
	NotificationObserved(template string, err error)
}

// Logger is the structured logger the dispatcher reports skips and failures to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Config holds configuration for the dispatcher.
type Config struct {
	SubjectPrefix string
	Metrics       Metrics
	Logger        Logger
}

// Dispatcher renders and sends the notifications of each workflow event.
type Dispatcher struct {
	units         Directory
	sender        EmailSender
	subjectPrefix string
	metrics       Metrics
	logger        Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(units Directory, sender EmailSender, cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = charmLog.New(io.Discard)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Dispatcher{
		units:         units,
		sender:        sender,
		subjectPrefix: cfg.SubjectPrefix,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// Publish plans and sends the notifications of event. Delivery failures are logged and
// counted; only a failure to resolve the unit hierarchy is returned.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	tree, err := d.units.UnitSnapshot(ctx)
	if err != nil {
		return err
	}
	intents, skips := Plan(event, tree)
	for _, skip := range skips {
		d.logger.Warn("notification recipient skipped", "kind", event.Kind, "unit_id", skip.UnitID, "reason", skip.Reason)
	}
	for _, intent := range intents {
		err := d.deliver(ctx, intent)
		d.metrics.NotificationObserved(string(intent.Template), err)
		if err != nil {
			d.logger.Error("notification delivery failed", "template", intent.Template, "unit", intent.Unit.Code, "to", intent.Recipient.Email, "err", err)
			continue
		}
		d.logger.Debug("notification sent", "template", intent.Template, "unit", intent.Unit.Code, "to", intent.Recipient.Email)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, intent Intent) error {
	subject, body, err := Render(intent, d.subjectPrefix)
	if err != nil {
		return err
	}
	return d.sender.SendHTML(ctx, intent.Recipient.Email, subject, body)
}

type noopMetrics struct{}

func (noopMetrics) NotificationObserved(string, error) {}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	Logger Logger
}

// SendHTML logs the message headers.
func (s LogSender) SendHTML(_ context.Context, to, subject, body string) error {
	if s.Logger != nil {
		s.Logger.Info("notification", "to", to, "subject", subject, "bytes", len(body))
	}
	return nil
}
