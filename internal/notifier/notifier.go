package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/digest"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/notifier/providers"
)

// Email providers
const (
	ProviderSMTP = "smtp"
	ProviderLog  = "log"
)

// ErrNoRecipient is returned when neither the call nor the config names an address
var ErrNoRecipient = errors.New("no recipient address configured")

// Sender delivers one multipart email
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// Notifier mails rendered weekly reports. Transient delivery failures are
// retried; 5xx SMTP replies are permanent and fail at once.
type Notifier struct {
	sender   Sender
	to       string
	log      logging.Logger
	executor failsafe.Executor[any]
}

// New creates a notifier delivering to the default address to
func New(sender Sender, to string, logger logging.Logger) *Notifier {
	return newNotifier(sender, to, logger, time.Second)
}

func newNotifier(sender Sender, to string, logger logging.Logger, backoff time.Duration) *Notifier {
	n := &Notifier{sender: sender, to: to, log: logging.Component(logger, "notifier")}
	retry := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil && !permanent(err) }).
		WithMaxRetries(2).
		WithBackoff(backoff, 10*backoff).
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			n.log.WithError(e.LastError()).WithField("attempt", e.Attempts()).Warn("email delivery failed, retrying")
		}).
		Build()
	n.executor = failsafe.With[any](retry)
	return n
}

// NewFromConfig picks the sender named by cfg.Provider; smtp is the default
func NewFromConfig(cfg config.EmailConfig, logger logging.Logger) (*Notifier, error) {
	var sender Sender
	switch cfg.Provider {
	case ProviderSMTP, "":
		from := cfg.FromAddr
		if from == "" {
			from = cfg.SMTPUser
		}
		sender = providers.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, from)
	case ProviderLog:
		sender = providers.NewLogSender(logger)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
	return New(sender, cfg.ToAddr, logger), nil
}

// SendDigest mails a rendered report. An empty toAddr uses the configured
// default address.
func (n *Notifier) SendDigest(ctx context.Context, d *digest.Digest, toAddr string) error {
	if toAddr == "" {
		toAddr = n.to
	}
	if toAddr == "" {
		return ErrNoRecipient
	}

	err := n.executor.WithContext(ctx).Run(func() error {
		return n.sender.Send(toAddr, d.Subject, d.HTMLBody, d.PlainBody)
	})
	if err != nil {
		return fmt.Errorf("failed to deliver %q: %w", d.Subject, err)
	}
	n.log.WithFields(logging.Fields{"to": toAddr, "subject": d.Subject}).Info("report emailed")
	return nil
}

// permanent reports a 5xx SMTP reply, which a retry cannot fix
func permanent(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code >= 500
}
