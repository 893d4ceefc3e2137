package providers

import "github.com/ibeckermayer/threadpulse/internal/logging"

// LogSender writes emails to the log instead of sending them, for local runs
type LogSender struct {
	log logging.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{log: logging.Component(logger, "mail")}
}

// Send logs the message headers and its plain body
func (s *LogSender) Send(to, subject, htmlBody, plainBody string) error {
	s.log.WithFields(logging.Fields{"to": to, "subject": subject, "html_bytes": len(htmlBody)}).Info(plainBody)
	return nil
}
