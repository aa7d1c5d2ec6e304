package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes reset codes to the log instead of sending them. Development only.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordReset logs the mail.
func (n *LogNotifier) SendPasswordReset(_ context.Context, mail ResetMail) error {
	n.logger.Info("password reset code",
		zap.String("to", mail.To),
		zap.String("code", mail.Code),
		zap.Time("expires_at", mail.ExpiresAt))
	return nil
}
