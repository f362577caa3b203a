package notifysvc

import (
	"context"
	"sync"

	"github.com/trezcool/sciencequest/core"
)

// ConsoleNotifier logs admin notifications and keeps them for inspection.
type ConsoleNotifier struct {
	logger core.Logger

	mu   sync.Mutex
	sent []string
}

var _ core.Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier(logger core.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) NotifyAdmins(_ context.Context, msg string) error {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	n.logger.Info("admin notification: " + msg)
	return nil
}

// Sent returns a copy of the notifications sent so far.
func (n *ConsoleNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

// NewNotifier picks the Telegram notifier when a bot token is configured.
func NewNotifier(logger core.Logger, conf *core.Config) (core.Notifier, error) {
	if conf.Notify.TelegramToken != "" && conf.Notify.TelegramAdminChatID != 0 {
		return NewTelegramNotifier(logger, conf)
	}
	return NewConsoleNotifier(logger), nil
}
