package notifysvc

import (
	"context"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"github.com/trezcool/sciencequest/core"
)

// telegramNotifier posts admin notifications to a Telegram chat.
type telegramNotifier struct {
	bot    *tele.Bot
	chat   *tele.Chat
	logger core.Logger
}

var _ core.Notifier = (*telegramNotifier)(nil)

func NewTelegramNotifier(logger core.Logger, conf *core.Config) (core.Notifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   conf.Notify.TelegramToken,
		Offline: true, // send-only: no poller, no getMe on start
		OnError: func(err error, _ tele.Context) {
			logger.Error("telegram bot: "+err.Error(), err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating telegram bot")
	}
	return &telegramNotifier{
		bot:    bot,
		chat:   &tele.Chat{ID: conf.Notify.TelegramAdminChatID},
		logger: logger,
	}, nil
}

func (n *telegramNotifier) NotifyAdmins(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(n.chat, msg, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return errors.Wrap(err, "sending telegram message")
	}
	return nil
}
