package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the part of *tgbotapi.BotAPI used to send messages.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts events to the administrator's chat.
type Telegram struct {
	sender TelegramSender
	chatID int64
	loc    *time.Location
}

func NewTelegram(sender TelegramSender, adminChatID int64, loc *time.Location) *Telegram {
	if loc == nil {
		loc = time.UTC
	}
	return &Telegram{sender: sender, chatID: adminChatID, loc: loc}
}

func (t *Telegram) Notify(ctx context.Context, e Event) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatAdminMessage(e, t.loc))
	msg.ParseMode = tgbotapi.ModeHTML

	// BotAPI.Send has no context; bound it from outside.
	done := make(chan error, 1)
	go func() {
		_, err := t.sender.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

// FormatAdminMessage renders e as Telegram HTML.
func FormatAdminMessage(e Event, loc *time.Location) string {
	var b strings.Builder
	switch e.Kind {
	case KindBooked:
		b.WriteString("📅 <b>New booking</b>\n")
	case KindCancelled:
		b.WriteString("❌ <b>Booking cancelled</b>\n")
	default:
		b.WriteString("⚠️ <b>Booking error</b>\n")
	}

	fmt.Fprintf(&b, "👤 %s\n", html.EscapeString(e.Name))
	if !e.Slot.IsZero() {
		fmt.Fprintf(&b, "🕒 %s\n", e.Slot.In(loc).Format("02.01.2006 15:04"))
	}
	if e.ServiceName != "" {
		fmt.Fprintf(&b, "💆 %s\n", html.EscapeString(e.ServiceName))
	}
	if e.BookingID != "" {
		fmt.Fprintf(&b, "🆔 <code>%s</code>\n", html.EscapeString(e.BookingID))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "ℹ️ %s\n", html.EscapeString(e.Reason))
	}
	return strings.TrimRight(b.String(), "\n")
}
