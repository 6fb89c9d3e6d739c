// Package bot is the Telegram chat front end of the booking service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
)

const slotLayout = "02.01 15:04"

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UpdateSource is the long-polling half of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	sender    TelegramSender
	service   booking.Service
	webAppURL string
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func New(sender TelegramSender, service booking.Service, webAppURL string, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		sender:    sender,
		service:   service,
		webAppURL: webAppURL,
		logger:    logger,
	}
}

// Run handles updates until ctx is cancelled, then waits for in-flight handlers.
func (b *Bot) Run(ctx context.Context, source UpdateSource) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := source.GetUpdatesChan(u)

	b.logger.Info("telegram bot started")
	defer func() {
		b.wg.Wait()
		b.logger.Info("telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			source.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.HandleMessage(ctx, msg)
			}(upd.Message)
		}
	}
}

// HandleMessage replies to a single chat message.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	var reply tgbotapi.MessageConfig
	switch {
	case msg.IsCommand():
		reply = b.handleCommand(ctx, msg)
	case looksLikePayload(msg.Text):
		reply = b.book(ctx, msg, msg.Text)
	default:
		reply = b.help(msg.Chat.ID)
	}

	if _, err := b.sender.Send(reply); err != nil {
		b.logger.Warn("telegram reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	switch msg.Command() {
	case "start":
		return b.welcome(msg.Chat.ID)
	case "book":
		return b.book(ctx, msg, msg.CommandArguments())
	case "cancel":
		return b.cancel(ctx, msg.Chat.ID, msg.CommandArguments())
	case "services":
		return b.services(msg.Chat.ID)
	default:
		return b.help(msg.Chat.ID)
	}
}

func (b *Bot) welcome(chatID int64) tgbotapi.MessageConfig {
	reply := tgbotapi.NewMessage(chatID, "Welcome! Pick a convenient time for your massage in the booking calendar.")
	if b.webAppURL != "" {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("📅 Book a session", b.webAppURL),
			),
		)
	}
	return reply
}

func (b *Bot) help(chatID int64) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(chatID,
		"Use /start to open the booking calendar, /services to see prices, /cancel <id> to cancel a booking.")
}

func (b *Bot) book(ctx context.Context, msg *tgbotapi.Message, text string) tgbotapi.MessageConfig {
	chatID := msg.Chat.ID
	loc := b.service.Rules().Location

	payload, err := DecodePayload(text)
	if err != nil {
		b.logger.Info("rejected chat booking payload", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.rejection(chatID, err)
	}
	req, err := payload.Request(fullName(msg.From), loc)
	if err != nil {
		b.logger.Info("rejected chat booking payload", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.rejection(chatID, err)
	}
	// The booking uses the catalog; a stale web app build may have shown other values.
	if svc, ok := b.service.Catalog().Lookup(req.ServiceType); ok {
		if diff := payload.Mismatches(svc); len(diff) > 0 {
			b.logger.Warn("chat payload differs from catalog",
				zap.Int64("chat_id", chatID),
				zap.String("service", svc.Key),
				zap.Strings("fields", diff),
			)
		}
	}

	bk, err := b.service.Book(ctx, req)
	if err != nil {
		return b.rejection(chatID, err)
	}

	text = fmt.Sprintf(
		"✅ You are booked for %s on %s.\nBooking id: <code>%s</code>\nTo cancel, send /cancel %s",
		html.EscapeString(bk.ServiceName),
		bk.Start.In(loc).Format(slotLayout),
		html.EscapeString(bk.ID),
		html.EscapeString(bk.ID),
	)
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	return reply
}

func (b *Bot) cancel(ctx context.Context, chatID int64, args string) tgbotapi.MessageConfig {
	id := strings.TrimSpace(args)
	if id == "" {
		return tgbotapi.NewMessage(chatID, "Send /cancel followed by your booking id.")
	}

	bk, err := b.service.Cancel(ctx, booking.CancelRequest{EventID: id})
	switch {
	case err == nil:
		loc := b.service.Rules().Location
		return tgbotapi.NewMessage(chatID, fmt.Sprintf("Your booking on %s is cancelled.", bk.Start.In(loc).Format(slotLayout)))
	case errors.Is(err, booking.ErrNotFound):
		return tgbotapi.NewMessage(chatID, "Booking not found or already cancelled.")
	default:
		return b.rejection(chatID, err)
	}
}

func (b *Bot) services(chatID int64) tgbotapi.MessageConfig {
	var sb strings.Builder
	sb.WriteString("<b>Services</b>\n")
	for _, s := range b.service.Catalog().All() {
		fmt.Fprintf(&sb, "• %s: %d min", html.EscapeString(s.Name), s.DurationMinutes)
		if label := s.PriceLabel(); label != "" {
			fmt.Fprintf(&sb, ", %s", html.EscapeString(label))
		}
		sb.WriteString("\n")
	}
	reply := tgbotapi.NewMessage(chatID, strings.TrimRight(sb.String(), "\n"))
	reply.ParseMode = tgbotapi.ModeHTML
	return reply
}

// Reason is the class of a failed chat request.
type Reason string

const (
	ReasonTooSoon     Reason = "too-soon"
	ReasonTooFar      Reason = "too-far"
	ReasonConflict    Reason = "conflict"
	ReasonMalformed   Reason = "malformed-payload"
	ReasonUnavailable Reason = "unavailable"
)

func Classify(err error) Reason {
	switch {
	case errors.Is(err, booking.ErrLeadTimeViolation):
		return ReasonTooSoon
	case errors.Is(err, booking.ErrHorizonViolation):
		return ReasonTooFar
	case errors.Is(err, booking.ErrSlotConflict), errors.Is(err, booking.ErrAmbiguousMatch):
		return ReasonConflict
	case errors.Is(err, booking.ErrUpstreamUnavailable):
		return ReasonUnavailable
	default:
		return ReasonMalformed
	}
}

func (b *Bot) rejection(chatID int64, err error) tgbotapi.MessageConfig {
	rules := b.service.Rules()
	var text string
	switch Classify(err) {
	case ReasonTooSoon:
		text = fmt.Sprintf("You cannot book less than %s before the session.", formatDuration(rules.LeadTime))
	case ReasonTooFar:
		text = fmt.Sprintf("You cannot book more than %d days ahead.", rules.HorizonDays)
	case ReasonConflict:
		text = "This time is already taken. Please choose another slot."
	case ReasonUnavailable:
		text = "The booking calendar is unavailable right now. Please try again in a few minutes."
	default:
		text = "Could not read the booking request. Please choose a slot in the booking calendar again."
	}
	return tgbotapi.NewMessage(chatID, text)
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func fullName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}
