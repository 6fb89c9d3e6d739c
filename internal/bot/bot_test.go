package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/catalog"
	"github.com/nekogravitycat/massage-booking-backend/internal/schedule"
)

var msk = time.FixedZone("MSK", 3*60*60)

type fakeService struct {
	booked    []booking.BookRequest
	cancelled []booking.CancelRequest
	bookErr   error
	cancelErr error
}

func (f *fakeService) Slots(context.Context, booking.SlotsRequest) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeService) Book(_ context.Context, req booking.BookRequest) (*booking.Booking, error) {
	f.booked = append(f.booked, req)
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &booking.Booking{
		ID:            "evt42",
		RequesterName: req.Name,
		ServiceName:   "Classic massage",
		Start:         req.Slot,
		End:           req.Slot.Add(time.Hour),
	}, nil
}

func (f *fakeService) Cancel(_ context.Context, req booking.CancelRequest) (*booking.Booking, error) {
	f.cancelled = append(f.cancelled, req)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &booking.Booking{ID: req.EventID, Start: time.Date(2026, 10, 21, 14, 0, 0, 0, msk)}, nil
}

func (f *fakeService) Upcoming(context.Context) ([]*booking.Booking, error) { return nil, nil }

func (f *fakeService) Rules() schedule.Rules { return schedule.DefaultRules(msk) }

func (f *fakeService) Catalog() *catalog.Catalog { return catalog.Default() }

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 7},
		From: &tgbotapi.User{ID: 7, FirstName: "Maria", LastName: "Ivanova"},
	}
}

func commandMessage(command, args string) *tgbotapi.Message {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	msg := textMessage(text)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return msg
}

func setupBot() (*Bot, *fakeService, *fakeSender) {
	svc := &fakeService{}
	sender := &fakeSender{}
	return New(sender, svc, "https://example.com/app", nil), svc, sender
}

func TestStartShowsBookingButton(t *testing.T) {
	b, _, sender := setupBot()

	b.HandleMessage(context.Background(), commandMessage("start", ""))

	reply := sender.last(t)
	assert.Equal(t, int64(7), reply.ChatID)
	markup, ok := reply.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://example.com/app", *markup.InlineKeyboard[0][0].URL)
}

func TestBookFromPayload(t *testing.T) {
	b, svc, sender := setupBot()

	payload := `{"slot":"2026-10-21T14:00:00","name":"","massageType":"therapeutic","massageName":"Therapeutic","price":3500}`
	b.HandleMessage(context.Background(), textMessage(payload))

	require.Len(t, svc.booked, 1)
	req := svc.booked[0]
	assert.Equal(t, "Maria Ivanova", req.Name)
	assert.Equal(t, "therapeutic", req.ServiceType)
	assert.True(t, req.Slot.Equal(time.Date(2026, 10, 21, 14, 0, 0, 0, msk)))

	reply := sender.last(t)
	assert.Equal(t, tgbotapi.ModeHTML, reply.ParseMode)
	assert.Contains(t, reply.Text, "21.10 14:00")
	assert.Contains(t, reply.Text, "/cancel evt42")
}

func TestBookLogsCatalogMismatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := &fakeService{}
	b := New(&fakeSender{}, svc, "", zap.New(core))

	b.HandleMessage(context.Background(), textMessage(`{"slot":"2026-10-21T14:00:00","massageType":"classic","massageName":"Classic massage","price":2000}`))
	require.Len(t, svc.booked, 1)

	entries := logs.FilterMessage("chat payload differs from catalog").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"price 2000, catalog 2500"}, entries[0].ContextMap()["fields"])

	// Matching values are quiet.
	b.HandleMessage(context.Background(), textMessage(`{"slot":"2026-10-21T14:00:00","serviceType":"classic","serviceName":"classic massage","price":2500}`))
	assert.Equal(t, 1, logs.FilterMessage("chat payload differs from catalog").Len())
}

func TestPayloadMismatches(t *testing.T) {
	svc, ok := catalog.Default().Lookup("therapeutic")
	require.True(t, ok)

	p, err := DecodePayload(`{"slot":"2026-10-21T14:00:00","massageName":"Therapeutic","price":3500}`)
	require.NoError(t, err)
	assert.Equal(t, []string{`name "Therapeutic", catalog "Therapeutic massage"`}, p.Mismatches(svc))

	assert.Empty(t, Payload{}.Mismatches(svc))
}

func TestBookCommandWithPayload(t *testing.T) {
	b, svc, _ := setupBot()

	b.HandleMessage(context.Background(), commandMessage("book", `{"slot":"2026-10-21T11:00:00Z","name":"Olga"}`))

	require.Len(t, svc.booked, 1)
	assert.Equal(t, "Olga", svc.booked[0].Name)
	assert.Equal(t, 14, svc.booked[0].Slot.Hour())
}

func TestBookRejections(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		err      error
		contains string
	}{
		{"malformed json", `{"slot":`, nil, "Could not read"},
		{"bad slot", `{"slot":"soon","name":"Olga"}`, nil, "Could not read"},
		{"too soon", `{"slot":"2026-10-21T14:00:00","name":"Olga"}`, booking.ErrLeadTimeViolation, "less than 4 hours"},
		{"too far", `{"slot":"2026-10-21T14:00:00","name":"Olga"}`, booking.ErrHorizonViolation, "14 days"},
		{"conflict", `{"slot":"2026-10-21T14:00:00","name":"Olga"}`, booking.ErrSlotConflict, "already taken"},
		{"unavailable", `{"slot":"2026-10-21T14:00:00","name":"Olga"}`, booking.ErrUpstreamUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, svc, sender := setupBot()
			svc.bookErr = tt.err

			b.HandleMessage(context.Background(), textMessage(tt.payload))
			assert.Contains(t, sender.last(t).Text, tt.contains)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonTooSoon, Classify(booking.ErrLeadTimeViolation))
	assert.Equal(t, ReasonTooFar, Classify(booking.ErrHorizonViolation))
	assert.Equal(t, ReasonConflict, Classify(booking.ErrSlotConflict))
	assert.Equal(t, ReasonUnavailable, Classify(booking.ErrUpstreamUnavailable))
	assert.Equal(t, ReasonMalformed, Classify(ErrMalformedPayload))
	assert.Equal(t, ReasonMalformed, Classify(booking.ErrOutsideBusinessHours))
}

func TestCancelCommand(t *testing.T) {
	b, svc, sender := setupBot()

	b.HandleMessage(context.Background(), commandMessage("cancel", "evt42"))
	require.Len(t, svc.cancelled, 1)
	assert.Equal(t, "evt42", svc.cancelled[0].EventID)
	assert.Contains(t, sender.last(t).Text, "cancelled")

	svc.cancelErr = booking.ErrNotFound
	b.HandleMessage(context.Background(), commandMessage("cancel", "evt42"))
	assert.Contains(t, sender.last(t).Text, "not found")

	b.HandleMessage(context.Background(), commandMessage("cancel", ""))
	assert.Contains(t, sender.last(t).Text, "booking id")
	assert.Len(t, svc.cancelled, 2)
}

func TestServicesCommand(t *testing.T) {
	b, _, sender := setupBot()

	b.HandleMessage(context.Background(), commandMessage("services", ""))

	text := sender.last(t).Text
	assert.Contains(t, text, "60 min")
	assert.Contains(t, text, "2500 ₽")
}

func TestPlainTextGetsHelp(t *testing.T) {
	b, svc, sender := setupBot()

	b.HandleMessage(context.Background(), textMessage("hello"))

	assert.Empty(t, svc.booked)
	assert.Contains(t, sender.last(t).Text, "/start")
}

type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
}

func (f *fakeSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }

func (f *fakeSource) StopReceivingUpdates() { close(f.stopped) }

func TestRunStopsOnContext(t *testing.T) {
	b, _, sender := setupBot()
	src := &fakeSource{ch: make(chan tgbotapi.Update, 1), stopped: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, src)
		close(done)
	}()

	src.ch <- tgbotapi.Update{Message: commandMessage("services", "")}
	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	<-src.stopped
}
