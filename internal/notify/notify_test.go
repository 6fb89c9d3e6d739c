package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Notify(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

type blockingSink struct{}

func (blockingSink) Notify(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, time.Second, nil)

	d.Fire(Event{Kind: KindBooked, Name: "Anna"})
	d.Fire(Event{Kind: KindCancelled, Name: "Anna"})
	d.Wait()

	assert.Len(t, sink.all(), 2)
}

func TestDispatcherLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewDispatcher(&recordingSink{err: errors.New("chat not found")}, time.Second, zap.New(core))

	d.Fire(Event{Kind: KindBooked, BookingID: "evt-1"})
	d.Wait()

	require.Equal(t, 1, logs.FilterMessage("notification failed").Len())
}

func TestDispatcherTimesOutSlowSink(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewDispatcher(blockingSink{}, 20*time.Millisecond, zap.New(core))

	start := time.Now()
	d.Fire(Event{Kind: KindBooked})
	d.Wait()

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, logs.Len())
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("boom")}

	err := Multi{bad, ok}.Notify(context.Background(), Event{Kind: KindBooked})
	assert.Error(t, err)
	assert.Len(t, ok.all(), 1, "a failing sink does not stop the others")
}

type fakeSender struct {
	sent  []tgbotapi.Chattable
	block chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramSendsHTMLToAdminChat(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	sender := &fakeSender{}
	tg := NewTelegram(sender, 4242, msk)

	err := tg.Notify(context.Background(), Event{
		Kind:        KindBooked,
		BookingID:   "evt-1",
		Name:        "Anna <script>",
		ServiceName: "Classic massage",
		Slot:        time.Date(2026, 10, 20, 10, 20, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(4242), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "New booking")
	assert.Contains(t, msg.Text, "Anna &lt;script&gt;")
	assert.Contains(t, msg.Text, "20.10.2026 13:20")
	assert.Contains(t, msg.Text, "evt-1")
}

func TestTelegramHonoursContext(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	defer close(sender.block)
	tg := NewTelegram(sender, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tg.Notify(ctx, Event{Kind: KindCancelled})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaKeysByBookingID(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafka(w)

	require.NoError(t, k.Notify(context.Background(), Event{Kind: KindCancelled, BookingID: "evt-9", Name: "Boris"}))
	require.Len(t, w.msgs, 1)

	assert.Equal(t, "evt-9", string(w.msgs[0].Key))
	assert.Equal(t, "cancelled", string(w.msgs[0].Headers[0].Value))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "Boris", got.Name)
}
