package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/notify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// detached returns a subscriber with an outbox but no connection.
func detached() *subscriber {
	return &subscriber{outbox: make(chan []byte, outboxSize)}
}

func depositEvent() notify.Event {
	return notify.Event{
		Kind:       notify.KindDeposit,
		OccurredAt: time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC),
		Payload:    map[string]string{"amount": "10"},
	}
}

func TestAddRemove(t *testing.T) {
	hub := NewHub(quietLogger())
	a, b := detached(), detached()

	hub.add(a)
	hub.add(b)
	assert.Equal(t, 2, hub.Subscribers())

	hub.remove(a)
	assert.Equal(t, 1, hub.Subscribers())

	hub.remove(a)
	hub.remove(b)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestPublishFansOut(t *testing.T) {
	hub := NewHub(quietLogger())
	a, b := detached(), detached()
	hub.add(a)
	hub.add(b)
	defer hub.remove(a)
	defer hub.remove(b)

	require.NoError(t, hub.Publish(context.Background(), depositEvent()))

	for _, s := range []*subscriber{a, b} {
		select {
		case data := <-s.outbox:
			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, "deposit", got["kind"])
			assert.Equal(t, map[string]any{"amount": "10"}, got["payload"])
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(quietLogger())
	assert.NoError(t, hub.Publish(context.Background(), depositEvent()))
}

func TestPublishDropsWhenOutboxFull(t *testing.T) {
	hub := NewHub(quietLogger())
	s := detached()
	hub.add(s)
	defer hub.remove(s)

	for range outboxSize + 3 {
		require.NoError(t, hub.Publish(context.Background(), depositEvent()))
	}
	assert.Len(t, s.outbox, outboxSize)
}

func TestConcurrentPublish(t *testing.T) {
	hub := NewHub(quietLogger())
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := detached()
			hub.add(s)
			_ = hub.Publish(context.Background(), depositEvent())
			hub.remove(s)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Subscribers())
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(hub.Handler([]string{"*"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, depositEvent()))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageText, typ)
	assert.Contains(t, string(data), `"kind":"deposit"`)

	conn.Close(ws.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
