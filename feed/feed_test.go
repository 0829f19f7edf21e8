package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumyarai2050/Flux-sub002/manager"
)

type chanHandler struct {
	ch chan manager.Update
}

func (h *chanHandler) HandleUpdate(u manager.Update) { h.ch <- u }

func wsServer(t *testing.T, payloads []string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedDeliversDecodedUpdates(t *testing.T) {
	t.Parallel()

	srv := wsServer(t, []string{
		`{"kind":"fx_overview","fx":{"pair":"USD/INR","closing":83.5}}`,
		`not json`,
		`{"kind":"strat_status","strategy_id":"strat-1","status":{}}`,
	})

	h := &chanHandler{ch: make(chan manager.Update, 8)}
	f := New(wsURL(srv), h, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	var got []manager.Update
	for len(got) < 2 {
		select {
		case u := <-h.ch:
			got = append(got, u)
		case <-time.After(2 * time.Second):
			t.Fatal("updates not delivered in time")
		}
	}

	// Malformed frames are skipped, well-formed ones arrive in order.
	require.Equal(t, manager.UpdateFxOverview, got[0].Kind)
	require.NotNil(t, got[0].Fx)
	assert.Equal(t, 83.5, got[0].Fx.Closing)
	assert.Equal(t, manager.UpdateStratStatus, got[1].Kind)
	assert.Equal(t, "strat-1", got[1].StrategyID)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestFeedStopsWhenContextAlreadyDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New("ws://127.0.0.1:1/stream", &chanHandler{ch: make(chan manager.Update, 1)}, zerolog.Nop())
	assert.ErrorIs(t, f.Run(ctx), context.Canceled)
}
