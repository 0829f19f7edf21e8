// Package feed consumes the streaming update channel the collaborator
// services push over, decoding JSON envelopes and handing them to the
// trading data manager.
package feed

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/soumyarai2050/Flux-sub002/manager"
)

// Handler receives each decoded update. *manager.TradingDataManager
// satisfies it.
type Handler interface {
	HandleUpdate(manager.Update)
}

type Feed struct {
	URL string

	handler Handler
	log     zerolog.Logger
}

func New(url string, handler Handler, log zerolog.Logger) *Feed {
	return &Feed{
		URL:     url,
		handler: handler,
		log:     log.With().Str("component", "feed").Logger(),
	}
}

// Run consumes the stream until ctx is done, reconnecting with capped
// backoff on any transport error.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn().Err(err).Dur("backoff", backoff).Msg("feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (f *Feed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("url", f.URL).Msg("connected update stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()

	// Unblock the read loop when the context ends.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		var u manager.Update
		if err := json.Unmarshal(data, &u); err != nil {
			f.log.Warn().Err(err).Msg("malformed update dropped")
			continue
		}
		f.handler.HandleUpdate(u)
	}
}
