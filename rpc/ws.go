package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"blockmarket/core/events"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams committed market events to the client as JSON
// envelopes. Delivery starts at the next committed event; there is no
// backlog replay.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.market == nil {
		http.Error(w, "market unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.market.Bus().Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEnvelope(ctx, conn, env); err != nil {
				return err
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
