package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/directors-cut/server/internal/session"
	logx "github.com/directors-cut/server/pkg/logger"
	"github.com/gorilla/websocket"
)

// Time allowed to write a message to the peer.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin during development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSender adapts a websocket connection to the session transport. Writes
// are serialized: the handler's prefetch goroutine never writes, but the
// registry sweep may close concurrently with a send.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h := session.NewHandler(s.deps, &wsSender{conn: conn})
	id := s.registry.Add(h)
	defer func() {
		s.registry.Remove(id)
		if err := conn.Close(); err != nil {
			logx.Debug().Err(err).Str("sessionID", id).Msg("connection close")
		}
	}()
	logx.Info().Str("sessionID", id).Msg("session connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logx.Info().Str("sessionID", id).Msg("session disconnected")
			return
		}
		if err := h.HandleRaw(r.Context(), raw); err != nil {
			logx.Error().Err(err).Str("sessionID", id).Msg("session handling failed")
			h.SendError("internal session error")
			return
		}
	}
}
