// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/events"
)

// writeWait bounds a single record write to a streaming client.
const writeWait = 10 * time.Second

type streamRequest struct {
	Question string `json:"question"`
}

// streamRun upgrades to a WebSocket, reads one {question} message and
// writes every emitted record of the run as a JSON text message. A failed
// write cancels the run. A failed run closes the socket without a final
// record.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.log.Info("websocket client left before sending a question", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// The reader handles control frames and notices a client going away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	res, err := s.runs.Stream(ctx, req.Question, func(rec events.Record) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(rec)
	})

	log := s.log.With(zap.String("run_id", res.RunID))
	closeCode, reason := websocket.CloseNormalClosure, ""
	if err != nil {
		log.Warn("streamed run ended with error", zap.Error(err))
		closeCode, reason = websocket.CloseInternalServerErr, "run failed"
	} else {
		log.Info("streamed run complete")
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, reason), time.Now().Add(time.Second))

	conn.Close()
	<-readerDone
}
