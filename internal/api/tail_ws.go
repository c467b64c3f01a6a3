package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/flitsinc/go-transcript/internal/history"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleHistoryWS tails transcript appends for one run as they happen.
// Pass ?run=<id>; an empty run id tails every run.
func (s *Server) handleHistoryWS(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("history store"))
		return
	}
	runID := r.URL.Query().Get("run")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	if err := tailHistory(ctx, s.History, runID, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "tail error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func tailHistory(ctx context.Context, store *history.Store, runID string, writer wsWriter) error {
	sub := store.Subscribe(ctx, runID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
