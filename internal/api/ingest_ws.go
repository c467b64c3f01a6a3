package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/flitsinc/go-transcript/internal/engine"
	"github.com/flitsinc/go-transcript/internal/event"
)

// ingestHello is the first frame on an ingest socket, before any events.
type ingestHello struct {
	ID    string `json:"id,omitempty"`
	Query string `json:"query"`
}

// ingestResult is the final frame sent back once the run is persisted.
type ingestResult struct {
	Run   any    `json:"run"`
	Error string `json:"error,omitempty"`
}

// handleIngestWS accepts a live event stream. The client sends one hello
// frame, then one frame per event, then closes its write side. The run is
// consumed as frames arrive and the finished run row is sent back before
// the socket closes.
func (s *Server) handleIngestWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()

	_, helloRaw, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var hello ingestHello
	if err := json.Unmarshal(helloRaw, &hello); err != nil {
		_ = conn.Close(websocket.StatusUnsupportedData, "bad hello frame")
		return
	}

	events := make(chan event.Event)
	source := engine.NewChanSource(events)

	go func() {
		defer close(events)
		for {
			_, raw, err := conn.Read(ctx)
			if err != nil {
				// A normal close ends the stream; anything else is a
				// transport failure the run must record.
				var closeErr websocket.CloseError
				if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
					return
				}
				if ctx.Err() != nil {
					return
				}
				source.Fail(err)
				return
			}
			var evt event.Event
			if err := json.Unmarshal(raw, &evt); err != nil {
				source.Fail(err)
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	run, runErr := s.Manager.Execute(ctx, hello.ID, hello.Query, source)

	result := ingestResult{Run: run}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if payload, err := json.Marshal(result); err == nil {
		_ = conn.Write(context.WithoutCancel(ctx), websocket.MessageText, payload)
	}
	if runErr != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}
