package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/streaming"
	"github.com/rendis/pdc/pkg/schema"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS middleware on the HTTP side.
	CheckOrigin: func(*http.Request) bool { return true },
}

type submitResponse struct {
	TaskID string              `json:"task_id"`
	State  streaming.TaskState `json:"state"`
}

func (s *Server) handleTaskSubmit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		s.writeError(w, r, unavailable("task runner"))
		return
	}

	var (
		id  string
		err error
	)
	switch kind := store.ArtifactKind(r.PathValue("kind")); kind {
	case store.KindDiagram:
		var req pipeline.DiagramRequest
		if err = decodeJSON(r, &req); err == nil {
			id, err = s.deps.Runner.SubmitDiagram(r.Context(), req)
		}
	case store.KindDrawio:
		var req pipeline.DrawioRequest
		if err = decodeJSON(r, &req); err == nil {
			id, err = s.deps.Runner.SubmitDrawio(r.Context(), req)
		}
	case store.KindIntegration:
		var req pipeline.IntegrationRequest
		if err = decodeJSON(r, &req); err == nil {
			id, err = s.deps.Runner.SubmitIntegration(r.Context(), req)
		}
	default:
		err = schema.NewErrorf(schema.ErrCodeValidation, "unknown task kind %q", kind).
			WithDetails(map[string]any{"kind": string(kind)})
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: id, State: streaming.StatePending})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		s.writeError(w, r, unavailable("task runner"))
		return
	}
	task, err := s.deps.Runner.Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// subscribeTask validates the task and subscribes to its events. The
// snapshot is read after subscribing so no transition falls in between.
func (s *Server) subscribeTask(r *http.Request) (*jobs.Task, <-chan streaming.TaskEvent, func(), error) {
	if s.deps.Runner == nil || s.deps.Runner.Hub() == nil {
		return nil, nil, nil, unavailable("task events")
	}
	id := r.PathValue("id")
	if _, err := s.deps.Runner.Status(id); err != nil {
		return nil, nil, nil, err
	}
	ch, cancel, err := s.deps.Runner.Hub().Subscribe(r.Context(), streaming.EventFilter{TaskID: id})
	if err != nil {
		return nil, nil, nil, err
	}
	task, err := s.deps.Runner.Status(id)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return task, ch, cancel, nil
}

// snapshotEvent turns a task record into the event a late subscriber
// would have seen last.
func snapshotEvent(t *jobs.Task) streaming.TaskEvent {
	ev := streaming.TaskEvent{TaskID: t.ID, Kind: string(t.Kind), State: t.State}
	switch {
	case t.Error != nil:
		ev.Payload = t.Error
	case t.Result != nil:
		ev.Payload = t.Result
	}
	return ev
}

// handleTaskWS streams the task's state over a websocket: the current
// snapshot first, then every transition until a terminal state.
func (s *Server) handleTaskWS(w http.ResponseWriter, r *http.Request) {
	task, ch, cancel, err := s.subscribeTask(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read pump only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev streaming.TaskEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}
	finish := func() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"))
	}

	if err := send(snapshotEvent(task)); err != nil {
		return
	}
	if task.State.Terminal() {
		finish()
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := send(ev); err != nil {
				return
			}
			if ev.State.Terminal() {
				finish()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleTaskSSE is the Server-Sent Events variant of handleTaskWS.
func (s *Server) handleTaskSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, schema.NewError(schema.ErrCodeInternal, "streaming not supported"))
		return
	}
	task, ch, cancel, err := s.subscribeTask(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := func(ev streaming.TaskEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.State, data)
		flusher.Flush()
	}

	emit(snapshotEvent(task))
	if task.State.Terminal() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			emit(ev)
			if ev.State.Terminal() {
				return
			}
		}
	}
}
