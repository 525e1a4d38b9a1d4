package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rendis/pdc/internal/logging"
	"github.com/rendis/pdc/internal/objectstore"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/streaming"
	"github.com/rendis/pdc/pkg/schema"
)

// DefaultMaxTasks bounds how many task records the runner remembers.
const DefaultMaxTasks = 4096

// Pipeline is the part of pipeline.Generator the runner drives.
type Pipeline interface {
	GenerateDiagram(ctx context.Context, req pipeline.DiagramRequest) (*pipeline.DiagramResult, error)
	GenerateDrawio(ctx context.Context, req pipeline.DrawioRequest) (*pipeline.DrawioResult, error)
	GenerateIntegration(ctx context.Context, req pipeline.IntegrationRequest) (*pipeline.IntegrationResult, error)
}

// Task is the externally visible record of one asynchronous generation.
type Task struct {
	ID        string              `json:"task_id"`
	Kind      store.ArtifactKind  `json:"kind"`
	State     streaming.TaskState `json:"state"`
	Result    map[string]any      `json:"result,omitempty"`
	Error     *TaskError          `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// TaskError is the failure of a task in wire form.
type TaskError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// RunnerDeps are the optional collaborators of a Runner. A nil Store skips
// artifact persistence, a nil Objects skips object copies and a nil Hub
// skips event publishing.
type RunnerDeps struct {
	Store    store.Store
	Objects  objectstore.Store
	Hub      streaming.EventHub
	Logger   *slog.Logger
	MaxTasks int
}

// Runner executes pipeline requests on a WorkerPool and tracks their state.
type Runner struct {
	pipeline Pipeline
	pool     *WorkerPool
	store    store.Store
	objects  objectstore.Store
	hub      streaming.EventHub
	logger   *slog.Logger

	mu    sync.Mutex
	tasks *lru.Cache[string, *Task]

	now func() time.Time
}

// NewRunner creates a runner submitting work to pool.
func NewRunner(p Pipeline, pool *WorkerPool, deps RunnerDeps) (*Runner, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxTasks <= 0 {
		deps.MaxTasks = DefaultMaxTasks
	}
	tasks, err := lru.New[string, *Task](deps.MaxTasks)
	if err != nil {
		return nil, err
	}
	return &Runner{
		pipeline: p,
		pool:     pool,
		store:    deps.Store,
		objects:  deps.Objects,
		hub:      deps.Hub,
		logger:   deps.Logger,
		tasks:    tasks,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Hub returns the event hub, or nil.
func (r *Runner) Hub() streaming.EventHub { return r.hub }

// Workers reports the pool behind the runner.
func (r *Runner) Workers() PoolMetrics { return r.pool.Metrics() }

// SubmitDiagram queues a diagram generation and returns its task ID.
func (r *Runner) SubmitDiagram(ctx context.Context, req pipeline.DiagramRequest) (string, error) {
	return r.submit(ctx, store.KindDiagram, req, func(ctx context.Context) (*outcome, error) {
		res, err := r.pipeline.GenerateDiagram(ctx, req)
		if err != nil {
			return nil, err
		}
		spec, err := json.Marshal(res.Spec)
		if err != nil {
			return nil, err
		}
		return &outcome{
			result: res,
			artifact: store.Artifact{
				DiagramType: string(res.Spec.Type),
				Spec:        spec,
				Mermaid:     res.Mermaid,
			},
			object:      []byte(res.Mermaid),
			objectName:  "diagram.mmd",
			contentType: objectstore.ContentTypeText,
		}, nil
	})
}

// SubmitDrawio queues a draw.io generation and returns its task ID.
func (r *Runner) SubmitDrawio(ctx context.Context, req pipeline.DrawioRequest) (string, error) {
	return r.submit(ctx, store.KindDrawio, req, func(ctx context.Context) (*outcome, error) {
		res, err := r.pipeline.GenerateDrawio(ctx, req)
		if err != nil {
			return nil, err
		}
		return &outcome{
			result:      res,
			artifact:    store.Artifact{XML: res.XML},
			object:      []byte(res.XML),
			objectName:  "diagram.drawio",
			contentType: objectstore.ContentTypeXML,
		}, nil
	})
}

// SubmitIntegration queues an integration plan generation and returns its task ID.
func (r *Runner) SubmitIntegration(ctx context.Context, req pipeline.IntegrationRequest) (string, error) {
	return r.submit(ctx, store.KindIntegration, req, func(ctx context.Context) (*outcome, error) {
		res, err := r.pipeline.GenerateIntegration(ctx, req)
		if err != nil {
			return nil, err
		}
		return &outcome{
			result:      res,
			artifact:    store.Artifact{Markdown: res.Markdown},
			object:      []byte(res.Markdown),
			objectName:  "integration.md",
			contentType: objectstore.ContentTypeMarkdown,
		}, nil
	})
}

// Status returns a snapshot of a task.
func (r *Runner) Status(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks.Get(id)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "task %q not found", id).
			WithDetails(map[string]any{"resource": "task", "id": id})
	}
	cp := *t
	return &cp, nil
}

// Wait blocks until all submitted tasks have finished.
func (r *Runner) Wait() { r.pool.Wait() }

// outcome is a successful generation ready to be persisted.
type outcome struct {
	result      any
	artifact    store.Artifact
	object      []byte
	objectName  string
	contentType string
}

func (r *Runner) submit(ctx context.Context, kind store.ArtifactKind, req any, run func(context.Context) (*outcome, error)) (string, error) {
	id := "task-" + uuid.NewString()
	now := r.now()

	r.mu.Lock()
	r.tasks.Add(id, &Task{ID: id, Kind: kind, State: streaming.StatePending, CreatedAt: now, UpdatedAt: now})
	r.mu.Unlock()
	r.publish(ctx, id, kind, streaming.StatePending, nil)

	err := r.pool.Submit(ctx, id, func(ctx context.Context) error {
		ctx = logging.WithTaskID(ctx, id)
		r.transition(ctx, id, kind, streaming.StateStarted, nil, nil)

		out, err := run(ctx)
		if err != nil {
			r.fail(ctx, id, kind, req, err)
			return err
		}
		r.succeed(ctx, id, kind, req, out)
		return nil
	})
	if err != nil {
		r.fail(ctx, id, kind, nil, err)
		return "", err
	}

	r.logger.InfoContext(ctx, "task submitted", "task_id", id, "kind", kind)
	return id, nil
}

func (r *Runner) succeed(ctx context.Context, id string, kind store.ArtifactKind, req any, out *outcome) {
	result, err := toMap(out.result)
	if err != nil {
		r.fail(ctx, id, kind, req, err)
		return
	}

	var artifactID any
	if aid := r.persist(ctx, kind, req, out); aid != "" {
		artifactID = aid
	}
	result["artifact_id"] = artifactID

	r.transition(ctx, id, kind, streaming.StateSuccess, result, nil)
	r.logger.InfoContext(ctx, "task succeeded", "kind", kind, "artifact_id", artifactID)
}

func (r *Runner) fail(ctx context.Context, id string, kind store.ArtifactKind, req any, err error) {
	te := &TaskError{Code: schema.ErrCodeInternal, Message: err.Error()}
	var pe *schema.PipelineError
	if errors.As(err, &pe) {
		te.Code = pe.Code
		te.Message = pe.Message
		te.Details = pe.Details
	}

	if req != nil && r.store != nil {
		a := store.Artifact{Status: store.StatusFailed, Error: te.Message}
		r.createArtifact(ctx, kind, req, &a)
	}

	r.transition(ctx, id, kind, streaming.StateFailure, map[string]any{"error": te.Message}, te)
	r.logger.WarnContext(ctx, "task failed", "kind", kind, "code", te.Code, "error", te.Message)
}

// persist stores the artifact and its object copy. Both are best effort:
// failures are logged and an empty id is returned.
func (r *Runner) persist(ctx context.Context, kind store.ArtifactKind, req any, out *outcome) string {
	if r.store == nil {
		return ""
	}
	a := out.artifact
	a.ID = uuid.NewString()
	a.Status = store.StatusDone
	ctx = logging.WithArtifactID(ctx, a.ID)

	if r.objects != nil {
		a.ObjectKey = objectstore.SafePut(ctx, r.objects, r.logger,
			objectstore.ArtifactKey(a.ID, out.objectName), out.object, out.contentType)
	}
	return r.createArtifact(ctx, kind, req, &a)
}

func (r *Runner) createArtifact(ctx context.Context, kind store.ArtifactKind, req any, a *store.Artifact) string {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Kind = kind
	raw, err := json.Marshal(req)
	if err != nil {
		r.logger.WarnContext(ctx, "encode artifact request", "error", err)
		return ""
	}
	a.Request = raw
	if err := r.store.CreateArtifact(ctx, a); err != nil {
		r.logger.WarnContext(ctx, "persist artifact", "artifact_id", a.ID, "error", err)
		return ""
	}
	return a.ID
}

func (r *Runner) transition(ctx context.Context, id string, kind store.ArtifactKind, state streaming.TaskState, result map[string]any, te *TaskError) {
	r.mu.Lock()
	if t, ok := r.tasks.Peek(id); ok {
		t.State = state
		t.Result = result
		t.Error = te
		t.UpdatedAt = r.now()
	}
	r.mu.Unlock()

	var payload any
	switch {
	case te != nil:
		payload = te
	case result != nil:
		payload = result
	}
	r.publish(ctx, id, kind, state, payload)
}

func (r *Runner) publish(ctx context.Context, id string, kind store.ArtifactKind, state streaming.TaskState, payload any) {
	if r.hub == nil {
		return
	}
	evt := streaming.TaskEvent{TaskID: id, Kind: string(kind), State: state, Payload: payload}
	if err := r.hub.Publish(context.WithoutCancel(ctx), evt); err != nil {
		r.logger.DebugContext(ctx, "publish task event", "task_id", id, "error", err)
	}
}

// toMap flattens a result struct into its JSON object form.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
