// Package photo runs batches of face swaps, one background goroutine per batch
// working through its templates in order.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"facestudio/internal/domain"
	"facestudio/internal/facetype"
	"facestudio/internal/infra"
	"facestudio/internal/providers/coze"
	"facestudio/internal/templates"
)

const defaultRetention = time.Hour

// Swapper runs one face swap.
type Swapper interface {
	SwapFace(ctx context.Context, req coze.SwapRequest) *coze.FaceSwapResult
}

// Analyzer detects the face type when the request does not carry one.
type Analyzer interface {
	AnalyzeFace(ctx context.Context, imageURL string) *coze.FaceAnalysisResult
}

// TemplateMatcher picks the template variant for a face type.
type TemplateMatcher interface {
	Match(ctx context.Context, tpl *domain.Template, faceType string) templates.MatchResult
}

// CreateRequest starts a batch.
type CreateRequest struct {
	// OwnerID is the requesting user; only that user can read or cancel the batch.
	OwnerID            string
	UserImageURL       string
	SecondUserImageURL string
	TemplateIDs        []int64
	// FaceType is a display label or canonical width; empty triggers analysis.
	FaceType string
}

// QueueOptions wires a Queue.
type QueueOptions struct {
	Templates domain.TemplateRepository
	Matcher   TemplateMatcher
	Swapper   Swapper
	Analyzer  Analyzer
	Notifier  Notifier
	// AsyncSwap starts swaps asynchronously and polls them.
	AsyncSwap bool
	// Retention is how long finished batches stay queryable.
	Retention time.Duration
	Logger    *infra.Logger
	Now       func() time.Time
	NewID     func() string
}

// Queue owns in-flight and recently finished batches.
type Queue struct {
	templates domain.TemplateRepository
	matcher   TemplateMatcher
	swapper   Swapper
	analyzer  Analyzer
	notifier  Notifier
	asyncSwap bool
	retention time.Duration
	logger    *infra.Logger
	now       func() time.Time
	newID     func() string

	baseCtx context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	batches map[string]*batchState
}

type batchState struct {
	batch      domain.PhotoBatch
	secondURL  string
	cancel     context.CancelFunc
	finishedAt time.Time
}

func NewQueue(opts QueueOptions) *Queue {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		templates: opts.Templates,
		matcher:   opts.Matcher,
		swapper:   opts.Swapper,
		analyzer:  opts.Analyzer,
		notifier:  notifier,
		asyncSwap: opts.AsyncSwap,
		retention: retention,
		logger:    logger,
		now:       now,
		newID:     newID,
		baseCtx:   ctx,
		stopAll:   cancel,
		batches:   make(map[string]*batchState),
	}
}

// CreateBatch registers one pending task per template and starts processing
// in the background. The returned snapshot has every task pending.
func (q *Queue) CreateBatch(ctx context.Context, req CreateRequest) (*domain.PhotoBatch, error) {
	req.UserImageURL = strings.TrimSpace(req.UserImageURL)
	if req.UserImageURL == "" {
		return nil, fmt.Errorf("%w: image_url is required", domain.ErrInvalidInput)
	}
	if len(req.TemplateIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one template is required", domain.ErrInvalidInput)
	}
	if req.FaceType != "" {
		if _, ok := facetype.ToDB(req.FaceType); !ok {
			return nil, fmt.Errorf("%w: unknown face type %q", domain.ErrInvalidInput, req.FaceType)
		}
	}
	if err := q.baseCtx.Err(); err != nil {
		return nil, fmt.Errorf("photo: queue stopped: %w", err)
	}

	now := q.now()
	batch := domain.PhotoBatch{
		ID:           q.newID(),
		OwnerID:      strings.TrimSpace(req.OwnerID),
		UserImageURL: req.UserImageURL,
		FaceType:     req.FaceType,
		CreatedAt:    now,
		Tasks:        make([]domain.PhotoTask, len(req.TemplateIDs)),
	}
	for i, id := range req.TemplateIDs {
		batch.Tasks[i] = domain.PhotoTask{
			ID:         q.newID(),
			BatchID:    batch.ID,
			TemplateID: id,
			Status:     domain.TaskStatusPending,
			UpdatedAt:  now,
		}
	}

	snapshot := copyBatch(&batch)
	runCtx, cancel := context.WithCancel(q.baseCtx)
	state := &batchState{batch: batch, secondURL: strings.TrimSpace(req.SecondUserImageURL), cancel: cancel}

	q.mu.Lock()
	q.pruneLocked(now)
	q.batches[batch.ID] = state
	q.mu.Unlock()

	q.logger.Info().Str("batch_id", batch.ID).Int("tasks", len(batch.Tasks)).Msg("photo batch created")

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		q.run(runCtx, snapshot.ID)
	}()
	return snapshot, nil
}

// Get returns a snapshot of a batch owned by ownerID. Batches of other users
// are reported as not found.
func (q *Queue) Get(batchID, ownerID string) (*domain.PhotoBatch, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	state, ok := q.batches[batchID]
	if !ok || state.batch.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return copyBatch(&state.batch), nil
}

func (q *Queue) snapshot(batchID string) (*domain.PhotoBatch, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	state, ok := q.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyBatch(&state.batch), nil
}

// Cancel stops a batch. Pending tasks become cancelled at once; the running
// task is cancelled when its swap returns.
func (q *Queue) Cancel(batchID, ownerID string) (*domain.PhotoBatch, error) {
	q.mu.Lock()
	state, ok := q.batches[batchID]
	if !ok || state.batch.OwnerID != ownerID {
		q.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if state.batch.Done() {
		q.mu.Unlock()
		return nil, domain.ErrBatchFinished
	}
	state.cancel()
	now := q.now()
	var events []Event
	for i := range state.batch.Tasks {
		task := &state.batch.Tasks[i]
		if task.Status == domain.TaskStatusPending {
			task.Status = domain.TaskStatusCancelled
			task.UpdatedAt = now
			events = append(events, eventFor(task, now))
		}
	}
	snapshot := copyBatch(&state.batch)
	q.mu.Unlock()

	q.logger.Info().Str("batch_id", batchID).Msg("photo batch cancelled")
	for _, ev := range events {
		q.notify(context.Background(), ev)
	}
	return snapshot, nil
}

// Wait blocks until every started batch goroutine has returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Shutdown cancels all batches and waits for them, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopAll()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, batchID string) {
	logger := q.logger.With().Str("batch_id", batchID).Logger()
	snapshot, err := q.snapshot(batchID)
	if err != nil {
		return
	}
	faceType := q.resolveFaceType(ctx, snapshot, &logger)

	for i := range snapshot.Tasks {
		if ctx.Err() != nil {
			q.cancelRemaining(batchID, i)
			break
		}
		q.runTask(ctx, batchID, i, snapshot, faceType, &logger)
	}

	q.mu.Lock()
	if state, ok := q.batches[batchID]; ok {
		state.finishedAt = q.now()
	}
	q.mu.Unlock()
	logger.Info().Msg("photo batch finished")
}

// resolveFaceType uses the requested face type or asks the analyzer. An
// analysis failure only disables template matching.
func (q *Queue) resolveFaceType(ctx context.Context, batch *domain.PhotoBatch, logger *zerolog.Logger) string {
	if batch.FaceType != "" || q.analyzer == nil {
		return batch.FaceType
	}
	result := q.analyzer.AnalyzeFace(ctx, batch.UserImageURL)
	if result == nil || !result.Success {
		ev := logger.Warn()
		if result != nil {
			ev = ev.Str("error_code", string(result.ErrorCode)).Str("error", result.ErrorMessage)
		}
		ev.Msg("photo: face analysis failed, templates used as requested")
		return ""
	}
	q.mu.Lock()
	if state, ok := q.batches[batch.ID]; ok {
		state.batch.FaceType = result.FaceType
	}
	q.mu.Unlock()
	return result.FaceType
}

func (q *Queue) runTask(ctx context.Context, batchID string, idx int, snapshot *domain.PhotoBatch, faceType string, logger *zerolog.Logger) {
	task := snapshot.Tasks[idx]
	if !q.transition(batchID, idx, func(t *domain.PhotoTask) bool {
		if t.Status != domain.TaskStatusPending {
			return false
		}
		t.Status = domain.TaskStatusRunning
		return true
	}) {
		return
	}

	tpl, err := q.templates.GetByID(ctx, task.TemplateID)
	if err != nil {
		msg := "template lookup failed"
		if errors.Is(err, domain.ErrNotFound) {
			msg = "template not found"
		}
		logger.Warn().Err(err).Int64("template_id", task.TemplateID).Msg("photo: " + msg)
		q.finish(ctx, batchID, idx, nil, msg)
		return
	}

	match := q.matcher.Match(ctx, tpl, faceType)
	q.transition(batchID, idx, func(t *domain.PhotoTask) bool {
		t.UsedTemplateID = match.Template.ID
		t.TemplateDowngraded = match.Downgraded
		return false
	})

	second := q.secondImage(batchID)
	result := q.swapper.SwapFace(ctx, coze.SwapRequest{
		UserImageURL:       snapshot.UserImageURL,
		SecondUserImageURL: second,
		TemplateImageURL:   match.Template.SwapImageURL(),
		DoubleFace:         match.Template.GroupType == domain.GroupTypeCouple,
		Async:              q.asyncSwap,
		OnProgress: func(p int) {
			q.transition(batchID, idx, func(t *domain.PhotoTask) bool {
				if p <= t.Progress || p >= 100 {
					return false
				}
				t.Progress = p
				return true
			})
		},
	})
	q.finish(ctx, batchID, idx, result, "")
}

// finish records the terminal state of a task. A cancelled context wins over
// whatever the swap reported.
func (q *Queue) finish(ctx context.Context, batchID string, idx int, result *coze.FaceSwapResult, failure string) {
	q.transition(batchID, idx, func(t *domain.PhotoTask) bool {
		switch {
		case ctx.Err() != nil:
			t.Status = domain.TaskStatusCancelled
		case failure != "":
			t.Status = domain.TaskStatusFailed
			t.ErrorMessage = failure
		case result == nil:
			t.Status = domain.TaskStatusFailed
			t.ErrorMessage = "no swap result"
		case result.Success:
			t.Status = domain.TaskStatusSucceeded
			t.Progress = 100
			t.ResultURLs = append([]string(nil), result.ResultURLs...)
		default:
			t.Status = domain.TaskStatusFailed
			t.ErrorMessage = result.ErrorMessage
		}
		if result != nil {
			t.ExecutionID = result.ExecutionID
		}
		return true
	})
}

// transition applies fn to a task under the lock and notifies when fn
// reports a visible change.
func (q *Queue) transition(batchID string, idx int, fn func(t *domain.PhotoTask) bool) bool {
	q.mu.Lock()
	state, ok := q.batches[batchID]
	if !ok || idx >= len(state.batch.Tasks) {
		q.mu.Unlock()
		return false
	}
	task := &state.batch.Tasks[idx]
	changed := fn(task)
	var ev Event
	if changed {
		task.UpdatedAt = q.now()
		ev = eventFor(task, task.UpdatedAt)
	}
	q.mu.Unlock()

	if changed {
		q.notify(context.Background(), ev)
	}
	return changed
}

func (q *Queue) cancelRemaining(batchID string, from int) {
	q.mu.RLock()
	state, ok := q.batches[batchID]
	n := 0
	if ok {
		n = len(state.batch.Tasks)
	}
	q.mu.RUnlock()
	for i := from; i < n; i++ {
		q.transition(batchID, i, func(t *domain.PhotoTask) bool {
			if t.Status.Terminal() {
				return false
			}
			t.Status = domain.TaskStatusCancelled
			return true
		})
	}
}

func (q *Queue) secondImage(batchID string) string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if state, ok := q.batches[batchID]; ok {
		return state.secondURL
	}
	return ""
}

func (q *Queue) notify(ctx context.Context, ev Event) {
	if err := q.notifier.Notify(ctx, ev); err != nil {
		q.logger.Warn().Err(err).Str("batch_id", ev.BatchID).Str("task_id", ev.TaskID).Msg("photo: notify failed")
	}
}

// pruneLocked drops batches finished longer than the retention ago.
func (q *Queue) pruneLocked(now time.Time) {
	for id, state := range q.batches {
		if !state.finishedAt.IsZero() && now.Sub(state.finishedAt) > q.retention {
			delete(q.batches, id)
		}
	}
}

func eventFor(t *domain.PhotoTask, at time.Time) Event {
	return Event{
		BatchID:            t.BatchID,
		TaskID:             t.ID,
		TemplateID:         t.TemplateID,
		Status:             t.Status,
		Progress:           t.Progress,
		ResultURLs:         append([]string(nil), t.ResultURLs...),
		ErrorMessage:       t.ErrorMessage,
		TemplateDowngraded: t.TemplateDowngraded,
		At:                 at,
	}
}

func copyBatch(b *domain.PhotoBatch) *domain.PhotoBatch {
	out := *b
	out.Tasks = make([]domain.PhotoTask, len(b.Tasks))
	for i, task := range b.Tasks {
		task.ResultURLs = append([]string(nil), task.ResultURLs...)
		out.Tasks[i] = task
	}
	return &out
}
