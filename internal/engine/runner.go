package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"github.com/seantiz/benchkit/internal/backend"
	"github.com/seantiz/benchkit/internal/model"
	"github.com/seantiz/benchkit/internal/store"
)

// DefaultTimeout bounds a benchmark whose identifier has no timeout of its own.
const DefaultTimeout = 180 * time.Second

// MaterializeFunc turns an identifier into a runnable instance. workdir is the
// runner's absolute root working directory. The returned identifier replaces
// the input one for the rest of the run and normally has WorkDir set.
type MaterializeFunc func(ctx context.Context, id model.Identifier, workdir string) (model.Identifier, backend.Instance, error)

// Step is one unit of progress produced by Compute.
type Step struct {
	Identifier model.Identifier
	Instance   backend.Instance
	Result     model.Result
}

// Option configures a Runner.
type Option func(*Runner)

// WithExitOnError controls whether a benchmark failure aborts the run.
// The default is true.
func WithExitOnError(exit bool) Option {
	return func(r *Runner) { r.exitOnError = exit }
}

// WithDefaultTimeout sets the timeout used for identifiers without an
// override. Non-positive values are ignored.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// WithRunID sets the run ID stamped on records. By default a new ULID is used.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// Runner orchestrates benchmark execution against a result store.
//
// A Runner owns its store for the duration of a Compute call; concurrent
// Compute calls on one Runner, or on Runners sharing a store, must be
// serialized by the caller.
type Runner struct {
	store       store.Store
	executor    backend.Executor
	materialize MaterializeFunc
	workdir     string
	logger      *slog.Logger

	exitOnError    bool
	defaultTimeout time.Duration
	runID          string
}

// NewRunner creates a Runner rooted at workdir, creating the directory and its
// parents if needed.
func NewRunner(
	s store.Store,
	executor backend.Executor,
	materialize MaterializeFunc,
	workdir string,
	logger *slog.Logger,
	opts ...Option,
) (*Runner, error) {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir %s: %w", workdir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir %s: %w", abs, err)
	}

	r := &Runner{
		store:          s,
		executor:       executor,
		materialize:    materialize,
		workdir:        abs,
		logger:         logger,
		exitOnError:    true,
		defaultTimeout: DefaultTimeout,
		runID:          model.NewRunID(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("run_id", r.runID)
	return r, nil
}

// WorkDir returns the runner's absolute root working directory.
func (r *Runner) WorkDir() string {
	return r.workdir
}

// RunID returns the ID stamped on records written by this runner.
func (r *Runner) RunID() string {
	return r.runID
}

// Compute returns a sequence that runs every identifier without a stored
// record and yields one Step per executed benchmark, in input order.
//
// Nothing happens until the sequence is iterated. Duplicate keys and
// materialization errors are yielded as a single error before any benchmark
// executes. Each result is stored before its step is yielded, so breaking out
// of the loop leaves the remaining identifiers unexecuted and unrecorded. A
// step yielded together with a non-nil error ends the sequence; such a step
// is not recorded.
//
// Stored records are not durable until Save is called.
func (r *Runner) Compute(ctx context.Context, ids []model.Identifier) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		pending, err := r.skipCompleted(ctx, ids)
		if err != nil {
			yield(Step{}, err)
			return
		}

		skipped := len(ids) - len(pending)
		benchmarksSkipped.Add(float64(skipped))
		r.logger.Info(fmt.Sprintf("skipping %d out of %d benchmark(s)", skipped, len(ids)),
			"skipped", skipped,
			"total", len(ids),
		)

		// Every instance is materialized before the first one executes.
		steps, err := r.materializeAll(ctx, pending)
		if err != nil {
			yield(Step{}, err)
			return
		}

		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				yield(Step{}, err)
				return
			}
			done, err := r.run(ctx, step)
			if !yield(done, err) || err != nil {
				return
			}
		}
	}
}

// Save makes stored records durable. It is safe to call repeatedly.
func (r *Runner) Save(ctx context.Context) error {
	if err := r.store.Save(ctx); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	r.logger.Debug("results saved")
	return nil
}

// skipCompleted rejects duplicate keys and drops identifiers that already have
// a record. It never modifies the store.
func (r *Runner) skipCompleted(ctx context.Context, ids []model.Identifier) ([]model.Identifier, error) {
	visited := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := model.Key(id)
		if _, dup := visited[key]; dup {
			return nil, fmt.Errorf("%w: %s appears more than once in a batch of %d", ErrDuplicateIdentifier, id, len(ids))
		}
		visited[key] = struct{}{}
	}

	pending := make([]model.Identifier, 0, len(ids))
	for _, id := range ids {
		done, err := r.store.HasRecordFor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check record for %s: %w", id, err)
		}
		if !done {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func (r *Runner) materializeAll(ctx context.Context, ids []model.Identifier) ([]Step, error) {
	steps := make([]Step, 0, len(ids))
	for _, id := range ids {
		r.transition(id, model.StatePending, model.StateMaterializing)
		materialized, inst, err := r.materialize(ctx, id, r.workdir)
		if err != nil {
			return nil, fmt.Errorf("materialize %s: %w", id, err)
		}
		steps = append(steps, Step{Identifier: materialized, Instance: inst})
	}
	return steps, nil
}

// run executes one materialized benchmark, applies the result policy and
// records the outcome.
func (r *Runner) run(ctx context.Context, step Step) (Step, error) {
	id := step.Identifier

	timeout := r.defaultTimeout
	if override, ok := id.TimeoutOverride(); ok {
		timeout = override
	}

	r.transition(id, model.StateMaterializing, model.StateExecuting)
	r.logger.Info("executing benchmark",
		"benchmark", id.String(),
		"timeout", timeout,
		"workdir", id.WorkDir,
	)

	step.Result = r.execute(ctx, step.Instance, timeout)

	// An execution cut short by the caller is not a benchmark failure.
	if _, failed := step.Result.(model.Failure); failed && ctx.Err() != nil {
		return step, fmt.Errorf("benchmark %s interrupted: %w", id, ctx.Err())
	}

	if err := r.handleResult(id, step.Result); err != nil {
		return step, err
	}

	rec := model.RecordFor(id, step.Result, r.runID, time.Now().UTC())
	if err := r.store.StoreRecord(ctx, id, rec); err != nil {
		return step, fmt.Errorf("store record for %s: %w", id, err)
	}
	r.transition(id, model.StateFor(step.Result), model.StateRecorded)

	return step, nil
}

// execute is the runner's only recovery point: an error returned by the
// executor, or a panic inside it, becomes a Failure carrying the cause and a
// formatted trace.
func (r *Runner) execute(ctx context.Context, inst backend.Instance, timeout time.Duration) (result model.Result) {
	defer func() {
		if p := recover(); p != nil {
			trace := fmt.Sprintf("panic: %v\n\n%s", p, debug.Stack())
			r.logger.Error("unexpected benchmarking error has occurred", "trace", trace)
			result = model.Failure{Err: fmt.Errorf("executor panic: %v", p), Trace: trace}
		}
	}()

	res, err := r.executor.Execute(ctx, inst, timeout)
	if err != nil {
		err = errors.WithStack(err)
		trace := fmt.Sprintf("%+v", err)
		r.logger.Error("unexpected benchmarking error has occurred", "error", err, "trace", trace)
		return model.Failure{Err: err, Trace: trace}
	}
	return res
}

// handleResult logs the result and decides whether it aborts the run.
func (r *Runner) handleResult(id model.Identifier, result model.Result) error {
	switch res := result.(type) {
	case model.Failure:
		benchmarksTotal.WithLabelValues(model.OutcomeFailure).Inc()
		r.transition(id, model.StateExecuting, model.StateFailed)
		r.logger.Error("benchmark has failed",
			"benchmark", id.String(),
			"error", res.Err,
			"trace", res.Trace,
		)
		if r.exitOnError {
			return &FailedError{Identifier: id, Failure: res}
		}
	case model.Timeout:
		benchmarksTotal.WithLabelValues(model.OutcomeTimeout).Inc()
		r.transition(id, model.StateExecuting, model.StateTimedOut)
		r.logger.Info("benchmark has timed out",
			"benchmark", id.String(),
			"timeout", res.Timeout,
		)
	case model.Success:
		benchmarksTotal.WithLabelValues(model.OutcomeSuccess).Inc()
		benchmarkDuration.Observe(res.Duration.Seconds())
		r.transition(id, model.StateExecuting, model.StateSucceeded)
		r.logger.Info("benchmark has finished",
			"benchmark", id.String(),
			"duration", res.Duration,
		)
	default:
		return fmt.Errorf("%w %T for benchmark %s", ErrUnknownResult, result, id)
	}
	return nil
}

// transition logs a lifecycle move of id at debug level.
func (r *Runner) transition(id model.Identifier, from, to string) {
	if !model.ValidTransition(from, to) {
		r.logger.Warn("unexpected benchmark state transition",
			"benchmark", id.String(), "from", from, "to", to)
		return
	}
	r.logger.Debug("benchmark state",
		"benchmark", id.String(), "from", from, "to", to)
}
