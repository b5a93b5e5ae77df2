package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/metrics"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseFailed
	// PhaseStopped means the consumer stopped iterating before the last step.
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var ErrAlreadyStarted = errors.New("migration runner already started")

type StepResult struct {
	Index   int
	Name    string
	Outputs []StepOutput
}

// Hashes returns the hashes of the transactions the step sent.
func (r StepResult) Hashes() []common.Hash {
	var out []common.Hash
	for _, o := range r.Outputs {
		if o.Hash != nil {
			out = append(out, *o.Hash)
		}
	}
	return out
}

// StepError stops a migration. Snapshot is the state as last persisted, which
// is where a rerun will resume.
type StepError struct {
	Index    int
	Name     string
	Snapshot *state.State
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PersistFunc durably stores a full copy of the migration state.
type PersistFunc func(ctx context.Context, st *state.State) error

// Runner executes steps in order against a single state, persisting the state
// after each one.
type Runner struct {
	env     *Env
	steps   []Step
	st      *state.State
	persist PersistFunc

	phase     Phase
	index     int
	persisted *state.State
}

func NewRunner(env *Env, steps []Step, st *state.State, persist PersistFunc) *Runner {
	if env.Metrics == nil {
		env.Metrics = metrics.NoopMetrics
	}
	return &Runner{
		env:     env,
		steps:   steps,
		st:      st,
		persist: persist,
		index:   -1,
	}
}

func (r *Runner) Phase() Phase {
	return r.phase
}

// Index is the position of the step running or last run, -1 before the first.
func (r *Runner) Index() int {
	return r.index
}

// State is the live migration state.
func (r *Runner) State() *state.State {
	return r.st
}

// Run returns the sequence of step results. Each step runs only after the
// consumer has finished with the previous result, so the consumer can block
// on confirmations between steps. A failure is reported once as a *StepError
// and ends the sequence. Run can only be iterated once.
func (r *Runner) Run(ctx context.Context) iter.Seq2[StepResult, error] {
	return func(yield func(StepResult, error) bool) {
		if r.phase != PhaseIdle {
			yield(StepResult{}, ErrAlreadyStarted)
			return
		}
		r.phase = PhaseRunning
		r.persisted = r.st.Snapshot()

		for i, step := range r.steps {
			r.index = i
			lgr := r.env.Logger.New("step", step.Name)

			if err := ctx.Err(); err != nil {
				r.fail(yield, i, step, err)
				return
			}

			lgr.Debug("running step", "index", i+1, "total", len(r.steps))
			start := time.Now()
			outputs, err := step.Run(ctx, r.env, r.st)
			if err != nil {
				r.env.Metrics.RecordStep(step.Name, metrics.OutcomeFailed, time.Since(start))
				r.fail(yield, i, step, err)
				return
			}

			snap := r.st.Snapshot()
			if err := r.persist(ctx, snap); err != nil {
				r.fail(yield, i, step, fmt.Errorf("failed to persist state: %w", err))
				return
			}
			r.persisted = snap
			r.env.Metrics.RecordStep(step.Name, outcome(outputs), time.Since(start))
			r.env.Metrics.RecordStateEntries(snap.Len())

			if !yield(StepResult{Index: i, Name: step.Name, Outputs: outputs}, nil) {
				if i < len(r.steps)-1 {
					r.phase = PhaseStopped
				} else {
					r.phase = PhaseCompleted
				}
				return
			}
		}
		r.phase = PhaseCompleted
	}
}

func (r *Runner) fail(yield func(StepResult, error) bool, i int, step Step, err error) {
	r.phase = PhaseFailed
	r.env.Metrics.RecordError(string(Classify(err)))
	yield(StepResult{Index: i, Name: step.Name}, &StepError{
		Index:    i,
		Name:     step.Name,
		Snapshot: r.persisted,
		Err:      err,
	})
}

func outcome(outputs []StepOutput) string {
	for _, out := range outputs {
		if out.Hash != nil {
			return metrics.OutcomeDeployed
		}
	}
	return metrics.OutcomeSkipped
}
