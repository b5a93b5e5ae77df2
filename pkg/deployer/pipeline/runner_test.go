package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

// abSteps deploys A (no dependencies) then B, which takes A's address.
func abSteps(t *testing.T) []Step {
	a := newArtifact(t, "A", "", "0x60aa", nil)
	b := newArtifact(t, "B", ctorABI("address a"), "0x60bb", nil)
	return []Step{
		mustStep(t, "DEPLOY_A", DeployContractOpts{Key: state.V3CoreFactory, Artifact: a}),
		mustStep(t, "DEPLOY_B", DeployContractOpts{
			Key:      state.QuoterV2,
			Artifact: b,
			Args: func(st *state.State, _ *Config) ([]any, error) {
				addr, err := RequireAddress(st, state.V3CoreFactory)
				if err != nil {
					return nil, err
				}
				return []any{addr}, nil
			},
		}),
	}
}

func collect(ctx context.Context, r *Runner) ([]StepResult, error) {
	var results []StepResult
	for res, err := range r.Run(ctx) {
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func TestRunnerFreshAndRerun(t *testing.T) {
	env := newTestEnv(t)
	store := new(memStore)

	r := NewRunner(env.Env, abSteps(t), state.New(), store.persist)
	require.Equal(t, PhaseIdle, r.Phase())
	results, err := collect(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, r.Phase())
	require.Equal(t, 1, r.Index())

	require.Len(t, results, 2)
	require.Equal(t, "Contract A deployed", results[0].Outputs[0].Message)
	require.Equal(t, "Contract B deployed", results[1].Outputs[0].Message)
	require.Len(t, results[0].Hashes(), 1)
	require.Len(t, env.chain.Sent(), 2)

	// one write per step, each a full snapshot
	require.Len(t, store.writes, 2)
	require.Equal(t, 1, store.writes[0].Len())
	require.Equal(t, 2, store.writes[1].Len())

	addrA, _ := store.last().Get(state.V3CoreFactory)
	require.Equal(t, addrA, *results[0].Outputs[0].Address)
	require.Equal(t, addrA, common.BytesToAddress(env.chain.Sent()[1].Data()[32+2+12:32+2+32]))

	// rerun on the persisted state: nothing is sent
	store2 := new(memStore)
	r2 := NewRunner(env.Env, abSteps(t), store.last().Snapshot(), store2.persist)
	results2, err := collect(context.Background(), r2)
	require.NoError(t, err)
	require.Len(t, env.chain.Sent(), 2)
	require.Len(t, results2, 2)
	for i, res := range results2 {
		require.Empty(t, res.Hashes())
		require.Equal(t, results[i].Outputs[0].Address, res.Outputs[0].Address)
		require.Contains(t, res.Outputs[0].Message, "was already deployed")
	}
	// persisted even though nothing changed
	require.Len(t, store2.writes, 2)
	require.Equal(t, store.last().Entries(), store2.last().Entries())
}

func TestRunnerResumesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	store := new(memStore)
	boom := errors.New("connection refused")

	steps := abSteps(t)
	r := NewRunner(env.Env, steps, state.New(), store.persist)

	var results []StepResult
	var runErr error
	for res, err := range r.Run(context.Background()) {
		if err != nil {
			runErr = err
			break
		}
		results = append(results, res)
		// the provider goes away after A
		env.chain.FailNextSend(boom)
	}
	require.Len(t, results, 1)
	require.Equal(t, PhaseFailed, r.Phase())

	var stepErr *StepError
	require.True(t, errors.As(runErr, &stepErr))
	require.Equal(t, 1, stepErr.Index)
	require.Equal(t, "DEPLOY_B", stepErr.Name)
	require.ErrorIs(t, runErr, boom)
	require.Equal(t, KindProvider, Classify(runErr))
	require.True(t, Classify(runErr).Retryable())
	require.Equal(t, 1, stepErr.Snapshot.Len())
	require.True(t, stepErr.Snapshot.Has(state.V3CoreFactory))
	require.Len(t, store.writes, 1)

	// resume from the persisted state
	r2 := NewRunner(env.Env, steps, store.last().Snapshot(), store.persist)
	results2, err := collect(context.Background(), r2)
	require.NoError(t, err)
	require.Empty(t, results2[0].Hashes())
	require.Len(t, results2[1].Hashes(), 1)
	require.Len(t, env.chain.Sent(), 2)
	require.Equal(t, 2, store.last().Len())
}

func TestRunnerPersistsBeforeYield(t *testing.T) {
	env := newTestEnv(t)
	store := new(memStore)
	r := NewRunner(env.Env, abSteps(t), state.New(), store.persist)
	for res, err := range r.Run(context.Background()) {
		require.NoError(t, err)
		require.Len(t, store.writes, res.Index+1)
		require.Equal(t, PhaseRunning, r.Phase())
		require.Equal(t, res.Index, r.Index())
	}
}

func TestRunnerOrdering(t *testing.T) {
	env := newTestEnv(t)
	store := new(memStore)
	steps := abSteps(t)
	// B before A
	r := NewRunner(env.Env, []Step{steps[1], steps[0]}, state.New(), store.persist)
	results, err := collect(context.Background(), r)
	require.Empty(t, results)

	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, state.V3CoreFactory, missing.Key)
	require.False(t, Classify(err).Retryable())
	require.Empty(t, env.chain.Sent())
	require.Empty(t, store.writes)
}

func TestRunnerBreakStops(t *testing.T) {
	env := newTestEnv(t)
	store := new(memStore)
	r := NewRunner(env.Env, abSteps(t), state.New(), store.persist)
	for range r.Run(context.Background()) {
		break
	}
	require.Equal(t, PhaseStopped, r.Phase())
	require.Len(t, env.chain.Sent(), 1)
	require.Len(t, store.writes, 1)
}

func TestRunnerRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	r := NewRunner(env.Env, nil, state.New(), new(memStore).persist)
	_, err := collect(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, r.Phase())

	_, err = collect(context.Background(), r)
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRunnerPersistFailure(t *testing.T) {
	env := newTestEnv(t)
	diskFull := errors.New("no space left on device")
	store := &memStore{err: diskFull}
	r := NewRunner(env.Env, abSteps(t), state.New(), store.persist)

	_, err := collect(context.Background(), r)
	require.ErrorIs(t, err, diskFull)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, 0, stepErr.Index)
	require.Equal(t, 0, stepErr.Snapshot.Len())
	require.Equal(t, PhaseFailed, r.Phase())
}

func TestRunnerCanceled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(env.Env, abSteps(t), state.New(), new(memStore).persist)
	_, err := collect(ctx, r)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, env.chain.Sent())
}
