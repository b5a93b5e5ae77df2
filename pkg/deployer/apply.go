package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/artifacts"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/broadcaster"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/confirm"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/metrics"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/pipeline"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/cliutil"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/ctxinterrupt"
	oplog "github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/log"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/txinclude"
)

// gateRequestsPerSecond bounds the confirmation polling of a single step.
const gateRequestsPerSecond = 10

func ApplyCLI(cliCtx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(cliCtx)
	l := oplog.NewLogger(oplog.AppOut(cliCtx), logCfg)
	oplog.SetGlobalLogHandler(l.Handler())

	cfg := ApplyConfig{
		Logger: l,
		Fs:     afero.NewOsFs(),
	}
	if path := cliCtx.String(ConfigFlagName); path != "" {
		if err := LoadConfigFile(cfg.Fs, path, &cfg); err != nil {
			return err
		}
	}
	if err := cliutil.PopulateStruct(&cfg, cliCtx); err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := ctxinterrupt.WithCancelOnInterrupt(cliCtx.Context)
	return Apply(ctx, cfg, oplog.AppOut(cliCtx))
}

// Apply connects to the configured node and runs the migration.
func Apply(ctx context.Context, cfg ApplyConfig, stdout io.Writer) error {
	client, err := ethclient.DialContext(ctx, cfg.JSONRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.JSONRPCURL, err)
	}
	defer client.Close()
	return ApplyWithClient(ctx, cfg, client, stdout)
}

// ApplyWithClient runs the migration against client. The final state and
// report are written whether or not the migration succeeds.
func ApplyWithClient(ctx context.Context, cfg ApplyConfig, client broadcaster.Client, stdout io.Writer) error {
	lgr := cfg.Logger
	if lgr == nil {
		lgr = log.Root()
	}
	runID := uuid.NewString()
	lgr = lgr.New("run", runID)
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	pk, err := cfg.privateKey()
	if err != nil {
		return err
	}
	from := crypto.PubkeyToAddress(pk.PublicKey)
	migCfg, err := cfg.MigrationConfig(from)
	if err != nil {
		return err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}

	var m metrics.Metricer = metrics.NoopMetrics
	var pm *metrics.Metrics
	if cfg.MetricsTextfile != "" {
		pm = metrics.NewMetrics()
		m = pm
	}

	store := state.NewStore(fs, cfg.StatePath)
	st, err := store.Read()
	if err != nil {
		return err
	}
	steps, err := pipeline.MigrationSteps(artifacts.OpenDir(fs, cfg.ArtifactsDir))
	if err != nil {
		return fmt.Errorf("failed to load migration: %w", err)
	}

	bcast := broadcaster.New(client, broadcaster.Config{
		From:           from,
		Signer:         txinclude.NewPkSigner(pk, chainID),
		GasPrice:       migCfg.GasPrice,
		ReceiptTimeout: cfg.ConfirmationTimeout,
		Logger:         lgr,
		Metrics:        m,
	})
	gate := confirm.NewGate(client, confirm.Config{
		Confirmations:     cfg.Confirmations,
		Timeout:           cfg.ConfirmationTimeout,
		RequestsPerSecond: gateRequestsPerSecond,
		Logger:            lgr,
		Metrics:           m,
	})
	env := &pipeline.Env{
		Logger:  lgr,
		Chain:   bcast,
		Config:  migCfg,
		Metrics: m,
	}
	runner := pipeline.NewRunner(env, steps, st, func(_ context.Context, snap *state.State) error {
		return store.Write(snap)
	})

	lgr.Info("starting migration",
		"chainID", chainID,
		"deployer", from,
		"owner", migCfg.OwnerAddress,
		"state", store.Path(),
		"recorded", st.Len(),
		"steps", len(steps),
		"confirmations", gate.Confirmations(),
	)

	report := &Report{
		RunID:    runID,
		ChainID:  chainID.Uint64(),
		Deployer: from,
		Steps:    []StepReport{},
	}
	runErr := runMigration(ctx, lgr, runner, gate, report)

	final := runner.State().Snapshot()
	report.Phase = runner.Phase().String()
	if runErr != nil {
		report.Phase = pipeline.PhaseFailed.String()
		report.Error = runErr.Error()
		var stepErr *pipeline.StepError
		if errors.As(runErr, &stepErr) && stepErr.Snapshot != nil {
			final = stepErr.Snapshot
		}
		kind := pipeline.Classify(runErr)
		lgr.Error("migration failed", "kind", kind, "retryable", kind.Retryable(), "recorded", final.Len(), "err", runErr)
		if kind.Retryable() {
			lgr.Info("run the same command again to resume from the recorded state", "state", store.Path())
		}
	} else {
		lgr.Info("migration complete", "recorded", final.Len())
	}
	report.State = final

	if cfg.Outfile != "-" {
		RenderState(stdout, final)
		RenderSteps(stdout, report.Steps)
	}
	if cfg.Outfile != "" {
		if err := WriteReport(fs, cfg.Outfile, stdout, report); err != nil {
			lgr.Error("failed to write report", "err", err)
		}
	}
	if pm != nil {
		if err := pm.WriteTextfile(cfg.MetricsTextfile); err != nil {
			lgr.Error("failed to write metrics", "path", cfg.MetricsTextfile, "err", err)
		}
	}
	return runErr
}

func runMigration(ctx context.Context, lgr log.Logger, runner *pipeline.Runner, gate *confirm.Gate, report *Report) error {
	for res, err := range runner.Run(ctx) {
		if err != nil {
			return err
		}
		report.Steps = append(report.Steps, NewStepReport(res))
		for _, out := range res.Outputs {
			args := []any{"step", res.Name}
			if out.Address != nil {
				args = append(args, "address", *out.Address)
			}
			if out.Hash != nil {
				args = append(args, "tx", *out.Hash)
			}
			lgr.Info(out.Message, args...)
		}
		if err := gate.Wait(ctx, res.Hashes()...); err != nil {
			return &pipeline.StepError{
				Index:    res.Index,
				Name:     res.Name,
				Snapshot: runner.State().Snapshot(),
				Err:      fmt.Errorf("failed waiting for confirmations: %w", err),
			}
		}
		lgr.Info(fmt.Sprintf("Step %d complete", res.Index+1), "step", res.Name)
	}
	return nil
}
