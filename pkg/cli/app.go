package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/inspect"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/cliapp"
	oplog "github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/log"
)

// NewApp creates and configures a new CLI application. Running it without a
// command applies the migration.
func NewApp(versionWithMeta string) *cli.App {
	app := cli.NewApp()
	app.Version = versionWithMeta
	app.Name = "deploy-v3"
	app.Usage = "Deploys the Uniswap v3 contracts, resuming from a state file."
	app.Flags = cliapp.ProtectFlags(append(append([]cli.Flag{}, deployer.GlobalFlags...), deployer.ApplyFlags...))
	app.Before = func(ctx *cli.Context) error {
		return oplog.ReadCLIConfig(ctx).Check()
	}
	app.Action = deployer.ApplyCLI
	app.Commands = []*cli.Command{
		{
			Name:   "apply",
			Usage:  "deploys every contract missing from the state file",
			Flags:  cliapp.ProtectFlags(deployer.ApplyFlags),
			Action: deployer.ApplyCLI,
		},
		{
			Name:        "inspect",
			Usage:       "inspects the state of a deployment",
			Subcommands: inspect.Commands,
		},
	}
	return app
}
