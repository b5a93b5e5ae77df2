package main

import (
	"fmt"
	"os"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/cli"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/version"
)

var (
	GitCommit = ""
	GitDate   = ""
)

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = version.Format(version.Version, GitCommit, GitDate, version.Meta)

func main() {
	app := cli.NewApp(VersionWithMeta)
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	err := app.Run(os.Args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}
