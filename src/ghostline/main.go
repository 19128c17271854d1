package main

import (
	"os"

	"github.com/ghostline-dev/ghostline/src/ghostline/app"
	"go.uber.org/fx"
)

const _version = "(set at link time)"

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func main() {
	cmd := newRootCmd(opts, loadCLIDeps)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
