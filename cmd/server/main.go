package main

import (
	"github.com/alecthomas/kong"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	cli struct {
		Version kong.VersionFlag `help:"Show version information."`
		Commands
	}
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Vars{"version": Version},
		kong.Name("ledger"),
		kong.Description("Double-entry voucher ledger: posting API, balances and reports."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
