// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package main

import (
	"github.com/alecthomas/kong"
	"github.com/criteo-forks/essync/cmd"
)

var cli struct {
	Config   string `help:"configuration file (yaml, toml or json)" short:"c"`
	LogLevel string `default:"info" help:"log level" short:"l"`

	Serve cmd.ServeCmd `cmd:"" help:"keep the search client pool in sync with the cluster"`
	Index cmd.IndexCmd `cmd:"" help:"run an index lifecycle event"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("essync"),
		kong.Description("Search cluster connection and index lifecycle manager"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cmd.Globals{Config: cli.Config, LogLevel: cli.LogLevel})
	ctx.FatalIfErrorf(err)
}
