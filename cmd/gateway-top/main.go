// Package main provides gateway-top: a live terminal dashboard that polls
// a running gateway's /metrics endpoint.
//
// Usage:
//
//	gateway-top [--url http://localhost:9100]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dazedpro/claude-cli-proxy/tui"
	"github.com/dazedpro/claude-cli-proxy/types"
)

func main() {
	app := &cli.App{
		Name:           "gateway-top",
		Usage:          "Live dashboard for a claude-cli-proxy gateway",
		Version:        types.Version,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL of the gateway",
				Value: "http://localhost:9100",
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runAction(c *cli.Context) error {
	return tui.Run(c.String("url"))
}
