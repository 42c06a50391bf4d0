package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/entrhq/guitest/pkg/runner"
	"github.com/urfave/cli/v2"
)

const appName = "guitest"

// Exit codes.
const (
	exitFailed      = 1
	exitUsage       = 2
	exitInterrupted = 130
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	exit   func(int)
	cli    *cli.App

	mu     sync.Mutex
	server runner.Server
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		getenv: os.Getenv,
		exit:   os.Exit,
	}
	a.cli = &cli.App{
		Name:      appName,
		Usage:     "Run browser and vision-model GUI tests for a PRD story",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		// main maps errors to exit codes.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run the GUI tests of one story",
				ArgsUsage: "<prd.json>",
				Flags:     runFlags(),
				Action:    a.runCommand,
			},
			{
				Name:      "detect",
				Usage:     "Detect the project type and print its dev server settings",
				ArgsUsage: "[dir]",
				Action:    a.detectCommand,
			},
			{
				Name:  "history",
				Usage: "List previous runs, most recent first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of runs to show (0 for all)"},
					&cli.StringFlag{Name: "project", Usage: "Only show runs of this project"},
					&cli.StringFlag{Name: "story", Usage: "Only show runs of this story"},
					&cli.StringFlag{Name: "db", Usage: "History database path (default ~/.guitest/history.db)"},
					&cli.BoolFlag{Name: "json", Usage: "Print entries as JSON"},
				},
				Action: a.historyCommand,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(a.stdout, "%s %s (commit %s, built %s)\n", appName, version, commit, date)
					return nil
				},
			},
		},
	}
	return a
}
