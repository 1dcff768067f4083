// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// Subcommands.
const (
	cmdFeaturize = "featurize"
	cmdTrain     = "train"
	cmdRun       = "run"
	cmdRuns      = "runs"
)

// errUsage marks command line errors, which exit with code 2.
var errUsage = errors.New("usage error")

// command is a parsed command line.
type command struct {
	name       string
	configPath string

	// limit bounds the runs listing; 0 lists all.
	limit int
}

const usageText = `
Featuresmith - relational feature synthesis and automated model selection.

Usage:
  featuresmith <command> [options]

Commands:
  featurize   Build the train and test feature matrices
  train       Search models, persist the leader and write the submission
  run         featurize followed by train
  runs        List recorded runs, newest first

Options:
`

// parseArgs parses args (without the program name). It returns help=true
// when usage was printed and the program should exit cleanly.
func parseArgs(args []string, output io.Writer) (cmd *command, help bool, err error) {
	fs := flag.NewFlagSet("featuresmith", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, usageText) //nolint:errcheck // usage output
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "Path to the YAML configuration file (overrides CONFIG_PATH).")
	limit := fs.Int("limit", 20, "Maximum number of runs listed by the runs command. 0 lists all.")

	if len(args) == 0 {
		fs.Usage()
		return nil, true, nil
	}

	name := args[0]
	switch name {
	case "-h", "-help", "--help", "help":
		fs.Usage()
		return nil, true, nil
	case cmdFeaturize, cmdTrain, cmdRun, cmdRuns:
	default:
		fs.Usage()
		return nil, false, fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, false, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	if *limit < 0 {
		return nil, false, fmt.Errorf("%w: limit must not be negative", errUsage)
	}

	return &command{name: name, configPath: *configPath, limit: *limit}, false, nil
}
