package main

import (
	"os"

	"github.com/rs/zerolog"
)

// console is the human-facing reporter for successful command output: one
// line per command invocation, readable in a terminal. Error paths still go
// through fmt.Fprintf to stderr (cmd/slcli's convention) since those are
// single sentences, not structured records.
var console = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false}).With().Timestamp().Logger()
