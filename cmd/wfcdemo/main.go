// Command wfcdemo is a thin host for the chunked WFC engine: it wires a
// config.EngineParameters document and a prototype catalogue file into a
// manager.Manager, drives a Start/Stop command lifecycle from the
// terminal, and prints cell changes to stdout as they arrive.
//
// Everything in this package is host plumbing (§1's "out of scope"
// collaborators) - the engine itself lives in the sibling packages.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/willcliffy/live-wave-function-collapse/config"
	"github.com/willcliffy/live-wave-function-collapse/director"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/manager"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
	"github.com/willcliffy/live-wave-function-collapse/validator"
	"github.com/willcliffy/live-wave-function-collapse/workerpool"

	"github.com/joeycumines/logiface"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	flags := flag.NewFlagSet("wfcdemo", flag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to an engine parameters document (hujson)")
	cataloguePath := flags.StringP("catalogue", "p", "", "path to a prototype catalogue document, overrides the config file's catalogue_path")
	seed := flags.Int64P("seed", "s", 1, "base RNG seed; each worker derives its own seed from this plus its chunk index")
	logLevel := flags.StringP("log-level", "l", "info", "log level: debug, info, warning, error")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *configPath == "" {
		fmt.Fprintln(stderr, "wfcdemo: --config is required")
		return 2
	}

	log := buildLogger(*logLevel)

	params, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "wfcdemo:", err)
		return 1
	}
	if *cataloguePath != "" {
		params.CataloguePath = *cataloguePath
	}

	catalogue, err := prototype.Load(params.CataloguePath, log)
	if err != nil {
		fmt.Fprintln(stderr, "wfcdemo:", err)
		return 1
	}

	lib, err := params.BuildLibrary(catalogue, log)
	if err != nil {
		fmt.Fprintln(stderr, "wfcdemo:", err)
		return 1
	}

	chunks := params.BuildChunks()
	mapDirector := director.New(lib, catalogue, chunks, log)
	pool := workerpool.New(lib, params.PoolSize, rngFactory(*seed), log)
	mapValidator := validator.New(lib, catalogue, log)

	cmd := make(chan manager.Command)
	updates := make(chan manager.Update, 256)
	m := manager.New(cmd, updates, pool, mapDirector, mapValidator, uuid.New(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cmd <- manager.Command{Type: manager.Start}

	for {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Log("wfcdemo: signal received, stopping")
			select {
			case cmd <- manager.Command{Type: manager.Stop}:
			case <-time.After(time.Second):
				cancel()
			}

		case update, ok := <-updates:
			if !ok {
				return 0
			}
			printUpdate(stdout, update)
			if update.Type == manager.UpdateState && update.State == manager.Stopped {
				<-done
				return 0
			}

		case <-done:
			return 0
		}
	}
}

func printUpdate(stdout *os.File, update manager.Update) {
	switch update.Type {
	case manager.UpdateState:
		fmt.Fprintf(stdout, "state %s\n", update.State)
	case manager.UpdateChanges:
		for _, c := range update.Changes {
			fmt.Fprintf(stdout, "cell %s %v\n", c.Position, c.ProtoIDs())
		}
	}
}

// rngFactory derives a per-chunk *rand.Rand from baseSeed, so a run is
// reproducible given the same seed and config, per spec.md §9's RNG
// discipline note.
func rngFactory(baseSeed int64) func(chunkIndex int) *rand.Rand {
	return func(chunkIndex int) *rand.Rand {
		return rand.New(rand.NewSource(baseSeed + int64(chunkIndex)))
	}
}

func buildLogger(level string) wfclog.Logger {
	lvl := logiface.LevelInformational
	switch level {
	case "debug":
		lvl = logiface.LevelDebug
	case "warning":
		lvl = logiface.LevelWarning
	case "error":
		lvl = logiface.LevelError
	}
	return wfclog.New(lvl)
}
