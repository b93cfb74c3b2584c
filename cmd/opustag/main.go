// Command opustag reads and edits the comment header of Ogg Opus files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/simonhull/opusmeta"
)

type command struct {
	usage string
	run   func(ctx context.Context, cfg *Config, args []string) error
}

var commands = map[string]command{
	"show":        {"show [-pictures] FILE...", runShow},
	"set":         {"set [-vendor V] FILE KEY=VALUE...", runSet},
	"rm":          {"rm FILE KEY...", runRemove},
	"picture":     {"picture add [-type N] [-desc D] FILE IMAGE | picture extract [-o DIR] FILE", runPicture},
	"duration":    {"duration FILE...", runDuration},
	"import-flac": {"import-flac SRC.flac DST.opus", runImportFLAC},
	"version":     {"version", runVersion},
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: opustag <command> [arguments]")
	fmt.Fprintln(os.Stderr)
	for _, name := range []string{"show", "set", "rm", "picture", "duration", "import-flac", "version"} {
		fmt.Fprintf(os.Stderr, "  opustag %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Defaults are read from ~/%s; LOG_LEVEL overrides log_level.\n", configName)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	setLogLevel(cfg.LogLevel)

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "opustag: unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// SIGINT or SIGTERM cancels ctx so bulk commands stop between files
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Reset()
	go func() {
		select {
		case <-sigs:
			cancel()
			signal.Reset()
		case <-ctx.Done():
		}
	}()

	if err := cmd.run(ctx, cfg, flag.Args()[1:]); err != nil {
		cancel()
		log.Fatalf("Error: %v", err)
	}
	cancel()
}

func runVersion(_ context.Context, _ *Config, _ []string) error {
	info := opusmeta.GetVersionInfo()
	fmt.Printf("opustag %s (commit %s, built %s, %s)\n", info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
	return nil
}
