package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	mpb "github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/simonhull/opusmeta"
)

type durationResult struct {
	path     string
	duration time.Duration
	bitrate  int
	err      error
}

// runDuration scans the last page of every file concurrently. Files that
// fail are reported and do not stop the others.
func runDuration(ctx context.Context, cfg *Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: duration needs at least one file", errUsage)
	}

	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	// Bars only make sense on a terminal; piped output gets the table alone.
	var out io.Writer = io.Discard
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = os.Stderr
	}
	pbgroup := mpb.New(mpb.WithOutput(out))
	bar := pbgroup.AddBar(int64(len(args)),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name("Scanning", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
		),
	)

	results := make([]durationResult, len(args))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			defer bar.Increment()
			if err := ctx.Err(); err != nil {
				return err
			}

			res := durationResult{path: path}
			file, err := opusmeta.Open(path, opusmeta.WithLogger(log.StandardLogger()))
			if err != nil {
				res.err = err
			} else {
				res.duration = file.Duration()
				res.bitrate = file.Audio.Bitrate
				for _, w := range file.Warnings {
					if w.Stage == "duration" {
						res.err = errors.New(w.Message)
					}
				}
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		bar.Abort(true)
	}
	pbgroup.Wait()
	if err != nil {
		return err
	}

	var total time.Duration
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			log.WithField("path", res.path).Errorf("duration: %v", res.err)
			continue
		}
		total += res.duration
		fmt.Printf("%-12s %4d kbps  %s\n", res.duration.Round(time.Millisecond), res.bitrate/1000, res.path)
	}
	if len(args) > 1 {
		fmt.Printf("%-12s total of %d files\n", total.Round(time.Millisecond), len(args)-failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
