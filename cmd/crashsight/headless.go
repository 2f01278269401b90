package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/internal/scenario"
	"github.com/crashsight/crashsight/internal/sim"
	"github.com/crashsight/crashsight/pkg/core"
)

type headlessOptions struct {
	Sim      sim.Config
	Rand     *rand.Rand
	Scenario core.ScenarioID
	Frames   int
	Out      io.Writer
}

// runHeadless loads one scenario, steps the loop Frames times as fast as possible and
// writes every detection result to Out as a JSON line.
func runHeadless(ctx context.Context, opts headlessOptions) error {
	sc, err := scenario.Lookup(opts.Scenario)
	if err != nil {
		return err
	}

	loop, err := sim.NewLoop(opts.Sim, eventDispatcher, opts.Rand, Logger)
	if err != nil {
		return fmt.Errorf("creating loop: %w", err)
	}
	progressSource.Store(&progressHolder{src: loop})

	stopMonitor := startMonitor(loop)
	defer stopMonitor()

	enc := json.NewEncoder(opts.Out)
	cancel := eventDispatcher.Subscribe(dispatcher.TopicDetection, func(e dispatcher.Event) error {
		result, ok := e.Payload.(core.DetectionResult)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
		}
		return enc.Encode(result)
	})
	defer cancel()

	loop.Load(sc)
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		loop.Step()
	}

	snap, _ := loop.Snapshot()
	Logger.Info("Headless run finished", "scenario", sc.ID, "session", snap.ID, "frames", snap.Frame)
	return nil
}
