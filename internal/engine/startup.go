package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// ErrNotRunning is returned when the backend health check fails.
var ErrNotRunning = errors.New("inference engine is not running")

// EnsureReady checks that the Engine is reachable and required models are
// available. With autoPull, missing models are pulled with progress output
// written to w; otherwise a missing model is an error.
func EnsureReady(ctx context.Context, e Engine, chatModel, embedModel string, autoPull bool, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("%w: %s backend unreachable, please ensure it is started", ErrNotRunning, e.Name())
	}

	models := make([]string, 0, 2)
	if chatModel != "" {
		models = append(models, chatModel)
	}
	if embedModel != "" && embedModel != chatModel {
		models = append(models, embedModel)
	}

	present := make([]bool, len(models))
	g, gCtx := errgroup.WithContext(ctx)
	for i, model := range models {
		g.Go(func() error {
			present[i] = e.HasModel(gCtx, model)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, model := range models {
		if present[i] {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}
		if !autoPull {
			return fmt.Errorf("model %s is not available on %s", model, e.Name())
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := e.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	return nil
}
