package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toonslate/toonslate-backend/internal/pipeline"
	"github.com/toonslate/toonslate-backend/internal/render"
	"github.com/toonslate/toonslate-backend/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a translation task consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		detector, err := newDetector()
		if err != nil {
			return err
		}
		translator, err := newTranslator(ctx)
		if err != nil {
			return err
		}
		inpainter, err := newInpainter()
		if err != nil {
			return err
		}
		renderer, err := render.New(logger)
		if err != nil {
			return err
		}

		p := pipeline.New(detector, inpainter, translator, renderer, logger)
		w := worker.New(rt.queue, rt.jobs, rt.store, p, cfg.BaseURL,
			cfg.SoftTimeLimit, cfg.HardTimeLimit, logger)

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
