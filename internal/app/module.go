package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/shandysiswandi/csvpass/internal/pipeline"
	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
)

func (a *App) initModules() {
	mode := entity.Mode(a.config.GetString("service.mode"))

	closer, err := pipeline.New(pipeline.Dependency{
		Config:    a.config,
		Router:    a.router,
		Goroutine: a.goroutine,
		Context:   a.ctx,
		ID:        a.taskID,
		Mode:      mode,
	})
	if err != nil {
		slog.Error("failed to init module pipeline", "mode", mode, "error", err)
		os.Exit(1)
	}
	if closer != nil {
		if a.closerFn == nil {
			a.closerFn = map[string]func(context.Context) error{}
		}
		a.closerFn["Pipeline"] = closer
	}
}
