package inbound

import (
	"context"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pipeline/usecase"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgrouter"
)

type uc interface {
	Submit(ctx context.Context, upload entity.Upload) (usecase.SubmitResult, error)
	Download(ctx context.Context, taskID string) (usecase.Download, error)
	Convert(ctx context.Context, upload entity.Upload) (usecase.Download, error)
}

type Config struct {
	Mode entity.Mode
	// MaxBytes caps the request body of POST /upload. Zero disables the cap.
	MaxBytes int64
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, cfg Config) {
	end := &HTTPEndpoint{uc: uc, maxBytes: cfg.MaxBytes}
	limit := pkgrouter.MaxBodyBytes(cfg.MaxBytes, usecase.MsgTooLarge)

	switch cfg.Mode {
	case entity.ModeSync:
		r.POST("/upload", end.Convert, limit)
	default:
		r.POST("/upload", end.Upload, limit)
		r.GET("/download/:task_id", end.Download)
	}
}
