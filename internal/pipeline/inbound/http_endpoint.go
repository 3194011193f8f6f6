package inbound

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pipeline/usecase"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgrouter"
)

const formFileField = "file"

type HTTPEndpoint struct {
	uc       uc
	maxBytes int64
}

func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	upload, cleanup, err := h.extractUpload(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result, err := h.uc.Submit(ctx, upload)
	if err != nil {
		return nil, err
	}

	return UploadResponse{
		Message: usecase.MsgUploaded,
		TaskID:  result.TaskID,
	}, nil
}

func (h *HTTPEndpoint) Download(ctx context.Context, r *http.Request) (any, error) {
	taskID := strings.TrimSpace(pkgrouter.GetParam(ctx, "task_id"))

	dl, err := h.uc.Download(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return FileResponse{dl}, nil
}

func (h *HTTPEndpoint) Convert(ctx context.Context, r *http.Request) (any, error) {
	upload, cleanup, err := h.extractUpload(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	dl, err := h.uc.Convert(ctx, upload)
	if err != nil {
		return nil, err
	}

	return FileResponse{dl}, nil
}

// extractUpload finds the "file" part of a multipart request. With a size cap
// in place the part is read fully before returning, so an oversized body is
// rejected before anything reaches the staging area.
func (h *HTTPEndpoint) extractUpload(r *http.Request) (entity.Upload, func(), error) {
	noop := func() {}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return entity.Upload{}, noop, pkgerror.NewValidation(usecase.MsgNoFilePart)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return entity.Upload{}, noop, pkgerror.NewValidation(usecase.MsgNoFilePart)
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return entity.Upload{}, noop, pkgerror.NewValidation(usecase.MsgNoFilePart)
			}
			return entity.Upload{}, noop, bodyErr(err)
		}

		filename, isFile := partFilename(part.Header.Get("Content-Disposition"))
		if part.FormName() != formFileField || !isFile {
			_ = part.Close()
			continue
		}

		if h.maxBytes <= 0 {
			return entity.Upload{Filename: filename, Content: part}, func() { _ = part.Close() }, nil
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return entity.Upload{}, noop, bodyErr(err)
		}

		return entity.Upload{Filename: filename, Content: bytes.NewReader(data)}, noop, nil
	}
}

// partFilename returns the filename parameter exactly as the client sent it.
// multipart.Part.FileName applies filepath.Base, the sanitizer wants the raw
// value. A part without a filename parameter is a plain form field.
func partFilename(disposition string) (string, bool) {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "", false
	}

	filename, ok := params["filename"]
	return filename, ok
}

func bodyErr(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return pkgerror.NewTooLarge(usecase.MsgTooLarge)
	}

	return pkgerror.NewInvalidFormat()
}
