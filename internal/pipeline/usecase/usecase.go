package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkguid"
)

const processedPrefix = "processed_"

// Client-facing messages.
const (
	MsgNoFilePart     = "No file part in the request"
	MsgNoSelectedFile = "No selected file"
	MsgOnlyCSV        = "Only CSV files are allowed"
	MsgTooLarge       = "File exceeds maximum upload size"
	MsgTaskNotFound   = "Task not found"
	MsgFileNotFound   = "Processed file not found"
	MsgUploaded       = "File uploaded and processed successfully"
)

type Store interface {
	Save(ctx context.Context, task entity.Task) error
	Find(ctx context.Context, id string) (entity.Task, error)
}

type Staging interface {
	Lock(name string) func()
	WriteUpload(name string, r io.Reader) (string, int64, error)
	WriteProcessed(subdir, name string, write func(w io.Writer) error) (string, error)
	Open(path string) (*os.File, fs.FileInfo, error)
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store       Store
	Staging     Staging
	Transformer Transformer
	Clock       Clock
	ID          pkguid.StringID
	// TTL bounds how long a task can be redeemed. Zero keeps tasks forever.
	TTL time.Duration
}

type Usecase struct {
	store       Store
	staging     Staging
	transformer Transformer
	clock       Clock
	id          pkguid.StringID
	ttl         time.Duration
}

func New(dep Dependency) *Usecase {
	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	transformer := dep.Transformer
	if transformer == nil {
		transformer = Identity{}
	}

	return &Usecase{
		store:       dep.Store,
		staging:     dep.Staging,
		transformer: transformer,
		clock:       clock,
		id:          dep.ID,
		ttl:         dep.TTL,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// SubmitResult is returned by the deferred delivery mode.
type SubmitResult struct {
	TaskID string
}

// Download is an opened processed file ready to be streamed. The caller
// closes File.
type Download struct {
	File    *os.File
	Name    string
	Size    int64
	ModTime time.Time
}

// Submit runs the pipeline and records the output under a fresh task id.
func (u *Usecase) Submit(ctx context.Context, upload entity.Upload) (SubmitResult, error) {
	if u.store == nil || u.staging == nil || u.id == nil {
		return SubmitResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	taskID := u.id.Generate()

	name, err := u.accept(ctx, upload, taskID)
	if err != nil {
		return SubmitResult{}, err
	}

	var processed entity.Processed
	err = u.withName(name, func() error {
		var err error
		processed, err = u.process(ctx, name, upload.Content, taskID)
		return err
	})
	if err != nil {
		return SubmitResult{}, err
	}

	now := u.clock.Now()
	task := entity.Task{
		ID:        taskID,
		Path:      processed.Path,
		Filename:  filepath.Base(processed.Path),
		CreatedAt: now,
	}
	if u.ttl > 0 {
		task.ExpiresAt = now.Add(u.ttl)
	}

	if err := u.store.Save(ctx, task); err != nil {
		return SubmitResult{}, pkgerror.NewIOFailure(fmt.Errorf("save task: %w", err))
	}

	slog.InfoContext(ctx, "task recorded", "task_id", taskID, "file", task.Filename, "rows", processed.Rows)

	return SubmitResult{TaskID: taskID}, nil
}

// Download redeems a task id for its processed file.
func (u *Usecase) Download(ctx context.Context, taskID string) (Download, error) {
	if taskID == "" {
		return Download{}, pkgerror.NewNotFound(MsgTaskNotFound)
	}

	task, err := u.store.Find(ctx, taskID)
	if err != nil {
		if errors.Is(err, pkgerror.ErrNotFound) {
			return Download{}, pkgerror.NewNotFound(MsgTaskNotFound)
		}
		return Download{}, pkgerror.NewIOFailure(err)
	}
	if task.Expired(u.clock.Now()) {
		return Download{}, pkgerror.NewNotFound(MsgTaskNotFound)
	}

	return u.open(task.Path)
}

// Convert runs the pipeline and returns the processed file opened for
// streaming in the same request.
func (u *Usecase) Convert(ctx context.Context, upload entity.Upload) (Download, error) {
	if u.staging == nil {
		return Download{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	fallback := "upload"
	if u.id != nil {
		fallback = u.id.Generate()
	}

	name, err := u.accept(ctx, upload, fallback)
	if err != nil {
		return Download{}, err
	}

	var dl Download
	err = u.withName(name, func() error {
		processed, err := u.process(ctx, name, upload.Content, "")
		if err != nil {
			return err
		}
		// opened under the lock so a concurrent upload of the same name
		// cannot swap the file before we hold a descriptor
		dl, err = u.open(processed.Path)
		return err
	})
	if err != nil {
		return Download{}, err
	}

	slog.DebugContext(ctx, "upload lifecycle", "file", dl.Name, "stage", entity.StageResponded)

	return dl, nil
}

func (u *Usecase) withName(name string, fn func() error) error {
	unlock := u.staging.Lock(name)
	defer unlock()

	return fn()
}

// process stages the raw upload, loads it, transforms it and writes it out
// as processed_<name>, under subdir when given.
func (u *Usecase) process(ctx context.Context, name string, content io.Reader, subdir string) (entity.Processed, error) {
	rawPath, size, err := u.staging.WriteUpload(name, content)
	if err != nil {
		return entity.Processed{}, stagingErr(err)
	}
	slog.DebugContext(ctx, "upload lifecycle", "file", name, "stage", entity.StageStaged, "bytes", size)

	table, err := u.load(rawPath)
	if err != nil {
		return entity.Processed{}, pkgerror.NewIOFailure(err)
	}
	slog.DebugContext(ctx, "upload lifecycle", "file", name, "stage", entity.StageLoaded, "rows", len(table.Rows), "columns", table.Width())

	table, err = u.transformer.Transform(ctx, table)
	if err != nil {
		return entity.Processed{}, pkgerror.NewIOFailure(fmt.Errorf("transform: %w", err))
	}

	outPath, err := u.staging.WriteProcessed(subdir, processedPrefix+name, func(w io.Writer) error {
		return WriteTable(w, table)
	})
	if err != nil {
		return entity.Processed{}, stagingErr(err)
	}
	slog.DebugContext(ctx, "upload lifecycle", "file", name, "stage", entity.StageRewritten, "path", outPath)

	return entity.Processed{
		Name:    name,
		RawPath: rawPath,
		Path:    outPath,
		Rows:    len(table.Rows),
	}, nil
}

func (u *Usecase) load(path string) (entity.Table, error) {
	f, _, err := u.staging.Open(path)
	if err != nil {
		return entity.Table{}, err
	}
	defer f.Close()

	return LoadTable(f)
}

func (u *Usecase) open(path string) (Download, error) {
	f, info, err := u.staging.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Download{}, pkgerror.NewNotFound(MsgFileNotFound)
		}
		return Download{}, pkgerror.NewIOFailure(err)
	}

	return Download{
		File:    f,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (u *Usecase) accept(ctx context.Context, upload entity.Upload, fallback string) (string, error) {
	slog.DebugContext(ctx, "upload lifecycle", "file", upload.Filename, "stage", entity.StageReceived)

	name, err := validateUpload(upload, fallback)
	if err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "upload lifecycle", "file", name, "stage", entity.StageValidated)
	return name, nil
}

// validateUpload checks the client-supplied file and returns its sanitized
// name. A name that sanitizes to nothing usable, such as one written entirely
// in non-Latin script, is replaced by <fallback>.csv.
func validateUpload(upload entity.Upload, fallback string) (string, error) {
	if upload.Content == nil {
		return "", pkgerror.NewValidation(MsgNoFilePart)
	}
	if upload.Filename == "" {
		return "", pkgerror.NewValidation(MsgNoSelectedFile)
	}
	if !AllowedExtension(upload.Filename) {
		return "", pkgerror.NewValidation(MsgOnlyCSV)
	}

	name := SanitizeFilename(upload.Filename)
	if name == "" || !AllowedExtension(name) {
		name = SanitizeFilename(fallback + ".csv")
	}

	return name, nil
}

func stagingErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewIOFailure(err)
}
