package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pipeline/staging"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
)

type testStore struct {
	mu    sync.RWMutex
	tasks map[string]entity.Task
	err   error
}

func newTestStore() *testStore {
	return &testStore{tasks: make(map[string]entity.Task)}
}

func (s *testStore) Save(ctx context.Context, task entity.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *testStore) Find(ctx context.Context, id string) (entity.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return entity.Task{}, s.err
	}
	task, ok := s.tasks[id]
	if !ok {
		return entity.Task{}, pkgerror.ErrNotFound
	}
	return task, nil
}

type testID struct {
	mu sync.Mutex
	n  int
}

func (t *testID) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("id-%d", t.n)
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type fixture struct {
	uc    *Usecase
	store *testStore
	area  *staging.Area
	clock *fixedClock
}

func newFixture(t *testing.T, single bool, ttl time.Duration) fixture {
	t.Helper()

	root := t.TempDir()
	processed := filepath.Join(root, "processed")
	if single {
		processed = ""
	}
	area, err := staging.New(filepath.Join(root, "uploads"), processed)
	if err != nil {
		t.Fatalf("staging.New: %v", err)
	}

	store := newTestStore()
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	uc := New(Dependency{
		Store:   store,
		Staging: area,
		Clock:   clockFunc(func() time.Time { return clock.now }),
		ID:      &testID{},
		TTL:     ttl,
	})

	return fixture{uc: uc, store: store, area: area, clock: clock}
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

const sample = "name,amount\nalice,1\nbob,2\n"

func upload(name, body string) entity.Upload {
	return entity.Upload{Filename: name, Content: strings.NewReader(body)}
}

func assertStatus(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pkgerror.Error, got %T (%v)", err, err)
	}
	if perr.StatusCode() != status {
		t.Fatalf("status = %d, want %d (%s)", perr.StatusCode(), status, perr.Msg())
	}
	if msg != "" && perr.Msg() != msg {
		t.Fatalf("msg = %q, want %q", perr.Msg(), msg)
	}
}

func readAll(t *testing.T, dl Download) string {
	t.Helper()
	defer dl.File.Close()
	b, err := io.ReadAll(dl.File)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	return string(b)
}

func TestSubmitThenDownloadRoundTrips(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	res, err := f.uc.Submit(ctx, upload("Report 2024.csv", sample))
	if err != nil {
		t.Fatalf("Submit() err = %v", err)
	}
	if res.TaskID != "id-1" {
		t.Fatalf("Submit() task id = %q", res.TaskID)
	}

	task := f.store.tasks["id-1"]
	wantPath := filepath.Join(f.area.ProcessedDir(), "id-1", "processed_Report_2024.csv")
	if task.Path != wantPath {
		t.Fatalf("task path = %q, want %q", task.Path, wantPath)
	}
	if !task.ExpiresAt.IsZero() {
		t.Fatalf("expected no expiry, got %v", task.ExpiresAt)
	}
	if _, err := os.Stat(filepath.Join(f.area.UploadsDir(), "Report_2024.csv")); err != nil {
		t.Fatalf("raw upload not staged: %v", err)
	}

	dl, err := f.uc.Download(ctx, res.TaskID)
	if err != nil {
		t.Fatalf("Download() err = %v", err)
	}
	if dl.Name != "processed_Report_2024.csv" {
		t.Fatalf("download name = %q", dl.Name)
	}
	if got := readAll(t, dl); got != sample {
		t.Fatalf("download body = %q, want %q", got, sample)
	}
}

func TestSubmitSameNameKeepsTasksApart(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	first, err := f.uc.Submit(ctx, upload("data.csv", "a\n1\n"))
	if err != nil {
		t.Fatalf("Submit() first err = %v", err)
	}
	second, err := f.uc.Submit(ctx, upload("data.csv", "a\n2\n"))
	if err != nil {
		t.Fatalf("Submit() second err = %v", err)
	}

	dl1, err := f.uc.Download(ctx, first.TaskID)
	if err != nil {
		t.Fatalf("Download() first err = %v", err)
	}
	if got := readAll(t, dl1); got != "a\n1\n" {
		t.Fatalf("first download = %q", got)
	}

	dl2, err := f.uc.Download(ctx, second.TaskID)
	if err != nil {
		t.Fatalf("Download() second err = %v", err)
	}
	if got := readAll(t, dl2); got != "a\n2\n" {
		t.Fatalf("second download = %q", got)
	}
}

func TestSubmitSetsExpiryFromTTL(t *testing.T) {
	f := newFixture(t, false, time.Hour)
	ctx := context.Background()

	res, err := f.uc.Submit(ctx, upload("a.csv", sample))
	if err != nil {
		t.Fatalf("Submit() err = %v", err)
	}

	task := f.store.tasks[res.TaskID]
	if want := f.clock.now.Add(time.Hour); !task.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", task.ExpiresAt, want)
	}

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	_, err = f.uc.Download(ctx, res.TaskID)
	assertStatus(t, err, http.StatusNotFound, MsgTaskNotFound)
}

func TestValidation(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	cases := []struct {
		name   string
		upload entity.Upload
		msg    string
	}{
		{"no file part", entity.Upload{Filename: "a.csv"}, MsgNoFilePart},
		{"empty filename", upload("", sample), MsgNoSelectedFile},
		{"txt extension", upload("data.txt", sample), MsgOnlyCSV},
		{"no extension", upload("csv", sample), MsgOnlyCSV},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Submit(ctx, tc.upload)
			assertStatus(t, err, http.StatusBadRequest, tc.msg)
		})
	}

	if entries, _ := os.ReadDir(f.area.UploadsDir()); len(entries) != 0 {
		t.Fatalf("expected nothing staged, got %d entries", len(entries))
	}
}

func TestSubmitFallsBackToTaskIDName(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
	}{
		{name: "non latin name", filename: "数据.csv"},
		{name: "dot only", filename: ".csv"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false, 0)
			ctx := context.Background()

			res, err := f.uc.Submit(ctx, upload(tc.filename, sample))
			if err != nil {
				t.Fatalf("Submit() err = %v", err)
			}

			wantPath := filepath.Join(f.area.ProcessedDir(), "id-1", "processed_id-1.csv")
			if got := f.store.tasks[res.TaskID].Path; got != wantPath {
				t.Fatalf("task path = %q, want %q", got, wantPath)
			}
			if _, err := os.Stat(filepath.Join(f.area.UploadsDir(), "id-1.csv")); err != nil {
				t.Fatalf("raw upload not staged: %v", err)
			}

			dl, err := f.uc.Download(ctx, res.TaskID)
			if err != nil {
				t.Fatalf("Download() err = %v", err)
			}
			if got := readAll(t, dl); got != sample {
				t.Fatalf("download body = %q, want %q", got, sample)
			}
		})
	}
}

func TestConvertFallsBackToGeneratedName(t *testing.T) {
	f := newFixture(t, true, 0)

	dl, err := f.uc.Convert(context.Background(), upload("数据.csv", sample))
	if err != nil {
		t.Fatalf("Convert() err = %v", err)
	}
	if dl.Name != "processed_id-1.csv" {
		t.Fatalf("download name = %q", dl.Name)
	}
	if got := readAll(t, dl); got != sample {
		t.Fatalf("body = %q", got)
	}
}

func TestSubmitPadsShortRecords(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	res, err := f.uc.Submit(ctx, upload("short.csv", "a,b,c\n1,2,3\n4,5\n"))
	if err != nil {
		t.Fatalf("Submit() err = %v", err)
	}

	dl, err := f.uc.Download(ctx, res.TaskID)
	if err != nil {
		t.Fatalf("Download() err = %v", err)
	}
	if got, want := readAll(t, dl), "a,b,c\n1,2,3\n4,5,\n"; got != want {
		t.Fatalf("download body = %q, want %q", got, want)
	}
}

func TestUppercaseExtensionAccepted(t *testing.T) {
	f := newFixture(t, false, 0)
	if _, err := f.uc.Submit(context.Background(), upload("DATA.CSV", sample)); err != nil {
		t.Fatalf("Submit() err = %v", err)
	}
}

func TestDownloadErrors(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	_, err := f.uc.Download(ctx, "missing")
	assertStatus(t, err, http.StatusNotFound, MsgTaskNotFound)

	_, err = f.uc.Download(ctx, "")
	assertStatus(t, err, http.StatusNotFound, MsgTaskNotFound)

	res, err := f.uc.Submit(ctx, upload("a.csv", sample))
	if err != nil {
		t.Fatalf("Submit() err = %v", err)
	}
	if err := os.Remove(f.store.tasks[res.TaskID].Path); err != nil {
		t.Fatalf("remove processed file: %v", err)
	}

	_, err = f.uc.Download(ctx, res.TaskID)
	assertStatus(t, err, http.StatusNotFound, MsgFileNotFound)

	f.store.err = errors.New("store unavailable")
	_, err = f.uc.Download(ctx, res.TaskID)
	assertStatus(t, err, http.StatusInternalServerError, "store unavailable")
}

func TestSubmitFailures(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	_, err := f.uc.Submit(ctx, upload("empty.csv", ""))
	assertStatus(t, err, http.StatusInternalServerError, ErrEmptyTable.Error())

	_, err = f.uc.Submit(ctx, upload("ragged.csv", "a,b\n1,2,3\n"))
	assertStatus(t, err, http.StatusInternalServerError, "")

	f.store.err = errors.New("redis down")
	_, err = f.uc.Submit(ctx, upload("ok.csv", sample))
	assertStatus(t, err, http.StatusInternalServerError, "save task: redis down")
}

func TestSubmitTransformError(t *testing.T) {
	f := newFixture(t, false, 0)
	f.uc.transformer = TransformFunc(func(ctx context.Context, table entity.Table) (entity.Table, error) {
		return entity.Table{}, errors.New("bad column")
	})

	_, err := f.uc.Submit(context.Background(), upload("a.csv", sample))
	assertStatus(t, err, http.StatusInternalServerError, "transform: bad column")
}

func TestSubmitMissingDependency(t *testing.T) {
	uc := New(Dependency{})
	_, err := uc.Submit(context.Background(), upload("a.csv", sample))
	assertStatus(t, err, http.StatusInternalServerError, "")
}

func TestConvertWritesNextToUpload(t *testing.T) {
	f := newFixture(t, true, 0)

	dl, err := f.uc.Convert(context.Background(), upload("../../etc/passwd.csv", sample))
	if err != nil {
		t.Fatalf("Convert() err = %v", err)
	}
	if dl.Name != "processed_etc_passwd.csv" {
		t.Fatalf("download name = %q", dl.Name)
	}
	if got := readAll(t, dl); got != sample {
		t.Fatalf("body = %q", got)
	}

	for _, name := range []string{"etc_passwd.csv", "processed_etc_passwd.csv"} {
		if _, err := os.Stat(filepath.Join(f.area.UploadsDir(), name)); err != nil {
			t.Fatalf("expected %s in uploads dir: %v", name, err)
		}
	}
}

func TestConvertValidation(t *testing.T) {
	f := newFixture(t, true, 0)
	_, err := f.uc.Convert(context.Background(), upload("notes.txt", sample))
	assertStatus(t, err, http.StatusBadRequest, MsgOnlyCSV)
}

func TestConvertPassesThroughTypedReadErrors(t *testing.T) {
	f := newFixture(t, true, 0)
	tooLarge := pkgerror.NewTooLarge(MsgTooLarge)

	_, err := f.uc.Convert(context.Background(), entity.Upload{
		Filename: "a.csv",
		Content:  io.MultiReader(strings.NewReader("a,b\n"), errReader{err: tooLarge}),
	})
	assertStatus(t, err, http.StatusBadRequest, MsgTooLarge)
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestSubmitUniqueIDsUnderConcurrency(t *testing.T) {
	f := newFixture(t, false, 0)
	ctx := context.Background()

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.uc.Submit(ctx, upload(fmt.Sprintf("f%d.csv", i%3), sample))
			if err != nil {
				t.Errorf("Submit() err = %v", err)
				return
			}
			ids <- res.TaskID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate task id %q", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d tasks, got %d", n, len(seen))
	}
}
