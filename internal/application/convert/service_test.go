package convert

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidconv/internal/domain/job"
)

type stubProber struct {
	duration float64
	err      error
}

func (p *stubProber) Duration(_ context.Context, _ string) (float64, error) {
	return p.duration, p.err
}

type stubEncoder struct {
	lines []string
	gate  chan struct{}

	transcodeErr error
	hlsErr       error
	dashErr      error
	panicValue   interface{}

	mu         sync.Mutex
	hlsCalled  bool
	dashCalled bool
}

func (e *stubEncoder) Transcode(_ context.Context, _, _ string, onLine func(string)) error {
	if e.panicValue != nil {
		panic(e.panicValue)
	}
	for _, line := range e.lines {
		onLine(line)
	}
	if e.gate != nil {
		<-e.gate
	}
	return e.transcodeErr
}

func (e *stubEncoder) PackageHLS(_ context.Context, _, _ string) error {
	e.mu.Lock()
	e.hlsCalled = true
	e.mu.Unlock()
	return e.hlsErr
}

func (e *stubEncoder) PackageDASH(_ context.Context, _, _ string) error {
	e.mu.Lock()
	e.dashCalled = true
	e.mu.Unlock()
	return e.dashErr
}

func (e *stubEncoder) packaged() (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hlsCalled, e.dashCalled
}

type stubStore struct {
	removed int32
}

func (s *stubStore) SaveUpload(id string, upload io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, upload)
	return "/tmp/in-" + id, err
}

func (s *stubStore) PrepareJob(id, inputPath string) (job.Artifacts, error) {
	dir := "/tmp/out-" + id
	return job.Artifacts{
		InputPath:  inputPath,
		Dir:        dir,
		OutputPath: filepath.Join(dir, "output.mp4"),
		HLSDir:     filepath.Join(dir, "hls"),
		DASHDir:    filepath.Join(dir, "dash"),
	}, nil
}

func (s *stubStore) ResolveAsset(dir, name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}
	return filepath.Join(dir, name), nil
}

func (s *stubStore) RemoveArtifacts(_ job.Artifacts) error {
	atomic.AddInt32(&s.removed, 1)
	return nil
}

func newTestService(prober Prober, encoder Encoder, opts Options) (*Service, *stubStore) {
	store := &stubStore{}
	logger := log.New(io.Discard, "", 0)
	return NewService(store, prober, encoder, logger, opts), store
}

func submit(t *testing.T, svc *Service) job.Job {
	t.Helper()
	created, err := svc.Submit(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return created
}

func waitTerminal(t *testing.T, svc *Service, id string) job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := svc.Snapshot(id)
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if record.Status.Terminal() {
			return record
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return job.Job{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never held")
}

func TestPipelineSuccess(t *testing.T) {
	encoder := &stubEncoder{lines: []string{"time=00:00:30.00"}}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	if created.Status != job.StatusQueued {
		t.Fatalf("expected submission to return a queued job, got %s", created.Status)
	}

	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusDone {
		t.Fatalf("expected done, got %s (%s)", final.Status, final.Err)
	}
	if final.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", final.Progress)
	}
	if final.Duration != 60 {
		t.Fatalf("expected probed duration 60, got %v", final.Duration)
	}
	if hls, dash := encoder.packaged(); !hls || !dash {
		t.Fatalf("expected both packaging stages to run")
	}
}

func TestTranscodeProgressScenario(t *testing.T) {
	encoder := &stubEncoder{
		lines: []string{"time=00:00:30.00", "time=00:01:00.00"},
		gate:  make(chan struct{}),
	}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	waitFor(t, func() bool {
		record, err := svc.Snapshot(created.ID)
		return err == nil && record.Status == job.StatusConverting && record.Progress == 99
	})

	close(encoder.gate)
	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusDone || final.Progress != 100 {
		t.Fatalf("expected done/100, got %s/%d", final.Status, final.Progress)
	}
}

func TestProbeFailureIsNonFatal(t *testing.T) {
	encoder := &stubEncoder{
		lines: []string{"time=00:00:30.00", "time=00:05:00.00"},
		gate:  make(chan struct{}),
	}
	svc, _ := newTestService(&stubProber{err: errors.New("moov atom not found")}, encoder, Options{})

	created := submit(t, svc)
	waitFor(t, func() bool {
		record, err := svc.Snapshot(created.ID)
		return err == nil && record.Status == job.StatusConverting
	})

	// Without a duration, timestamp lines must not move progress.
	record, err := svc.Snapshot(created.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if record.Progress != 0 {
		t.Fatalf("expected progress to stay 0 without duration, got %d", record.Progress)
	}
	if record.Duration != 0 {
		t.Fatalf("expected unknown duration, got %v", record.Duration)
	}

	close(encoder.gate)
	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusDone || final.Progress != 100 {
		t.Fatalf("expected done/100 despite probe failure, got %s/%d", final.Status, final.Progress)
	}
}

func TestTranscodeFailure(t *testing.T) {
	encoder := &stubEncoder{transcodeErr: errors.New("exit status 1")}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusError {
		t.Fatalf("expected error, got %s", final.Status)
	}
	if !strings.Contains(final.Err, "transcode failed") {
		t.Fatalf("unexpected error message %q", final.Err)
	}
	if hls, dash := encoder.packaged(); hls || dash {
		t.Fatalf("expected packaging stages to be skipped")
	}
}

func TestHLSFailureSkipsDASH(t *testing.T) {
	encoder := &stubEncoder{hlsErr: errors.New("exit status 1")}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusError {
		t.Fatalf("expected error, got %s", final.Status)
	}
	if !strings.Contains(final.Err, "hls packaging failed") {
		t.Fatalf("unexpected error message %q", final.Err)
	}
	if _, dash := encoder.packaged(); dash {
		t.Fatalf("expected dash packaging to be skipped after hls failure")
	}

	if _, err := svc.Download(created.ID); !errors.Is(err, job.ErrNotReady) {
		t.Fatalf("expected download to stay not ready, got %v", err)
	}
	if _, err := svc.HLSAsset(created.ID, ""); !errors.Is(err, job.ErrNotReady) {
		t.Fatalf("expected hls asset to stay not ready, got %v", err)
	}
}

func TestPipelinePanicBecomesJobError(t *testing.T) {
	encoder := &stubEncoder{panicValue: "encoder blew up"}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	final := waitTerminal(t, svc, created.ID)
	if final.Status != job.StatusError {
		t.Fatalf("expected error, got %s", final.Status)
	}
	if !strings.Contains(final.Err, "internal error") {
		t.Fatalf("unexpected error message %q", final.Err)
	}
}

func TestWorkerPoolQueuesSubmissions(t *testing.T) {
	encoder := &stubEncoder{gate: make(chan struct{})}
	svc, _ := newTestService(&stubProber{duration: 60}, encoder, Options{Workers: 1})

	first := submit(t, svc)
	waitFor(t, func() bool {
		record, err := svc.Snapshot(first.ID)
		return err == nil && record.Status == job.StatusConverting
	})

	second := submit(t, svc)
	time.Sleep(20 * time.Millisecond)
	record, err := svc.Snapshot(second.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if record.Status != job.StatusQueued {
		t.Fatalf("expected second job to wait in queued, got %s", record.Status)
	}

	close(encoder.gate)
	if final := waitTerminal(t, svc, first.ID); final.Status != job.StatusDone {
		t.Fatalf("expected first job done, got %s", final.Status)
	}
	if final := waitTerminal(t, svc, second.ID); final.Status != job.StatusDone {
		t.Fatalf("expected second job done, got %s", final.Status)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	encoder := &stubEncoder{}
	svc, store := newTestService(&stubProber{duration: 60}, encoder, Options{})

	created := submit(t, svc)
	waitTerminal(t, svc, created.ID)

	if err := svc.Cleanup(created.ID); err != nil {
		t.Fatalf("first cleanup failed: %v", err)
	}
	if err := svc.Cleanup(created.ID); err != nil {
		t.Fatalf("second cleanup failed: %v", err)
	}

	if _, err := svc.Snapshot(created.ID); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected record to be gone, got %v", err)
	}
	if atomic.LoadInt32(&store.removed) != 1 {
		t.Fatalf("expected artifacts to be removed exactly once, removed %d times", store.removed)
	}
}

func TestRetentionTimerDeletesJob(t *testing.T) {
	encoder := &stubEncoder{}
	svc, store := newTestService(&stubProber{duration: 60}, encoder, Options{RetentionDelay: 10 * time.Millisecond})

	created := submit(t, svc)
	waitTerminal(t, svc, created.ID)

	waitFor(t, func() bool {
		_, err := svc.Snapshot(created.ID)
		return errors.Is(err, job.ErrNotFound)
	})
	waitFor(t, func() bool {
		return atomic.LoadInt32(&store.removed) == 1
	})
}

func TestFailedJobIsAlsoRetained(t *testing.T) {
	encoder := &stubEncoder{transcodeErr: errors.New("exit status 1")}
	svc, store := newTestService(&stubProber{duration: 60}, encoder, Options{RetentionDelay: 10 * time.Millisecond})

	created := submit(t, svc)
	waitTerminal(t, svc, created.ID)

	waitFor(t, func() bool {
		_, err := svc.Snapshot(created.ID)
		return errors.Is(err, job.ErrNotFound)
	})
	waitFor(t, func() bool {
		return atomic.LoadInt32(&store.removed) == 1
	})
}
