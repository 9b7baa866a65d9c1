package convert

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"vidconv/internal/domain/job"
)

const (
	defaultWorkers        = 4
	defaultRetentionDelay = time.Hour
)

// Options tunes the conversion service.
type Options struct {
	// Workers caps the number of pipelines running at once. Submissions
	// beyond the cap wait in status "queued".
	Workers int
	// StageTimeout bounds each external invocation. Zero disables the
	// per-stage deadline.
	StageTimeout time.Duration
	// RetentionDelay is how long finished artifacts are kept before the
	// retention timer deletes them.
	RetentionDelay time.Duration
}

// Service drives submitted jobs through the conversion pipeline and owns
// their retention timers.
type Service struct {
	registry *Registry
	store    ArtifactStore
	prober   Prober
	encoder  Encoder
	logger   *log.Logger

	slots          chan struct{}
	stageTimeout   time.Duration
	retentionDelay time.Duration

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// NewService creates the conversion service with injected ports.
func NewService(store ArtifactStore, prober Prober, encoder Encoder, logger *log.Logger, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.RetentionDelay <= 0 {
		opts.RetentionDelay = defaultRetentionDelay
	}

	return &Service{
		registry:       NewRegistry(),
		store:          store,
		prober:         prober,
		encoder:        encoder,
		logger:         logger,
		slots:          make(chan struct{}, opts.Workers),
		stageTimeout:   opts.StageTimeout,
		retentionDelay: opts.RetentionDelay,
		timers:         make(map[string]*time.Timer),
	}
}

// Submit stores an uploaded payload, registers a queued job and launches
// its pipeline.
func (s *Service) Submit(upload io.Reader) (job.Job, error) {
	created := s.registry.Create()

	inputPath, err := s.store.SaveUpload(created.ID, upload)
	if err != nil {
		s.registry.Delete(created.ID)
		return job.Job{}, fmt.Errorf("save upload: %w", err)
	}

	artifacts, err := s.store.PrepareJob(created.ID, inputPath)
	if err != nil {
		s.registry.Delete(created.ID)
		_ = s.store.RemoveArtifacts(job.Artifacts{InputPath: inputPath})
		return job.Job{}, fmt.Errorf("prepare job dir: %w", err)
	}
	s.registry.SetArtifacts(created.ID, artifacts)

	s.logger.Printf("conversion queued: %s", created.ID)
	snapshot, _ := s.registry.Get(created.ID)
	go s.run(created.ID)
	return snapshot, nil
}

// Snapshot returns the current job state.
func (s *Service) Snapshot(id string) (job.Job, error) {
	record, ok := s.registry.Get(id)
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return record, nil
}

// Download returns the path of the finished primary output.
func (s *Service) Download(id string) (string, error) {
	record, ok := s.registry.Get(id)
	if !ok {
		return "", job.ErrNotFound
	}
	if record.Status != job.StatusDone {
		return "", job.ErrNotReady
	}
	return record.Artifacts.OutputPath, nil
}

// HLSAsset resolves a playlist or segment file inside the job's HLS
// directory. The name is sanitized before resolution.
func (s *Service) HLSAsset(id, name string) (string, error) {
	record, ok := s.registry.Get(id)
	if !ok {
		return "", job.ErrNotFound
	}
	if record.Status != job.StatusDone {
		return "", job.ErrNotReady
	}

	full, err := s.store.ResolveAsset(record.Artifacts.HLSDir, name, "index.m3u8")
	if err != nil {
		return "", job.ErrNotFound
	}
	return full, nil
}

// DASHAsset resolves a manifest or segment file inside the job's DASH
// directory.
func (s *Service) DASHAsset(id, name string) (string, error) {
	record, ok := s.registry.Get(id)
	if !ok {
		return "", job.ErrNotFound
	}
	if record.Status != job.StatusDone {
		return "", job.ErrNotReady
	}

	full, err := s.store.ResolveAsset(record.Artifacts.DASHDir, name, "stream.mpd")
	if err != nil {
		return "", job.ErrNotFound
	}
	return full, nil
}

func (s *Service) run(id string) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Printf("pipeline panic: %s: %v", id, v)
			if s.registry.Fail(id, fmt.Sprintf("internal error: %v", v)) {
				s.scheduleCleanup(id)
			}
		}
	}()

	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	record, ok := s.registry.Get(id)
	if !ok {
		return
	}
	art := record.Artifacts

	s.registry.SetStatus(id, job.StatusProbing)
	ctx, cancel := s.stageContext()
	duration, err := s.prober.Duration(ctx, art.InputPath)
	cancel()
	if err != nil {
		// Probe failure is non-fatal, progress estimation just degrades.
		s.logger.Printf("probe failed, continuing without duration: %s: %v", id, err)
	} else {
		s.registry.SetDuration(id, duration)
	}

	s.registry.SetStatus(id, job.StatusConverting)
	ctx, cancel = s.stageContext()
	err = s.encoder.Transcode(ctx, art.InputPath, art.OutputPath, func(line string) {
		current, ok := s.registry.Get(id)
		if !ok {
			return
		}
		s.registry.SetProgress(id, NextProgress(current.Progress, current.Duration, line))
	})
	cancel()
	if err != nil {
		s.fail(id, "transcode", err)
		return
	}

	s.registry.SetStatus(id, job.StatusPackagingHLS)
	ctx, cancel = s.stageContext()
	err = s.encoder.PackageHLS(ctx, art.OutputPath, art.HLSDir)
	cancel()
	if err != nil {
		s.fail(id, "hls packaging", err)
		return
	}

	s.registry.SetStatus(id, job.StatusPackagingDASH)
	ctx, cancel = s.stageContext()
	err = s.encoder.PackageDASH(ctx, art.OutputPath, art.DASHDir)
	cancel()
	if err != nil {
		s.fail(id, "dash packaging", err)
		return
	}

	s.registry.Finish(id)
	s.logger.Printf("conversion finished: %s", id)
	s.scheduleCleanup(id)
}

func (s *Service) fail(id, stage string, err error) {
	s.logger.Printf("%s failed: %s: %v", stage, id, err)
	if s.registry.Fail(id, fmt.Sprintf("%s failed: %v", stage, err)) {
		s.scheduleCleanup(id)
	}
}

func (s *Service) stageContext() (context.Context, context.CancelFunc) {
	if s.stageTimeout > 0 {
		return context.WithTimeout(context.Background(), s.stageTimeout)
	}
	return context.WithCancel(context.Background())
}
