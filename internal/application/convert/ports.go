package convert

import (
	"context"
	"io"

	"vidconv/internal/domain/job"
)

// Prober is an application port for container duration lookup.
type Prober interface {
	Duration(ctx context.Context, inputPath string) (float64, error)
}

// Encoder is an application port for the external media processor.
// Transcode feeds each diagnostic line it reads to onLine while the
// process runs.
type Encoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, onLine func(string)) error
	PackageHLS(ctx context.Context, inputPath, outputDir string) error
	PackageDASH(ctx context.Context, inputPath, outputDir string) error
}

// ArtifactStore is an application port for per-job filesystem layout.
type ArtifactStore interface {
	SaveUpload(id string, upload io.Reader) (string, error)
	PrepareJob(id, inputPath string) (job.Artifacts, error)
	ResolveAsset(dir, name, fallback string) (string, error)
	RemoveArtifacts(artifacts job.Artifacts) error
}
