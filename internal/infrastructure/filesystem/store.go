package filesystem

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"vidconv/internal/domain/job"
)

// Store lays out uploads and per-job output directories under one root.
type Store struct {
	UploadsDir string
	OutputsDir string
}

// NewStore creates the filesystem adapter rooted at storageDir.
func NewStore(storageDir string) *Store {
	return &Store{
		UploadsDir: filepath.Join(storageDir, "uploads"),
		OutputsDir: filepath.Join(storageDir, "outputs"),
	}
}

// EnsureDirs creates the filesystem roots used by the service.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(s.UploadsDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(s.OutputsDir, 0o755)
}

// SaveUpload writes an uploaded payload into the uploads area and returns
// the stored path.
func (s *Store) SaveUpload(id string, upload io.Reader) (string, error) {
	target := filepath.Join(s.UploadsDir, id+".upload")
	dst, err := os.Create(target)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, upload); err != nil {
		_ = dst.Close()
		_ = os.Remove(target)
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(target)
		return "", err
	}
	return target, nil
}

// PrepareJob creates the per-job output directory and returns every
// location the job owns. The HLS/DASH subdirectories are created later by
// their packaging stages.
func (s *Store) PrepareJob(id, inputPath string) (job.Artifacts, error) {
	dir := filepath.Join(s.OutputsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return job.Artifacts{}, err
	}

	return job.Artifacts{
		InputPath:  inputPath,
		Dir:        dir,
		OutputPath: filepath.Join(dir, "output.mp4"),
		HLSDir:     filepath.Join(dir, "hls"),
		DASHDir:    filepath.Join(dir, "dash"),
	}, nil
}

// ResolveAsset resolves a requested manifest or segment name inside dir.
// Any directory component in the request is stripped, so the result can
// never escape the job's own directory.
func (s *Store) ResolveAsset(dir, name, fallback string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = fallback
	}

	safe := path.Base(filepath.ToSlash(name))
	if safe == "." || safe == ".." || safe == "/" {
		return "", errors.New("invalid asset name")
	}

	full := filepath.Join(dir, safe)
	if !isWithinDir(dir, full) {
		return "", errors.New("invalid asset path")
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("invalid asset name")
	}
	return full, nil
}

// RemoveArtifacts deletes everything a job owns. Already-missing files
// are not an error, cleanup may run more than once.
func (s *Store) RemoveArtifacts(artifacts job.Artifacts) error {
	var firstErr error
	if artifacts.InputPath != "" {
		if err := os.Remove(artifacts.InputPath); err != nil && !os.IsNotExist(err) {
			firstErr = err
		}
	}
	if artifacts.Dir != "" {
		if err := os.RemoveAll(artifacts.Dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	sep := string(os.PathSeparator)
	return rel != ".." && !strings.HasPrefix(rel, ".."+sep)
}
