package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const stderrTailLines = 8

// Converter wraps ffmpeg/ffprobe invocations with the fixed parameter
// sets the service's clients depend on.
type Converter struct {
	FFmpegBin  string
	FFprobeBin string
}

// NewConverter creates the adapter with the default binary names.
func NewConverter() *Converter {
	return &Converter{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe"}
}

// Duration probes the container duration of inputPath in seconds.
func (c *Converter) Duration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}
	out, err := exec.CommandContext(ctx, c.FFprobeBin, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w", c.FFprobeBin, err)
	}

	value := strings.TrimSpace(string(out))
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("unexpected %s duration output %q", c.FFprobeBin, value)
	}
	return parsed, nil
}

// Transcode normalizes inputPath into a progressive-download MP4, feeding
// every diagnostic line the process prints to onLine while it runs.
func (c *Converter) Transcode(ctx context.Context, inputPath, outputPath string, onLine func(string)) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-profile:v", "main",
		"-level", "4.1",
		"-pix_fmt", "yuv420p",
		"-preset", "medium",
		"-crf", "22",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "48000",
		"-ac", "2",
		"-movflags", "+faststart",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, c.FFmpegBin, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s failed: %w", c.FFmpegBin, err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanDiagnosticLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
		if onLine != nil {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", c.FFmpegBin, err, strings.Join(tail, " | "))
	}
	return nil
}

// PackageHLS stream-copies a finished MP4 into a VOD HLS playlist plus
// numbered segment files.
func (c *Converter) PackageHLS(ctx context.Context, inputPath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-codec", "copy",
		"-start_number", "0",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, "segment_%03d.ts"),
		filepath.Join(outputDir, "index.m3u8"),
	}
	return c.run(ctx, args...)
}

// PackageDASH stream-copies a finished MP4 into a timeline-addressed DASH
// manifest plus segment files.
func (c *Converter) PackageDASH(ctx context.Context, inputPath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-codec", "copy",
		"-seg_duration", "6",
		"-use_timeline", "1",
		"-use_template", "1",
		"-f", "dash",
		filepath.Join(outputDir, "stream.mpd"),
	}
	return c.run(ctx, args...)
}

func (c *Converter) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.FFmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", c.FFmpegBin, err, lastLines(stderr.String(), stderrTailLines))
	}
	return nil
}

// scanDiagnosticLines splits on \n or \r; ffmpeg rewrites its live stats
// line with bare carriage returns.
func scanDiagnosticLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func lastLines(s string, n int) string {
	lines := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}
