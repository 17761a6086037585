// Package ffmpegadapter wraps the external ffmpeg tool to repackage an
// assembled stream into its target container.
package ffmpegadapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
)

const (
	audioCodec   = "aac"
	audioBitrate = "128k"

	extAudio = ".m4a"
	extMP4   = ".mp4"
)

type Converter struct {
	ffmpegPath string
	log        *slog.Logger
}

func NewConverter(cfg *config.ConvertConfig, log *slog.Logger) *Converter {
	return &Converter{
		ffmpegPath: cfg.FFmpegPath,
		log:        log.With(slog.String("item", "Converter")),
	}
}

// Convert transcodes inputPath into the target format and returns the new
// path. The input file is removed on success; a partial output is removed on
// failure. FormatRawContainer is a passthrough.
func (c *Converter) Convert(ctx context.Context, inputPath string, format entity.OutputFormat) (string, error) {
	if format == entity.FormatRawContainer {
		return inputPath, nil
	}

	outputPath := OutputPath(inputPath, format)

	args, err := BuildArgs(inputPath, outputPath, format)
	if err != nil {
		return "", err
	}

	c.log.Info("Converting", slog.String("input", inputPath), slog.String("format", string(format)))

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)

		return "", fmt.Errorf("%w: %v: %s", common.ErrConversion, err, tail(out))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)

		return "", fmt.Errorf("%w: tool produced no output", common.ErrConversion)
	}

	if err := os.Remove(inputPath); err != nil {
		c.log.Warn("Cannot remove input file", slog.String("path", inputPath), slog.Any("error", err))
	}

	return outputPath, nil
}

// BuildArgs returns the ffmpeg argument list for the target format.
func BuildArgs(inputPath, outputPath string, format entity.OutputFormat) ([]string, error) {
	switch format {
	case entity.FormatAudioExtract:
		return []string{
			"-y",
			"-i", inputPath,
			"-vn",
			"-c:a", audioCodec,
			"-b:a", audioBitrate,
			outputPath,
		}, nil
	case entity.FormatStreamingMP4:
		return []string{
			"-y",
			"-i", inputPath,
			"-c", "copy",
			"-movflags", "+faststart",
			outputPath,
		}, nil
	}

	return nil, fmt.Errorf("%w: unsupported format %q", common.ErrConversion, format)
}

// OutputPath derives the converted file path next to the input.
func OutputPath(inputPath string, format entity.OutputFormat) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))

	if format == entity.FormatAudioExtract {
		return base + extAudio
	}

	return base + extMP4
}

// tail keeps the last ffmpeg output lines, enough for the error message.
func tail(out []byte) string {
	const maxLen = 400

	s := strings.TrimSpace(string(out))
	if len(s) > maxLen {
		s = s[len(s)-maxLen:]
	}

	return s
}
