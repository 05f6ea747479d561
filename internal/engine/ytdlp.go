package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/vidnotes/internal/domain"
)

// Downloader extracts audio and metadata with yt-dlp.
type Downloader struct {
	binary string
	dir    string
	runner CommandRunner
	stat   func(name string) (os.FileInfo, error)
}

// NewDownloader creates a yt-dlp backed downloader writing into dir.
func NewDownloader(binary, dir string, runner CommandRunner) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Downloader{binary: binary, dir: dir, runner: runner, stat: os.Stat}
}

// AudioPath is the deterministic audio location for a job.
func (d *Downloader) AudioPath(jobID string) string {
	return filepath.Join(d.dir, jobID+".mp3")
}

// Download extracts the best audio stream of url as mp3 at AudioPath(jobID).
func (d *Downloader) Download(ctx context.Context, url, jobID string) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	template := filepath.Join(d.dir, jobID+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"-o", template,
		url,
	}
	if _, err := d.runner.Run(ctx, d.binary, args...); err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	path := d.AudioPath(jobID)
	info, err := d.stat(path)
	if err != nil {
		return "", fmt.Errorf("download audio: expected output missing: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("download audio: %s is empty", path)
	}
	return path, nil
}

type ytdlpInfo struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Channel   string  `json:"channel"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
}

// FetchMetadata reads title, uploader and thumbnail without downloading media.
func (d *Downloader) FetchMetadata(ctx context.Context, url string) (domain.SourceMetadata, error) {
	res, err := d.runner.Run(ctx, d.binary, "-J", "--no-playlist", "--skip-download", url)
	if err != nil {
		return domain.SourceMetadata{}, fmt.Errorf("fetch metadata: %w", err)
	}
	return parseMetadata([]byte(res.Stdout))
}

func parseMetadata(data []byte) (domain.SourceMetadata, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.SourceMetadata{}, fmt.Errorf("parse yt-dlp json: %w", err)
	}

	meta := domain.SourceMetadata{
		Title:     strings.TrimSpace(info.Title),
		Channel:   strings.TrimSpace(info.Uploader),
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
	}
	if meta.Channel == "" {
		meta.Channel = strings.TrimSpace(info.Channel)
	}
	if meta.Title == "" {
		meta.Title = domain.UnknownTitle
	}
	if meta.Channel == "" {
		meta.Channel = domain.UnknownChannel
	}
	return meta, nil
}
