package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	filePrefix           = "log_"
	fileExt              = ".log"
	dayLayout            = "2006-01-02"
	defaultRetentionDays = 7
	defaultMaxSizeMB     = 100
)

// DailyFile is a zapcore.WriteSyncer writing to <dir>/log_<YYYY-MM-DD>.log.
// It switches to a new file at local midnight and removes files older than the retention.
// Write never reports an error: failures are counted and dropped.
type DailyFile struct {
	mu        sync.Mutex
	dir       string
	retention int
	maxSizeMB int
	now       func() time.Time

	day      string
	current  *lumberjack.Logger
	failures int64
}

// NewDailyFile creates the log directory and returns a sink for it.
func NewDailyFile(dir string, retentionDays int, maxSizeMB int) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}

	return &DailyFile{
		dir:       dir,
		retention: retentionDays,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
	}, nil
}

// Write implements io.Writer.
func (f *DailyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rollIfNeeded()

	if _, err := f.current.Write(p); err != nil {
		f.failures++
	}

	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. lumberjack writes straight to the file, nothing is buffered.
func (f *DailyFile) Sync() error {
	return nil
}

// Close closes the current file. A later Write reopens it.
func (f *DailyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil
	}

	err := f.current.Close()
	f.current = nil
	f.day = ""

	return err
}

// Filename returns the path of the file for the current day.
func (f *DailyFile) Filename() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pathFor(f.now().Format(dayLayout))
}

// Failures returns how many writes were dropped.
func (f *DailyFile) Failures() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failures
}

func (f *DailyFile) pathFor(day string) string {
	return filepath.Join(f.dir, filePrefix+day+fileExt)
}

func (f *DailyFile) rollIfNeeded() {
	day := f.now().Format(dayLayout)
	if f.current != nil && day == f.day {
		return
	}

	if f.current != nil {
		if err := f.current.Close(); err != nil {
			f.failures++
		}
	}

	f.day = day
	//nolint:exhaustruct // third-party struct with many optional fields
	f.current = &lumberjack.Logger{
		Filename:  f.pathFor(day),
		MaxSize:   f.maxSizeMB,
		LocalTime: true,
	}

	f.prune()
}

// prune removes day files, and their size-split backups, older than the retention window.
func (f *DailyFile) prune() {
	matches, err := filepath.Glob(filepath.Join(f.dir, filePrefix+"*"+fileExt))
	if err != nil {
		return
	}

	today, err := time.ParseInLocation(dayLayout, f.day, time.Local)
	if err != nil {
		return
	}

	cutoff := today.AddDate(0, 0, -f.retention)

	for _, match := range matches {
		name := strings.TrimPrefix(filepath.Base(match), filePrefix)
		if len(name) < len(dayLayout) {
			continue
		}

		day, err := time.ParseInLocation(dayLayout, name[:len(dayLayout)], time.Local)
		if err != nil {
			continue
		}

		if day.Before(cutoff) {
			_ = os.Remove(match)
		}
	}
}
