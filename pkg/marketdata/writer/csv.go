package writer

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// CSVWriter writes rows as comma separated text with a header row.
type CSVWriter struct {
	outputPath string
	tmpPath    string
	file       *os.File
	csv        *csv.Writer
	finalized  bool
}

// NewCSVWriter creates a CSVWriter for outputPath.
func NewCSVWriter(outputPath string) PriceWriter {
	return &CSVWriter{
		outputPath: outputPath,
	}
}

// Initialize opens the temporary file and writes the header.
func (w *CSVWriter) Initialize() error {
	w.tmpPath = tempPath(w.outputPath)

	file, err := os.OpenFile(w.tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create temporary file", err)
	}

	w.file = file
	w.csv = csv.NewWriter(file)

	if err := w.csv.Write(Columns); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write header", err)
	}

	return nil
}

// Write appends one row.
func (w *CSVWriter) Write(row types.PriceRow) error {
	if w.csv == nil {
		return errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	if err := w.csv.Write(record(row)); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write row", err)
	}

	return nil
}

// Finalize flushes, syncs and moves the file into place.
func (w *CSVWriter) Finalize() (string, error) {
	if w.file == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to flush rows", err)
	}

	if err := w.file.Sync(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to sync file", err)
	}

	err := w.file.Close()
	w.file = nil
	w.csv = nil

	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close file", err)
	}

	if err := commit(w.tmpPath, w.outputPath); err != nil {
		return "", err
	}

	w.finalized = true

	return w.outputPath, nil
}

// Close removes the temporary file unless Finalize succeeded.
func (w *CSVWriter) Close() error {
	var closeErr error

	if w.file != nil {
		closeErr = w.file.Close()
		w.file = nil
		w.csv = nil
	}

	if !w.finalized && w.tmpPath != "" {
		if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) && closeErr == nil {
			closeErr = err
		}
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close csv writer: %w", closeErr)
	}

	return nil
}

// GetOutputPath returns the configured output file path.
func (w *CSVWriter) GetOutputPath() string {
	return w.outputPath
}

func record(row types.PriceRow) []string {
	return []string{
		row.Day(),
		row.Open.String(),
		row.High.String(),
		row.Low.String(),
		row.Close.String(),
		row.AdjClose.String(),
		row.Volume.String(),
	}
}
