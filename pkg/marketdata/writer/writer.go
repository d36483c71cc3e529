package writer

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// Columns is the column order of every output file.
var Columns = []string{"date", "open", "high", "low", "close", "adj_close", "volume"}

// PriceWriter defines the interface for writing one symbol/year file.
//
// Rows go to a temporary file next to the output path. Only Finalize moves it into place,
// so an interrupted or failed write never leaves a partial output file behind.
type PriceWriter interface {
	// Initialize creates the temporary file and writes any header.
	Initialize() error
	// Write appends a single row.
	Write(row types.PriceRow) error
	// Finalize flushes the rows and moves the file to its output path.
	// It fails if the output path already exists.
	Finalize() (outputPath string, err error)
	// Close releases resources and removes the temporary file if Finalize did not succeed.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}

// Factory creates a writer for one output path.
type Factory func(outputPath string) PriceWriter

// tempPath returns a hidden, unique sibling of outputPath.
func tempPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)

	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
}

// commit publishes tmp at outputPath without replacing an existing file.
// The hard link fails with fs.ErrExist when the target is already there, so two writers
// racing for the same path cannot both succeed.
func commit(tmp string, outputPath string) error {
	if err := os.Link(tmp, outputPath); err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return errors.Newf(errors.ErrCodeFileExists, "refusing to overwrite existing file %s", outputPath)
		}

		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to move %s into place", outputPath)
	}

	// the output is already published, a leftover hidden temp file does not affect resume
	_ = os.Remove(tmp)

	return nil
}
