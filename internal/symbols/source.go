// Package symbols supplies the ordered list of ticker symbols a run processes.
package symbols

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// Source supplies symbols in the order they should be processed.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	Symbols(ctx context.Context) ([]string, error)
}

// StaticSource returns a fixed list.
type StaticSource struct {
	symbols []string
}

// NewStaticSource creates a source over an in-memory list.
func NewStaticSource(symbols ...string) *StaticSource {
	return &StaticSource{symbols: symbols}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Symbols(_ context.Context) ([]string, error) {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)

	return out, nil
}

// Load reads every source in order and returns the normalized union.
// A failing source or an empty result is a configuration error.
func Load(ctx context.Context, log *logger.Logger, sources ...Source) ([]string, error) {
	var all []string

	for _, source := range sources {
		symbols, err := source.Symbols(ctx)
		if err != nil {
			log.Error("Error fetching symbols", zap.String("source", source.Name()), zap.Error(err))

			return nil, errors.Wrapf(errors.ErrCodeSymbolSourceFailed, err, "failed to load symbols from %s", source.Name())
		}

		log.Info("Fetched symbols", zap.String("source", source.Name()), zap.Int("count", len(symbols)))
		all = append(all, symbols...)
	}

	normalized := Normalize(all)
	if len(normalized) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySymbolList, "symbol list is empty")
	}

	return normalized, nil
}

// Normalize trims symbols and drops blanks and duplicates, keeping first-seen order.
func Normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))

	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		if _, ok := seen[symbol]; ok {
			continue
		}

		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}

	return out
}
