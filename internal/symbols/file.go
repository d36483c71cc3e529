package symbols

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileSource reads symbols from a local file.
//
// Two layouts are accepted: plain text with one symbol per line (blank lines and lines
// starting with # are ignored), or CSV with a header row containing a Symbol column.
type FileSource struct {
	path   string
	column string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, column: "Symbol"}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Symbols(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	if looksLikeCSV(data) {
		return readCSVColumn(bytes.NewReader(data), s.column)
	}

	return readLines(bytes.NewReader(data))
}

func looksLikeCSV(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return strings.Contains(line, ",")
	}

	return false
}

func readLines(r io.Reader) ([]string, error) {
	var symbols []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		symbols = append(symbols, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan symbols file: %w", err)
	}

	return symbols, nil
}

func readCSVColumn(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := columnIndex(header, column)
	if index < 0 {
		return nil, fmt.Errorf("no %q column in csv header", column)
	}

	var symbols []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		if index < len(record) {
			symbols = append(symbols, record[index])
		}
	}

	return symbols, nil
}

func columnIndex(header []string, column string) int {
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			return i
		}
	}

	return -1
}
