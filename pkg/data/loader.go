package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/logger"
)

// Sample represents a single labeled record.
type Sample struct {
	X []float64
	Y int
}

// CSVOptions controls how a flat file is parsed.
type CSVOptions struct {
	// LabelColumn is the index of the label; -1 selects the last column.
	LabelColumn int
}

// LoadStats summarizes a load.
type LoadStats struct {
	Rows      int
	Skipped   int
	HasHeader bool
}

// Stream delivers parsed samples from a CSV file over a channel.
type Stream struct {
	Header  []string // feature names from the header row, nil when the file has none
	Samples <-chan Sample

	done    chan struct{}
	skipped int // written by the producer, safe to read once Samples is closed
}

// Stop ends the stream early.
func (s *Stream) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Skipped returns the number of malformed rows. Only valid after Samples is drained.
func (s *Stream) Skipped() int { return s.skipped }

// StreamCSV opens path and streams its rows as Samples. The first row is treated as a header
// when none of its feature cells parses as a number; a first row mixing numbers and text is
// treated as data (and skipped as malformed). The row width is fixed by the first row;
// rows of another width, with unparsable cells or with a label other than 0/1 are skipped.
func StreamCSV(path string, opts CSVOptions) (*Stream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		file.Close()
		return nil, ErrEmpty
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("data: reading first row: %w", err)
	}

	width := len(first)
	labelCol := opts.LabelColumn
	if labelCol < 0 {
		labelCol = width - 1
	}
	if labelCol >= width || width < 2 {
		file.Close()
		return nil, fmt.Errorf("data: label column %d out of range for %d columns", labelCol, width)
	}

	log := logger.Named("loader")
	out := make(chan Sample, 256)
	s := &Stream{Samples: out, done: make(chan struct{})}

	var pending []string
	textCells := countText(first, labelCol)
	if textCells > 0 && textCells < width-1 {
		log.Warn("first row mixes numeric and text cells, reading it as data",
			zap.String("path", path), zap.Int("text_cells", textCells))
	}
	if textCells == width-1 {
		s.Header = make([]string, 0, width-1)
		for i, name := range first {
			if i != labelCol {
				s.Header = append(s.Header, strings.TrimSpace(name))
			}
		}
	} else {
		pending = append([]string(nil), first...)
	}

	go func() {
		defer file.Close()
		defer close(out)

		line := 1
		emit := func(rec []string) bool {
			sample, err := parseRecord(rec, width, labelCol)
			if err != nil {
				s.skipped++
				log.Warn("skipping record", zap.Int("line", line), zap.Error(err))
				return true
			}
			select {
			case out <- sample:
				return true
			case <-s.done:
				return false
			}
		}

		if pending != nil && !emit(pending) {
			return
		}
		for {
			line++
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				s.skipped++
				log.Warn("skipping unreadable record", zap.Int("line", line), zap.Error(err))
				continue
			}
			if !emit(rec) {
				return
			}
		}
	}()
	return s, nil
}

// LoadCSV reads the whole file into a Dataset.
func LoadCSV(path string, opts CSVOptions) (*Dataset, LoadStats, error) {
	s, err := StreamCSV(path, opts)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var X [][]float64
	var y []int
	for sample := range s.Samples {
		X = append(X, sample.X)
		y = append(y, sample.Y)
	}

	stats := LoadStats{Rows: len(y), Skipped: s.Skipped(), HasHeader: s.Header != nil}
	if len(y) == 0 {
		return nil, stats, ErrEmpty
	}

	names := s.Header
	if names == nil {
		names = DefaultFeatureNames(len(X[0]))
	}
	ds, err := New(Schema{FeatureNames: names}, X, y)
	if err != nil {
		return nil, stats, err
	}

	logger.Info("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("features", ds.Schema.Width()))
	return ds, stats, nil
}

var errLabel = errors.New("label must be 0 or 1")

func parseRecord(rec []string, width, labelCol int) (Sample, error) {
	if len(rec) != width {
		return Sample{}, fmt.Errorf("expected %d columns, got %d", width, len(rec))
	}
	x := make([]float64, 0, width-1)
	var y int
	for i, cell := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("column %d: %w", i, err)
		}
		if i == labelCol {
			switch v {
			case 0:
				y = Ham
			case 1:
				y = Spam
			default:
				return Sample{}, errLabel
			}
			continue
		}
		x = append(x, v)
	}
	return Sample{X: x, Y: y}, nil
}

// countText counts the feature cells of rec that do not parse as numbers.
func countText(rec []string, labelCol int) int {
	n := 0
	for i, cell := range rec {
		if i == labelCol {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			n++
		}
	}
	return n
}
