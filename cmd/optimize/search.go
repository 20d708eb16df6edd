package main

import (
	"encoding/csv"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"
)

// search wraps the evaluator for the optimizer: it tracks the best point
// and appends every evaluation to a CSV log.
type search struct {
	params   *ParamVector
	eval     *FitnessEvaluator
	maxEvals int

	file *os.File
	log  *csv.Writer

	count       int
	bestFitness float64
	bestParams  []float64
	start       time.Time
}

func newSearch(params *ParamVector, eval *FitnessEvaluator, logPath string, maxEvals int) (*search, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}
	s := &search{
		params:      params,
		eval:        eval,
		maxEvals:    maxEvals,
		file:        f,
		log:         csv.NewWriter(f),
		bestFitness: math.Inf(1),
		start:       time.Now(),
	}

	header := []string{"eval", "fitness"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := s.log.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// evaluate is the optimizer objective over normalized coordinates.
func (s *search) evaluate(x []float64) float64 {
	// Clamped values are the ones the runs actually use
	values := s.params.Clamp(s.params.Denormalize(x))
	fitness := s.eval.Evaluate(values)
	s.count++

	if fitness < s.bestFitness {
		s.bestFitness = fitness
		s.bestParams = values
	}

	row := make([]string, 0, len(values)+2)
	row = append(row, strconv.Itoa(s.count), strconv.FormatFloat(fitness, 'f', 6, 64))
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	s.log.Write(row)
	s.log.Flush()
	if err := s.log.Error(); err != nil {
		slog.Warn("writing optimize log", "error", err)
	}

	if err := s.eval.LastErr(); err != nil {
		slog.Warn("run failed", "eval", s.count, "error", err)
	}

	elapsed := time.Since(s.start)
	remaining := time.Duration(s.maxEvals-s.count) * (elapsed / time.Duration(s.count))
	slog.Info("eval",
		"n", s.count,
		"of", s.maxEvals,
		"quality", s.eval.LastQuality(),
		"best", -s.bestFitness,
		"elapsed", formatDuration(elapsed),
		"eta", formatDuration(remaining),
	)
	return fitness
}

func (s *search) close() error {
	s.log.Flush()
	return s.file.Close()
}
