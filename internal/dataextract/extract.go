// Package dataextract converts labelled CSV tables into classification
// datasets with one-hot outputs.
package dataextract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"cgpde/internal/dataset"
)

// Options selects the label and feature columns of a CSV table.
// Names take precedence over indexes and require HasHeader.
type Options struct {
	HasHeader          bool
	LabelColumnName    string
	LabelColumnIndex   int
	FeatureColumnNames []string
	// FeatureColumnIndexes defaults to every column except the label.
	FeatureColumnIndexes []int
	// Classes fixes the output order. Labels outside it are rejected.
	// When empty, the distinct labels are used in sorted order.
	Classes []string
	// Normalize is applied per feature column: none, minmax or zscore.
	Normalize string
}

// Result is the extracted dataset and the label of each output column.
type Result struct {
	Data    *dataset.Dataset
	Classes []string
	// Features names each input column, from the header when present.
	Features []string
}

// ExtractClassificationCSV reads a labelled table and one-hot encodes its
// label column.
func ExtractClassificationCSV(in io.Reader, opts Options) (Result, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	labelIdx := opts.LabelColumnIndex
	featureIdx := append([]int(nil), opts.FeatureColumnIndexes...)
	row := 0
	var header []string
	if opts.HasHeader {
		record, err := reader.Read()
		if err == io.EOF {
			return Result{}, errors.New("csv has no rows")
		}
		if err != nil {
			return Result{}, fmt.Errorf("read header: %w", err)
		}
		row++
		header = record
		if strings.TrimSpace(opts.LabelColumnName) != "" {
			idx, err := columnIndexByName(header, opts.LabelColumnName)
			if err != nil {
				return Result{}, err
			}
			labelIdx = idx
		}
		if len(opts.FeatureColumnNames) > 0 {
			featureIdx = make([]int, 0, len(opts.FeatureColumnNames))
			for _, name := range opts.FeatureColumnNames {
				idx, err := columnIndexByName(header, name)
				if err != nil {
					return Result{}, err
				}
				featureIdx = append(featureIdx, idx)
			}
		}
	} else if opts.LabelColumnName != "" || len(opts.FeatureColumnNames) > 0 {
		return Result{}, errors.New("column names require a header row")
	}
	if labelIdx < 0 {
		return Result{}, fmt.Errorf("label column index must be >= 0, got %d", labelIdx)
	}
	if len(featureIdx) == 0 && len(header) > 0 {
		featureIdx = defaultFeatureIndexes(len(header), labelIdx)
	}

	var (
		inputs [][]float64
		labels []string
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++
		if blankRecord(record) {
			continue
		}
		if labelIdx >= len(record) {
			return Result{}, fmt.Errorf("row %d missing label column index %d", row, labelIdx)
		}
		if len(featureIdx) == 0 {
			featureIdx = defaultFeatureIndexes(len(record), labelIdx)
		}
		if len(featureIdx) == 0 {
			return Result{}, fmt.Errorf("row %d has no feature columns", row)
		}
		features := make([]float64, 0, len(featureIdx))
		for _, idx := range featureIdx {
			value, err := parseFloatField(record, idx, row)
			if err != nil {
				return Result{}, err
			}
			features = append(features, value)
		}
		inputs = append(inputs, features)
		labels = append(labels, strings.TrimSpace(record[labelIdx]))
	}
	if len(inputs) == 0 {
		return Result{}, errors.New("csv has no samples")
	}

	classes := append([]string(nil), opts.Classes...)
	if len(classes) == 0 {
		classes = distinctLabels(labels)
	}
	if len(classes) < 2 {
		return Result{}, fmt.Errorf("classification requires at least 2 classes, got %d", len(classes))
	}
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, dup := classIdx[c]; dup {
			return Result{}, fmt.Errorf("duplicate class: %s", c)
		}
		classIdx[c] = i
	}
	outputs := make([][]float64, len(labels))
	for i, label := range labels {
		idx, ok := classIdx[label]
		if !ok {
			return Result{}, fmt.Errorf("sample %d has unknown class %q", i, label)
		}
		outputs[i] = make([]float64, len(classes))
		outputs[i][idx] = 1
	}

	if err := normalizeColumns(inputs, opts.Normalize); err != nil {
		return Result{}, err
	}
	data, err := dataset.New(inputs, outputs)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: data, Classes: classes, Features: featureHeader(header, featureIdx)}, nil
}

// ExtractClassificationFile reads path and writes the dataset to out in the
// dataset text format.
func ExtractClassificationFile(path, out string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	res, err := ExtractClassificationCSV(f, opts)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", path, err)
	}
	if err := res.Data.SaveFile(out); err != nil {
		return Result{}, err
	}
	return res, nil
}

// distinctLabels orders labels numerically when all parse as numbers,
// lexically otherwise.
func distinctLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	numeric := true
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if _, err := strconv.ParseFloat(l, 64); err != nil {
			numeric = false
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if numeric {
			a, _ := strconv.ParseFloat(out[i], 64)
			b, _ := strconv.ParseFloat(out[j], 64)
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

func parseFloatField(record []string, idx, row int) (float64, error) {
	if idx < 0 || idx >= len(record) {
		return 0, fmt.Errorf("row %d missing feature column index %d", row, idx)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse feature row %d column %d: %w", row, idx, err)
	}
	return value, nil
}

func featureHeader(header []string, indexes []int) []string {
	out := make([]string, 0, len(indexes))
	for i, idx := range indexes {
		if idx >= 0 && idx < len(header) && strings.TrimSpace(header[idx]) != "" {
			out = append(out, strings.TrimSpace(header[idx]))
			continue
		}
		out = append(out, fmt.Sprintf("feature%d", i))
	}
	return out
}

func defaultFeatureIndexes(recordLen, labelIdx int) []int {
	out := make([]int, 0, recordLen)
	for idx := 0; idx < recordLen; idx++ {
		if idx != labelIdx {
			out = append(out, idx)
		}
	}
	return out
}

func columnIndexByName(header []string, name string) (int, error) {
	want := strings.TrimSpace(strings.ToLower(name))
	for i, field := range header {
		if strings.ToLower(strings.TrimSpace(field)) == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("csv column not found: %s", name)
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func normalizeColumns(rows [][]float64, mode string) error {
	var scale func([]float64)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return nil
	case "minmax":
		scale = minMax
	case "zscore":
		scale = zScore
	default:
		return fmt.Errorf("unsupported normalization mode: %s", mode)
	}
	column := make([]float64, len(rows))
	for c := range rows[0] {
		for r := range rows {
			column[r] = rows[r][c]
		}
		scale(column)
		for r := range rows {
			rows[r][c] = column[r]
		}
	}
	return nil
}

// minMax maps values onto [0, 1]. Constant columns become 0.
func minMax(values []float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i := range values {
		if span == 0 {
			values[i] = 0
			continue
		}
		values[i] = (values[i] - lo) / span
	}
}

func zScore(values []float64) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sumSq := 0.0
	for _, v := range values {
		sumSq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sumSq / float64(len(values)))
	for i := range values {
		if std == 0 {
			values[i] = 0
			continue
		}
		values[i] = (values[i] - mean) / std
	}
}
