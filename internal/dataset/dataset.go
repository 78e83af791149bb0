// Package dataset holds supervised sample matrices and the stratified fold
// utilities used by cross-validation.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrDimensionMismatch = errors.New("dataset dimension mismatch")
	ErrMalformedDataset  = errors.New("malformed dataset file")
)

// Dataset is a sample matrix. Rows are never modified once built, so
// derived datasets share row storage with their source.
type Dataset struct {
	NumInputs  int
	NumOutputs int
	Inputs     [][]float64
	Outputs    [][]float64
}

// New builds a dataset from per-sample input and output rows.
func New(inputs, outputs [][]float64) (*Dataset, error) {
	if len(inputs) != len(outputs) {
		return nil, fmt.Errorf("%w: %d input rows, %d output rows", ErrDimensionMismatch, len(inputs), len(outputs))
	}
	if len(inputs) == 0 {
		return nil, errors.New("dataset requires at least one sample")
	}
	d := &Dataset{NumInputs: len(inputs[0]), NumOutputs: len(outputs[0])}
	for i := range inputs {
		if len(inputs[i]) != d.NumInputs || len(outputs[i]) != d.NumOutputs {
			return nil, fmt.Errorf("%w: sample %d has %d inputs and %d outputs, want %d and %d",
				ErrDimensionMismatch, i, len(inputs[i]), len(outputs[i]), d.NumInputs, d.NumOutputs)
		}
		d.Inputs = append(d.Inputs, append([]float64(nil), inputs[i]...))
		d.Outputs = append(d.Outputs, append([]float64(nil), outputs[i]...))
	}
	return d, nil
}

// FromFlat builds a dataset from row-major input and output arrays.
func FromFlat(numInputs, numOutputs, numSamples int, inputs, outputs []float64) (*Dataset, error) {
	if numInputs < 1 || numOutputs < 1 || numSamples < 1 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs, %d samples", ErrDimensionMismatch, numInputs, numOutputs, numSamples)
	}
	if len(inputs) != numInputs*numSamples || len(outputs) != numOutputs*numSamples {
		return nil, fmt.Errorf("%w: flat arrays have %d and %d values, want %d and %d",
			ErrDimensionMismatch, len(inputs), len(outputs), numInputs*numSamples, numOutputs*numSamples)
	}
	d := &Dataset{NumInputs: numInputs, NumOutputs: numOutputs}
	for i := 0; i < numSamples; i++ {
		d.Inputs = append(d.Inputs, append([]float64(nil), inputs[i*numInputs:(i+1)*numInputs]...))
		d.Outputs = append(d.Outputs, append([]float64(nil), outputs[i*numOutputs:(i+1)*numOutputs]...))
	}
	return d, nil
}

func (d *Dataset) NumSamples() int { return len(d.Inputs) }

// CheckDimensions reports whether the dataset fits a model with the given
// number of inputs and outputs.
func (d *Dataset) CheckDimensions(numInputs, numOutputs int) error {
	if d.NumInputs != numInputs || d.NumOutputs != numOutputs {
		return fmt.Errorf("%w: dataset has %d inputs and %d outputs, model has %d and %d",
			ErrDimensionMismatch, d.NumInputs, d.NumOutputs, numInputs, numOutputs)
	}
	return nil
}

// Class returns the last output column whose target is exactly 1, or -1
// when the sample has no class.
func (d *Dataset) Class(sample int) int {
	class := -1
	for j, v := range d.Outputs[sample] {
		if v == 1.0 {
			class = j
		}
	}
	return class
}

func (d *Dataset) subset(rows []int) *Dataset {
	out := &Dataset{
		NumInputs:  d.NumInputs,
		NumOutputs: d.NumOutputs,
		Inputs:     make([][]float64, 0, len(rows)),
		Outputs:    make([][]float64, 0, len(rows)),
	}
	for _, r := range rows {
		out.Inputs = append(out.Inputs, d.Inputs[r])
		out.Outputs = append(out.Outputs, d.Outputs[r])
	}
	return out
}

// Load reads the text format: a "numInputs,numOutputs,numSamples" header
// followed by one sample per line with values separated by commas or spaces.
func Load(r io.Reader) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var header []int
	d := &Dataset{}
	numSamples := 0
	line := 0
	for sc.Scan() {
		line++
		fields := strings.FieldsFunc(sc.Text(), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		if header == nil {
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: header needs numInputs,numOutputs,numSamples", ErrMalformedDataset, line)
			}
			for _, f := range fields {
				n, err := strconv.Atoi(f)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("%w: line %d: invalid header value %q", ErrMalformedDataset, line, f)
				}
				header = append(header, n)
			}
			d.NumInputs, d.NumOutputs, numSamples = header[0], header[1], header[2]
			continue
		}
		if d.NumSamples() == numSamples {
			return nil, fmt.Errorf("%w: line %d: more than %d samples", ErrMalformedDataset, line, numSamples)
		}
		if len(fields) != d.NumInputs+d.NumOutputs {
			return nil, fmt.Errorf("%w: line %d: got %d values, want %d", ErrMalformedDataset, line, len(fields), d.NumInputs+d.NumOutputs)
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedDataset, line, err)
			}
			row[i] = v
		}
		d.Inputs = append(d.Inputs, row[:d.NumInputs:d.NumInputs])
		d.Outputs = append(d.Outputs, row[d.NumInputs:])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedDataset)
	}
	if d.NumSamples() != numSamples {
		return nil, fmt.Errorf("%w: got %d samples, header declares %d", ErrMalformedDataset, d.NumSamples(), numSamples)
	}
	return d, nil
}

func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return d, nil
}

func (d *Dataset) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d,%d,%d\n", d.NumInputs, d.NumOutputs, d.NumSamples())
	for i := range d.Inputs {
		for _, v := range d.Inputs[i] {
			fmt.Fprintf(bw, "%f,", v)
		}
		for j, v := range d.Outputs[i] {
			if j > 0 {
				bw.WriteString(",")
			}
			fmt.Fprintf(bw, "%f", v)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func (d *Dataset) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
