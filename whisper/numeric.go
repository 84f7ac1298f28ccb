package whisper

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultTensorOps is a plain, gonum-backed TensorOps implementation for
// collaborators with no faster native kernel. It operates on
// already-materialized host float32 slices.
type DefaultTensorOps struct{}

func (DefaultTensorOps) Softmax2D(logits [][]float32) [][]float32 {
	out := make([][]float32, len(logits))
	for i, row := range logits {
		out[i] = softmaxRow(row)
	}
	return out
}

func (DefaultTensorOps) LogSoftmax1D(logits []float32) []float32 {
	f64 := toFloat64(logits)
	m := floats.Max(f64)
	sum := 0.0
	for _, v := range f64 {
		sum += math.Exp(v - m)
	}
	logSum := m + math.Log(sum)
	out := make([]float32, len(f64))
	for i, v := range f64 {
		out[i] = float32(v - logSum)
	}
	return out
}

func (DefaultTensorOps) Max(values []float32, lo, hi int) float32 {
	if lo >= hi {
		return negInf
	}
	m := values[lo]
	for i := lo + 1; i < hi; i++ {
		if values[i] > m {
			m = values[i]
		}
	}
	return m
}

func (DefaultTensorOps) LogSumExp(values []float32, lo, hi int) float32 {
	if lo >= hi {
		return negInf
	}
	f64 := make([]float64, hi-lo)
	for i := lo; i < hi; i++ {
		f64[i-lo] = float64(values[i])
	}
	return float32(floats.LogSumExp(f64))
}

func softmaxRow(row []float32) []float32 {
	f64 := toFloat64(row)
	m := floats.Max(f64)
	sum := 0.0
	exps := make([]float64, len(f64))
	for i, v := range f64 {
		e := math.Exp(v - m)
		exps[i] = e
		sum += e
	}
	out := make([]float32, len(f64))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

func toFloat64(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}
