package whisper

import (
	"math"
	"testing"
)

func TestDefaultTensorOps_Softmax2D_SumsToOne(t *testing.T) {
	ops := DefaultTensorOps{}
	probs := ops.Softmax2D([][]float32{{1, 2, 3}, {0, 0, 0}})
	for i, row := range probs {
		var sum float32
		for _, p := range row {
			sum += p
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Errorf("row %d sums to %v, want ~1", i, sum)
		}
	}
	// Uniform logits must produce a uniform distribution.
	for _, p := range probs[1] {
		if math.Abs(float64(p)-1.0/3) > 1e-5 {
			t.Errorf("uniform logits produced non-uniform probability %v", p)
		}
	}
}

func TestDefaultTensorOps_LogSoftmax1D(t *testing.T) {
	ops := DefaultTensorOps{}
	logProbs := ops.LogSoftmax1D([]float32{1, 2, 3})
	var sum float64
	for _, lp := range logProbs {
		sum += math.Exp(float64(lp))
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("exp(logSoftmax) sums to %v, want ~1", sum)
	}
	// Highest logit must have the highest (closest to zero) log-probability.
	if logProbs[2] <= logProbs[1] || logProbs[1] <= logProbs[0] {
		t.Errorf("LogSoftmax1D did not preserve ordering: %v", logProbs)
	}
}

func TestDefaultTensorOps_Max(t *testing.T) {
	ops := DefaultTensorOps{}
	if got := ops.Max([]float32{1, 9, 3, 2}, 0, 4); got != 9 {
		t.Errorf("Max = %v, want 9", got)
	}
	if got := ops.Max([]float32{1, 9, 3}, 2, 1); got != negInf {
		t.Errorf("Max with lo>=hi = %v, want -Inf", got)
	}
}

func TestDefaultTensorOps_LogSumExp(t *testing.T) {
	ops := DefaultTensorOps{}
	got := ops.LogSumExp([]float32{0, 0}, 0, 2)
	want := float32(math.Log(2))
	if math.Abs(float64(got-want)) > 1e-5 {
		t.Errorf("LogSumExp([0,0]) = %v, want %v", got, want)
	}
	if got := ops.LogSumExp([]float32{1, 2}, 1, 1); got != negInf {
		t.Errorf("LogSumExp with lo>=hi = %v, want -Inf", got)
	}
}
