package whisper

import (
	"math"
	"testing"
)

func TestExtractNoSpeechEager(t *testing.T) {
	ops := DefaultTensorOps{}
	noSpeechID := int32(2)
	logits := [][]float32{
		{1, 2, 5, 1},
		{0, 0, 0, 10},
	}
	probs := ExtractNoSpeechEager(logits, noSpeechID, ops)
	if len(probs) != 2 {
		t.Fatalf("len(probs) = %d, want 2", len(probs))
	}
	if probs[0] < 0.5 {
		t.Errorf("row 0's dominant logit is at no_speech_id, want prob >= 0.5, got %v", probs[0])
	}
	if probs[1] > 0.01 {
		t.Errorf("row 1's no_speech_id logit is far from the max, want prob ~0, got %v", probs[1])
	}
}

func TestNoSpeechProcessor(t *testing.T) {
	ops := DefaultTensorOps{}
	noSpeechID := int32(1)
	beamSize := 2
	p := NewNoSpeechProcessor(noSpeechID, beamSize, ops)
	if !p.ApplyFirst() {
		t.Fatal("NoSpeechProcessor.ApplyFirst() = false, want true")
	}

	// 2 batch items x 2 beams = 4 rows; only rows 0 and 2 (beam 0 of each item)
	// should be sampled.
	logits := [][]float32{
		{10, 0, 0}, // batch 0, beam 0 — low no-speech mass
		{0, 0, 0},  // batch 0, beam 1 — ignored
		{0, 10, 0}, // batch 1, beam 0 — high no-speech mass
		{0, 0, 0},  // batch 1, beam 1 — ignored
	}
	disable := NewDisableTokens(4)
	sequences := make([][]int32, 4)
	batchOffset := []int{0, 0, 1, 1}
	sampleBegin := []int{0, 0, 0, 0}

	p.Apply(0, logits, disable, sequences, batchOffset, sampleBegin)
	probs := p.Probs()
	if len(probs) != 2 {
		t.Fatalf("len(Probs()) = %d, want 2", len(probs))
	}
	if probs[0] > 0.1 {
		t.Errorf("batch 0's captured no-speech prob = %v, want small", probs[0])
	}
	if probs[1] < 0.5 {
		t.Errorf("batch 1's captured no-speech prob = %v, want large", probs[1])
	}

	// A second call at a later step must not overwrite the capture.
	logits[0][1] = 1000
	p.Apply(1, logits, disable, sequences, batchOffset, sampleBegin)
	if probs2 := p.Probs(); math.Abs(float64(probs2[0]-probs[0])) > 1e-9 {
		t.Errorf("Probs() changed after step 1, want capture frozen at step 0")
	}
}
