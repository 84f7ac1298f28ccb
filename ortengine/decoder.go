package ortengine

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/askidmobile/whisperdriver/whisper"
)

// decoderAdapter is *Engine viewed as a whisper.Decoder.
type decoderAdapter Engine

// decoderState is the concrete whisper.DecoderState this adapter hands out:
// a plain map from key to tensor, holding the encoder memory under
// whisper.MemoryKey plus this package's own running token history.
type decoderState struct {
	m map[string]whisper.Tensor
}

func (s *decoderState) Set(key string, t whisper.Tensor)      { s.m[key] = t }
func (s *decoderState) Get(key string) (whisper.Tensor, bool) { t, ok := s.m[key]; return t, ok }

func (d *decoderAdapter) InitialState() whisper.DecoderState {
	return &decoderState{m: make(map[string]whisper.Tensor)}
}

func memoryOf(state whisper.DecoderState) (*floatTensor, error) {
	t, ok := state.Get(whisper.MemoryKey)
	if !ok {
		return nil, fmt.Errorf("ortengine: decoder state has no encoder memory set")
	}
	ft, ok := t.(*floatTensor)
	if !ok {
		return nil, fmt.Errorf("ortengine: encoder memory has unexpected type %T", t)
	}
	return ft, nil
}

// runForward runs the non-cached decoder graph over the full token history
// rows against the encoder memory, returning the raw [B, T, V] logits
// tensor. T is the common row length; rows must all agree on it, which
// holds here since every caller advances every row by exactly one token
// per step.
func (d *decoderAdapter) runForward(ctx context.Context, mem *floatTensor, rows [][]int32) (*ort.Tensor[float32], error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("ortengine: empty batch")
	}
	seqLen := len(rows[0])
	flat := make([]int64, 0, len(rows)*seqLen)
	for _, row := range rows {
		if len(row) != seqLen {
			return nil, fmt.Errorf("ortengine: decoder rows disagree on length (%d vs %d)", len(row), seqLen)
		}
		for _, id := range row {
			flat = append(flat, int64(id))
		}
	}
	idsTensor, err := ort.NewTensor(ort.NewShape(int64(len(rows)), int64(seqLen)), flat)
	if err != nil {
		return nil, fmt.Errorf("ortengine: token tensor: %w", err)
	}
	defer idsTensor.Destroy()

	eng := (*Engine)(d)
	eng.mu.Lock()
	defer eng.mu.Unlock()

	outputs := []ort.Value{nil}
	if err := eng.decoderSession.Run([]ort.Value{idsTensor, mem.value}, outputs); err != nil {
		return nil, fmt.Errorf("ortengine: run decoder: %w", err)
	}
	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		outputs[0].Destroy()
		return nil, fmt.Errorf("ortengine: unexpected decoder output type %T", outputs[0])
	}
	return logits, nil
}

// ForwardPrompt records tokenGrid's prefix as the running token history.
// It runs the decoder only when wantHidden is true, returning the full
// [B, T, V] logits tensor so the
// caller can later pull out an arbitrary column via ComputeLogitsForSteps
// (the non-cached export computes logits at every position in one pass, so
// there is no separate "hidden state" to hand back — the driver only ever
// uses this tensor to gather columns, which the logits cube already is).
func (d *decoderAdapter) ForwardPrompt(ctx context.Context, state whisper.DecoderState, tokenGrid [][]int32, wantHidden bool) (whisper.Tensor, error) {
	mem, err := memoryOf(state)
	if err != nil {
		return nil, err
	}
	rows := make([][]int32, len(tokenGrid))
	for i, row := range tokenGrid {
		rows[i] = append([]int32(nil), row...)
	}
	state.Set(tokenHistoryKey, &tokenHistory{rows: rows})

	if !wantHidden {
		return nil, nil
	}
	logits, err := d.runForward(ctx, mem, rows)
	if err != nil {
		return nil, err
	}
	return wrapFloat(logits), nil
}

// ComputeLogitsForSteps gathers, per row, the vocabulary logits at
// columnIndices[i] out of hidden's [B, T, V] cube.
func (d *decoderAdapter) ComputeLogitsForSteps(ctx context.Context, hidden whisper.Tensor, columnIndices []int) ([][]float32, error) {
	ft, ok := hidden.(*floatTensor)
	if !ok {
		return nil, fmt.Errorf("ortengine: ComputeLogitsForSteps needs an ortengine tensor, got %T", hidden)
	}
	shape := ft.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("ortengine: expected a [B,T,V] logits cube, got shape %v", shape)
	}
	timeLen, vocabLen := int(shape[1]), int(shape[2])
	data := ft.value.GetData()

	out := make([][]float32, len(columnIndices))
	for i, col := range columnIndices {
		if col < 0 || col >= timeLen {
			return nil, fmt.Errorf("ortengine: column %d out of range [0,%d)", col, timeLen)
		}
		start := (i*timeLen + col) * vocabLen
		row := make([]float32, vocabLen)
		copy(row, data[start:start+vocabLen])
		out[i] = row
	}
	return out, nil
}

// Apply advances every row by one autoregressive step: append inputIDs to
// the running token history, recompute the decoder forward pass over the
// whole history, and copy out the logits at the new last position. If the
// batch just expanded (beam search fanning B rows into B*beamSize), history
// rows are replicated in place so token context survives the expansion.
func (d *decoderAdapter) Apply(ctx context.Context, step int, inputIDs []int32, state whisper.DecoderState, outLogits [][]float32) error {
	mem, err := memoryOf(state)
	if err != nil {
		return err
	}

	var history *tokenHistory
	if t, ok := state.Get(tokenHistoryKey); ok {
		history, ok = t.(*tokenHistory)
		if !ok {
			return fmt.Errorf("ortengine: token history has unexpected type %T", t)
		}
	} else {
		history = &tokenHistory{rows: make([][]int32, len(inputIDs))}
	}

	if n, r := len(inputIDs), len(history.rows); n != r {
		if r == 0 || n%r != 0 {
			return fmt.Errorf("ortengine: cannot expand %d history rows to %d input rows", r, n)
		}
		factor := n / r
		expanded := make([][]int32, n)
		for i := 0; i < n; i++ {
			expanded[i] = append([]int32(nil), history.rows[i/factor]...)
		}
		history = &tokenHistory{rows: expanded}
	}

	for i, id := range inputIDs {
		history.rows[i] = append(history.rows[i], id)
	}
	state.Set(tokenHistoryKey, history)

	logits, err := d.runForward(ctx, mem, history.rows)
	if err != nil {
		return err
	}
	defer logits.Destroy()

	shape := logits.GetShape()
	timeLen, vocabLen := int(shape[1]), int(shape[2])
	data := logits.GetData()
	last := timeLen - 1
	for i := range outLogits {
		start := (i*timeLen + last) * vocabLen
		copy(outLogits[i], data[start:start+vocabLen])
	}
	return nil
}

// UpdateOutputLayer is a no-op for this engine: every call rebuilds its
// input tensors from the row count it is actually given, so there is no
// pre-sized buffer to resize when beam search multiplies the batch. Apply
// detects and handles that expansion itself by replicating token history.
func (d *decoderAdapter) UpdateOutputLayer(multiple int) error { return nil }
