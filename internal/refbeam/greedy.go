// Package refbeam is a minimal reference whisper.BeamDecoder: greedy
// (argmax) sampling per beam row, applying the driver's installed logits
// processors and disabled-token set each step. It exists only so the CLI
// demo and integration tests have something real to decode with. The
// whisper package treats beam search as an external, generic collaborator;
// this package does not attempt length-penalty scoring, beam merging, or
// patience-based early stopping, which is what would distinguish it from a
// true beam search.
package refbeam

import (
	"context"
	"math"

	"github.com/askidmobile/whisperdriver/whisper"
)

// Decoder is the greedy reference implementation of whisper.BeamDecoder.
type Decoder struct {
	vocabSize int32
}

// New builds a Decoder. vocabSize must match the model's vocabulary size,
// since whisper.Decoder.Apply writes into caller-sized logits rows.
func New(vocabSize int32) *Decoder {
	return &Decoder{vocabSize: vocabSize}
}

var negInf = float32(math.Inf(-1))

func (d *Decoder) Decode(ctx context.Context, decoder whisper.Decoder, state whisper.DecoderState, startTokens [][]int32, eotID int32, opts whisper.DecodeOptions) ([]whisper.DecodingResult, error) {
	batch := len(startTokens)
	if batch == 0 {
		return nil, nil
	}
	beamSize := opts.BeamSize
	if beamSize < 1 {
		beamSize = 1
	}
	numRows := batch * beamSize

	if beamSize > 1 {
		if err := decoder.UpdateOutputLayer(beamSize); err != nil {
			return nil, err
		}
	}

	sequences := make([][]int32, numRows)
	batchOffset := make([]int, numRows)
	sampleBegin := make([]int, numRows)
	done := make([]bool, numRows)
	inputIDs := make([]int32, numRows)
	for b := 0; b < batch; b++ {
		last := startTokens[b][len(startTokens[b])-1]
		for s := 0; s < beamSize; s++ {
			row := b*beamSize + s
			batchOffset[row] = b
			inputIDs[row] = last
		}
	}

	processors := reorderProcessors(opts.Processors)

	maxNew := opts.MaxNew
	if maxNew <= 0 {
		maxNew = 1
	}

	for step := 0; step < maxNew; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outLogits := make([][]float32, numRows)
		for i := range outLogits {
			outLogits[i] = make([]float32, d.vocabSize)
		}
		if err := decoder.Apply(ctx, step, inputIDs, state, outLogits); err != nil {
			return nil, err
		}

		disable := whisper.NewDisableTokens(numRows)
		for i := 0; i < numRows; i++ {
			for _, id := range opts.DisableIDs {
				disable.Disable(i, id)
			}
			if step == 0 {
				for _, id := range opts.DisableIDsBegin {
					disable.Disable(i, id)
				}
			}
		}
		for _, p := range processors {
			p.Apply(step, outLogits, disable, sequences, batchOffset, sampleBegin)
		}

		for i := 0; i < numRows; i++ {
			if done[i] {
				continue
			}
			row := outLogits[i]
			for _, id := range disable.ForRow(i) {
				if int(id) >= 0 && int(id) < len(row) {
					row[id] = negInf
				}
			}
			best := argmax(row)
			sequences[i] = append(sequences[i], int32(best))
			inputIDs[i] = int32(best)
			if int32(best) == eotID {
				done[i] = true
			}
		}

		allDone := true
		for _, dn := range done {
			if !dn {
				allDone = false
				break
			}
		}
		if allDone {
			break
		}
	}

	numHyp := opts.NumHypotheses
	if numHyp < 1 {
		numHyp = 1
	}
	results := make([]whisper.DecodingResult, batch)
	for b := 0; b < batch; b++ {
		hyps := make([][]int32, 0, numHyp)
		for s := 0; s < numHyp && s < beamSize; s++ {
			seq := sequences[b*beamSize+s]
			if !opts.IncludeEOSInHypotheses && len(seq) > 0 && seq[len(seq)-1] == eotID {
				seq = seq[:len(seq)-1]
			}
			hyps = append(hyps, seq)
		}
		results[b] = whisper.DecodingResult{Hypotheses: hyps}
	}
	return results, nil
}

func reorderProcessors(in []whisper.LogitsProcessor) []whisper.LogitsProcessor {
	var first, rest []whisper.LogitsProcessor
	for _, p := range in {
		if p.ApplyFirst() {
			first = append(first, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(first, rest...)
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
