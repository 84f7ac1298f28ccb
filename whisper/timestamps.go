package whisper

import "math"

var negInf = float32(math.Inf(-1))

// TimestampRules is the logits-processor enforcing Whisper's timestamp
// structural guarantees during autoregressive sampling. It is
// installed only when the prompt's last task-control token is not
// no_timestamps_id.
type TimestampRules struct {
	eotID                 int32
	noTimestampsID        int32
	timestampBeginID      int32
	timestampEndID        int32
	maxInitialTimestampID int32
	ops                   TensorOps
}

// NewTimestampRules constructs the processor. maxInitialTimestampIndex is
// added to timestampBeginID to get the inclusive upper bound a first
// generated timestamp may take; a result above timestampEndID is clamped
// to timestampEndID.
func NewTimestampRules(eotID, noTimestampsID, timestampBeginID, timestampEndID int32, maxInitialTimestampIndex int, ops TensorOps) *TimestampRules {
	maxInitial := timestampBeginID + int32(maxInitialTimestampIndex)
	if maxInitial > timestampEndID {
		maxInitial = timestampEndID
	}
	return &TimestampRules{
		eotID:                 eotID,
		noTimestampsID:        noTimestampsID,
		timestampBeginID:      timestampBeginID,
		timestampEndID:        timestampEndID,
		maxInitialTimestampID: maxInitial,
		ops:                   ops,
	}
}

func (r *TimestampRules) ApplyFirst() bool { return false }

func (r *TimestampRules) Apply(step int, logits [][]float32, disable *DisableTokens, sequences [][]int32, batchOffset []int, sampleBegin []int) {
	marked := make([]bool, len(logits))

	for b := range logits {
		sb := sampleBegin[b]
		disable.Disable(b, r.noTimestampsID)

		switch {
		case step == sb:
			// Force a timestamp first, bounded by the initial-timestamp clamp.
			disable.DisableRange(b, 0, r.timestampBeginID)
			if r.maxInitialTimestampID < r.timestampEndID {
				disable.DisableRangeInclusive(b, r.maxInitialTimestampID+1, r.timestampEndID)
			}
		case step > sb:
			r.applyContinuation(b, step, sb, logits, disable, sequences, marked)
		}
	}

	r.applyMassCheck(logits, disable, marked)
}

func (r *TimestampRules) applyContinuation(b, step, sb int, logits [][]float32, disable *DisableTokens, sequences [][]int32, marked []bool) {
	seq := sequences[b]
	last := seq[step-1]

	if last >= r.timestampBeginID {
		var penultimate int32
		if step-1 > sb {
			penultimate = seq[step-2]
		} else {
			penultimate = last
		}
		if penultimate >= r.timestampBeginID {
			// Two consecutive timestamps close a pair: next must be text or EOT.
			disable.DisableRangeInclusive(b, r.timestampBeginID, r.timestampEndID)
		} else {
			// Inside an open pair: next must be a timestamp or EOT.
			disable.DisableRange(b, 0, r.eotID)
			marked[b] = true
		}
	} else {
		marked[b] = true
	}

	// Monotonicity: timestamps may not decrease. Find the most recent one.
	for idx := step - 1; idx >= sb; idx-- {
		if seq[idx] >= r.timestampBeginID {
			disable.DisableRange(b, r.timestampBeginID, seq[idx])
			break
		}
	}
}

// applyMassCheck runs after every row's structural disables are recorded,
// so that masked tokens do not contaminate the log-softmax normalization
// used to compare text mass against timestamp mass.
func (r *TimestampRules) applyMassCheck(logits [][]float32, disable *DisableTokens, marked []bool) {
	for b, isMarked := range marked {
		if !isMarked {
			continue
		}
		work := append([]float32(nil), logits[b]...)
		for _, id := range disable.ForRow(b) {
			if int(id) >= 0 && int(id) < len(work) {
				work[id] = negInf
			}
		}
		logProbs := r.ops.LogSoftmax1D(work)

		textMax := r.ops.Max(logProbs, 0, int(r.timestampBeginID))
		timestampMass := r.ops.LogSumExp(logProbs, int(r.timestampBeginID), int(r.timestampEndID)+1)

		if timestampMass > textMax {
			disable.DisableRange(b, 0, r.timestampBeginID)
		}
	}
}
