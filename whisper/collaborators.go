package whisper

import "context"

// Tensor is an opaque, device-resident handle produced and consumed by the
// external tensor/transformer runtime (encoder output, decoder hidden
// states, cached attention keys/values). The driver never inspects its
// contents; it only threads it between collaborator calls and, where the
// contract calls for it, asks the collaborator to materialize float32
// logits on the host (see Decoder.ComputeLogitsForSteps and Decoder.Apply).
type Tensor interface {
	// Shape returns the tensor's axis sizes, for diagnostics/logging only.
	Shape() []int64
}

// DecoderState is the opaque mapping of transformer cache tensors owned by
// the driver for the lifetime of a single generate call. It is
// keyed by layer identifier plus the sentinel key "memory" for the encoder
// output. Exactly one state exists per request; it is never shared.
type DecoderState interface {
	Set(key string, t Tensor)
	Get(key string) (Tensor, bool)
}

// MemoryKey is the sentinel DecoderState key holding the encoder output.
const MemoryKey = "memory"

// Encoder is the external collaborator that runs the transformer encoder.
type Encoder interface {
	// Apply moves features to the encoder's device/dtype if needed and
	// returns the encoder output, which remains on-device.
	Apply(ctx context.Context, features Tensor) (Tensor, error)
}

// Decoder is the external collaborator that runs the transformer decoder.
type Decoder interface {
	// InitialState allocates a fresh, empty DecoderState.
	InitialState() DecoderState

	// ForwardPrompt runs a single batched pass over tokenGrid (one row per
	// batch item) to populate state's cache. When wantHidden is true it also
	// returns the pass's hidden outputs so the caller can compute logits at
	// an arbitrary column via ComputeLogitsForSteps; otherwise hidden is nil.
	ForwardPrompt(ctx context.Context, state DecoderState, tokenGrid [][]int32, wantHidden bool) (hidden Tensor, err error)

	// ComputeLogitsForSteps projects hidden at the given per-row column
	// indices to vocabulary logits, one row of output per entry in
	// columnIndices, already downcast to float32 on the host.
	ComputeLogitsForSteps(ctx context.Context, hidden Tensor, columnIndices []int) ([][]float32, error)

	// Apply runs one autoregressive decode step for the given input ids
	// (one per active beam row) against state, writing host float32 logits
	// of shape [len(inputIDs), vocab] into outLogits.
	Apply(ctx context.Context, step int, inputIDs []int32, state DecoderState, outLogits [][]float32) error

	// UpdateOutputLayer notifies the decoder that the next calls operate on
	// a batch whose row count was multiplied by the given factor (e.g. when
	// beam search expands B rows into B*beam_size rows).
	UpdateOutputLayer(multiple int) error
}

// DisableTokens is the per-row accumulator of forbidden token ids for a
// single decode step. It is owned by the beam
// decoder and handed to LogitsProcessor.Apply for in-place mutation during
// one step only; the beam decoder applies it to logits (setting disabled
// positions to -inf) after all processors have run.
type DisableTokens struct {
	rows [][]int32
}

// NewDisableTokens allocates an accumulator for the given number of rows.
func NewDisableTokens(numRows int) *DisableTokens {
	return &DisableTokens{rows: make([][]int32, numRows)}
}

// Disable marks id as forbidden for row.
func (d *DisableTokens) Disable(row int, id int32) {
	d.rows[row] = append(d.rows[row], id)
}

// DisableRange marks every id in [lo, hi) as forbidden for row.
func (d *DisableTokens) DisableRange(row int, lo, hi int32) {
	for id := lo; id < hi; id++ {
		d.Disable(row, id)
	}
}

// DisableRangeInclusive marks every id in [lo, hi] as forbidden for row.
func (d *DisableTokens) DisableRangeInclusive(row int, lo, hi int32) {
	d.DisableRange(row, lo, hi+1)
}

// ForRow returns the ids disabled so far for row.
func (d *DisableTokens) ForRow(row int) []int32 {
	return d.rows[row]
}

// LogitsProcessor is the capability set a driver-installed processor
// exposes to the beam decoder. Processors declaring ApplyFirst()==true are reordered to
// run before the rest, in installation order among themselves.
type LogitsProcessor interface {
	ApplyFirst() bool

	// Apply is invoked once per decode step. logits has shape [B', V] with
	// one row per active beam; sequences holds the token ids generated so
	// far per row; batchOffset maps a beam row to its original batch index
	// (row i belongs to batch batchOffset[i]); sampleBegin holds, per row,
	// the step index at which generated output began, as defined by the
	// BeamDecoder (internal/refbeam passes 0 for every row, since its
	// sequences hold only generated tokens).
	Apply(step int, logits [][]float32, disable *DisableTokens, sequences [][]int32, batchOffset []int, sampleBegin []int)
}

// TensorOps exposes the numeric primitives the driver needs to turn
// already-materialized host logits into probabilities. A
// transformer runtime with faster native kernels may supply its own
// implementation; numeric.go provides a plain Go/gonum default.
type TensorOps interface {
	// Softmax2D computes softmax along the last axis of a [rows, cols] matrix.
	Softmax2D(logits [][]float32) [][]float32
	// LogSoftmax1D computes log-softmax over a single row.
	LogSoftmax1D(logits []float32) []float32
	// Max returns the largest value in values[lo:hi].
	Max(values []float32, lo, hi int) float32
	// LogSumExp returns log(sum(exp(values[lo:hi]))).
	LogSumExp(values []float32, lo, hi int) float32
}

// DecodeOptions mirrors the beam decoder's option table.
type DecodeOptions struct {
	BeamSize            int
	Patience            float32
	LengthPenalty       float32
	RepetitionPenalty   float32
	NoRepeatNgramSize   int
	SamplingTopK        int
	SamplingTemperature float32
	NumHypotheses       int
	MaxNew              int

	ReturnScores    bool
	ReturnAttention bool

	IncludeEOSInHypotheses bool

	// Processors are installed in driver order; the beam decoder moves any
	// processor with ApplyFirst()==true to the front, preserving relative
	// order within each group.
	Processors []LogitsProcessor

	// DisableIDs are forbidden throughout decoding (expanded suppress_tokens).
	DisableIDs []int32
	// DisableIDsBegin are forbidden only at the first generated step
	// (suppress_blank's model-config suppress_ids_begin).
	DisableIDsBegin []int32
}

// DecodingResult is one batch item's output from the beam decoder.
type DecodingResult struct {
	Hypotheses  [][]int32
	Scores      []float32
	TokenScores [][]float32
	Attention   []Tensor
}

// BeamDecoder is the external, generic beam-search collaborator; this
// package does not implement scoring or beam merging itself. It advances
// state autoregressively from startTokens until eotID or opts.MaxNew,
// applying opts.Processors each step.
type BeamDecoder interface {
	Decode(ctx context.Context, decoder Decoder, state DecoderState, startTokens [][]int32, eotID int32, opts DecodeOptions) ([]DecodingResult, error)
}

// ModelConfig exposes the JSON-like model configuration map a driver needs.
type ModelConfig interface {
	SuppressIDs() []int32
	SuppressIDsBegin() []int32
	LangIDs() []int32
}
