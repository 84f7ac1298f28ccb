package whisper

import (
	"context"
	"fmt"
)

// --- fake Tensor -----------------------------------------------------------

type fakeTensor struct {
	name  string
	shape []int64
}

func (t *fakeTensor) Shape() []int64 { return t.shape }

// --- fake DecoderState -------------------------------------------------------

type fakeState struct {
	m map[string]Tensor
}

func newFakeState() *fakeState { return &fakeState{m: map[string]Tensor{}} }

func (s *fakeState) Set(key string, t Tensor)      { s.m[key] = t }
func (s *fakeState) Get(key string) (Tensor, bool) { t, ok := s.m[key]; return t, ok }

// --- fake Encoder ------------------------------------------------------------

type fakeEncoder struct {
	called bool
	out    Tensor
	err    error
}

func (e *fakeEncoder) Apply(ctx context.Context, features Tensor) (Tensor, error) {
	e.called = true
	if e.err != nil {
		return nil, e.err
	}
	if e.out == nil {
		return &fakeTensor{name: "encoded"}, nil
	}
	return e.out, nil
}

// --- fake Decoder ------------------------------------------------------------

type fakeDecoder struct {
	forwardPromptCalled bool
	wantHiddenSeen      bool
	lastPrefix          [][]int32

	computeColsSeen []int
	logitsToReturn  [][]float32

	applyLogits func(step int, inputIDs []int32, outLogits [][]float32)
}

func (d *fakeDecoder) InitialState() DecoderState { return newFakeState() }

func (d *fakeDecoder) ForwardPrompt(ctx context.Context, state DecoderState, tokenGrid [][]int32, wantHidden bool) (Tensor, error) {
	d.forwardPromptCalled = true
	d.wantHiddenSeen = wantHidden
	d.lastPrefix = tokenGrid
	if wantHidden {
		return &fakeTensor{name: "hidden"}, nil
	}
	return nil, nil
}

func (d *fakeDecoder) ComputeLogitsForSteps(ctx context.Context, hidden Tensor, columnIndices []int) ([][]float32, error) {
	d.computeColsSeen = columnIndices
	if d.logitsToReturn != nil {
		return d.logitsToReturn, nil
	}
	out := make([][]float32, len(columnIndices))
	for i := range out {
		out[i] = []float32{1, 1, 1}
	}
	return out, nil
}

func (d *fakeDecoder) Apply(ctx context.Context, step int, inputIDs []int32, state DecoderState, outLogits [][]float32) error {
	if d.applyLogits != nil {
		d.applyLogits(step, inputIDs, outLogits)
	}
	return nil
}

func (d *fakeDecoder) UpdateOutputLayer(multiple int) error { return nil }

// --- spy BeamDecoder ---------------------------------------------------------

type spyBeamDecoder struct {
	called      bool
	lastStart   [][]int32
	lastEOT     int32
	lastOpts    DecodeOptions
	resultsFunc func(opts DecodeOptions) ([]DecodingResult, error)
}

func (b *spyBeamDecoder) Decode(ctx context.Context, decoder Decoder, state DecoderState, startTokens [][]int32, eotID int32, opts DecodeOptions) ([]DecodingResult, error) {
	b.called = true
	b.lastStart = startTokens
	b.lastEOT = eotID
	b.lastOpts = opts
	if b.resultsFunc != nil {
		return b.resultsFunc(opts)
	}
	out := make([]DecodingResult, len(startTokens))
	for i := range out {
		out[i] = DecodingResult{Hypotheses: [][]int32{{eotID}}}
	}
	return out, nil
}

// --- fake ModelConfig --------------------------------------------------------

type fakeModelConfig struct {
	suppress      []int32
	suppressBegin []int32
	lang          []int32
}

func (c *fakeModelConfig) SuppressIDs() []int32      { return c.suppress }
func (c *fakeModelConfig) SuppressIDsBegin() []int32 { return c.suppressBegin }
func (c *fakeModelConfig) LangIDs() []int32          { return c.lang }

// --- stub Vocabulary with an overridable size (for multilingual tests) ------

type vocabStub struct {
	size  int32
	names map[int32]string
	ids   map[string]int32
	unk   int32
	bos   int32
	eos   int32
}

func (v *vocabStub) Size() int32 { return v.size }

func (v *vocabStub) IDToToken(id int32) (string, bool) {
	if s, ok := v.names[id]; ok {
		return s, true
	}
	if id >= 0 && id < v.size {
		return fmt.Sprintf("tok%d", id), true
	}
	return "", false
}

func (v *vocabStub) TokenToID(token string) int32 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unk
}

func (v *vocabStub) UnkID() int32 { return v.unk }
func (v *vocabStub) BosID() int32 { return v.bos }
func (v *vocabStub) EosID() int32 { return v.eos }

// --- small, deterministic test vocabulary -----------------------------------
//
// Layout (12 tokens): unk, hello, world, nospeech, eot, sot, en, transcribe,
// notimestamps, then three timestamp tokens. Mirrors real Whisper's
// eot < sot < task-control-range < timestamp-range ordering.

func newSmallTestVocabAdapter(t interface{ Fatalf(string, ...any) }) *VocabularyAdapter {
	v := &vocabStub{
		size: 12,
		names: map[int32]string{
			0: "<unk>", 1: "hello", 2: "world", 3: "<|nospeech|>",
			4: "<|endoftext|>", 5: "<|startoftranscript|>", 6: "<|en|>",
			7: "<|transcribe|>", 8: "<|notimestamps|>",
			9: "<|0.00|>", 10: "<|0.02|>", 11: "<|0.04|>",
		},
		ids: map[string]int32{
			"<unk>": 0, "hello": 1, "world": 2, "<|nospeech|>": 3,
			"<|endoftext|>": 4, "<|startoftranscript|>": 5, "<|en|>": 6,
			"<|transcribe|>": 7, "<|notimestamps|>": 8,
			"<|0.00|>": 9, "<|0.02|>": 10, "<|0.04|>": 11,
		},
		unk: 0, bos: 5, eos: 4,
	}
	va, err := NewVocabularyAdapter(v)
	if err != nil {
		t.Fatalf("NewVocabularyAdapter: %v", err)
	}
	return va
}
