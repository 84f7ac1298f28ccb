package whisper

import "context"

// GenerateOptions mirrors the beam decoder's option table.
type GenerateOptions struct {
	BeamSize            int
	Patience            float32
	LengthPenalty       float32
	RepetitionPenalty   float32
	NoRepeatNgramSize   int
	SamplingTopK        int
	SamplingTemperature float32
	NumHypotheses       int
	MaxLength           int

	ReturnScores       bool
	ReturnAttention    bool
	ReturnNoSpeechProb bool

	MaxInitialTimestampIndex int
	SuppressBlank            bool
	// SuppressTokens forbids these ids throughout decoding. The sentinel -1
	// expands to the model's configured default suppression set.
	SuppressTokens []int32
}

// Hypothesis is one candidate sequence within a GenerationResult.
type Hypothesis struct {
	Tokens      []string
	TokenIDs    []int32
	Score       *float32
	TokenScores []float32
	Attention   Tensor
}

// GenerationResult is one batch item's decode output.
// NoSpeechProb is populated once per batch item,
// not per hypothesis, since it is computed from a single decoder step
// shared by every hypothesis of that item.
type GenerationResult struct {
	Hypotheses   []Hypothesis
	NoSpeechProb *float32
}

// DeviceGuard lets a driver claim and release the active device for the
// duration of one request. A nil guard means the
// collaborators manage device scope themselves.
type DeviceGuard interface {
	Acquire() error
	Release()
}

// WhisperDriver is the top-level orchestrator: encode, prefill,
// configure decode, post-process. One driver is bound to one replica's
// decoder state for the duration of a single generate call; it holds no
// per-request mutable state of its own between calls.
type WhisperDriver struct {
	vocab       *VocabularyAdapter
	encoder     Encoder
	decoder     Decoder
	beam        BeamDecoder
	modelConfig ModelConfig
	ops         TensorOps
	device      DeviceGuard
}

// NewWhisperDriver wires the driver to its external collaborators.
func NewWhisperDriver(vocab *VocabularyAdapter, encoder Encoder, decoder Decoder, beam BeamDecoder, modelConfig ModelConfig, ops TensorOps, device DeviceGuard) *WhisperDriver {
	if ops == nil {
		ops = DefaultTensorOps{}
	}
	return &WhisperDriver{
		vocab:       vocab,
		encoder:     encoder,
		decoder:     decoder,
		beam:        beam,
		modelConfig: modelConfig,
		ops:         ops,
		device:      device,
	}
}

// IsMultilingual reports whether the bound vocabulary is multilingual.
func (d *WhisperDriver) IsMultilingual() bool { return d.vocab.IsMultilingual() }

// VocabularyAdapter returns the driver's resolved vocabulary, shared
// read-only across replicas.
func (d *WhisperDriver) VocabularyAdapter() *VocabularyAdapter { return d.vocab }

// Collaborators exposes the encoder/decoder/config/ops this driver is bound
// to, so a WhisperService can build a matching LanguageDetector per replica
// without the caller re-threading the same wiring twice.
func (d *WhisperDriver) Collaborators() (Encoder, Decoder, ModelConfig, TensorOps) {
	return d.encoder, d.decoder, d.modelConfig, d.ops
}

// Encode moves features to the encoder's device/dtype if needed and
// invokes the encoder; the returned tensor stays on-device.
func (d *WhisperDriver) Encode(ctx context.Context, features Tensor) (Tensor, error) {
	out, err := d.encoder.Apply(ctx, features)
	if err != nil {
		return nil, propagate("encode", err)
	}
	return out, nil
}

// Generate runs encode -> prefill -> configure decode -> post-process for a
// batch of numeric prompts.
func (d *WhisperDriver) Generate(ctx context.Context, features Tensor, prompts [][]int32, opts GenerateOptions) ([]GenerationResult, error) {
	if len(prompts) == 0 {
		return nil, nil
	}

	if d.device != nil {
		if err := d.device.Acquire(); err != nil {
			return nil, propagate("acquire device", err)
		}
		defer d.device.Release()
	}

	sotIndex, promptLength, err := Analyze(prompts, d.vocab)
	if err != nil {
		return nil, err
	}
	sotIsStartToken := sotIndex == promptLength-1

	state := d.decoder.InitialState()
	encoded, err := d.Encode(ctx, features)
	if err != nil {
		return nil, err
	}
	state.Set(MemoryKey, encoded)

	startTokens, startStep, eagerNoSpeech, err := d.prefill(ctx, state, prompts, promptLength, sotIndex, sotIsStartToken, opts)
	if err != nil {
		return nil, err
	}

	maxNew := opts.MaxLength / 2
	if remaining := opts.MaxLength - startStep; remaining < maxNew {
		maxNew = remaining
	}

	decodeOpts := DecodeOptions{
		BeamSize:               opts.BeamSize,
		Patience:               opts.Patience,
		LengthPenalty:          opts.LengthPenalty,
		RepetitionPenalty:      opts.RepetitionPenalty,
		NoRepeatNgramSize:      opts.NoRepeatNgramSize,
		SamplingTopK:           opts.SamplingTopK,
		SamplingTemperature:    opts.SamplingTemperature,
		NumHypotheses:          opts.NumHypotheses,
		MaxNew:                 maxNew,
		ReturnScores:           opts.ReturnScores,
		ReturnAttention:        opts.ReturnAttention,
		IncludeEOSInHypotheses: false,
		DisableIDs:             d.expandSuppressTokens(opts.SuppressTokens),
	}
	if opts.SuppressBlank {
		decodeOpts.DisableIDsBegin = append(decodeOpts.DisableIDsBegin, d.modelConfig.SuppressIDsBegin()...)
	}

	var noSpeechProc *NoSpeechProcessor
	if opts.ReturnNoSpeechProb && sotIsStartToken {
		noSpeechProc = NewNoSpeechProcessor(d.vocab.NoSpeechID(), opts.BeamSize, d.ops)
		decodeOpts.Processors = append(decodeOpts.Processors, noSpeechProc)
	}
	if prompts[0][promptLength-1] != d.vocab.NoTimestampsID() {
		decodeOpts.Processors = append(decodeOpts.Processors, NewTimestampRules(
			d.vocab.EotID(), d.vocab.NoTimestampsID(), d.vocab.TimestampBeginID(), d.vocab.TimestampEndID(),
			opts.MaxInitialTimestampIndex, d.ops))
	}

	results, err := d.beam.Decode(ctx, d.decoder, state, startTokens, d.vocab.EotID(), decodeOpts)
	if err != nil {
		return nil, propagate("beam decode", err)
	}

	noSpeechProbs := eagerNoSpeech
	if noSpeechProc != nil {
		noSpeechProbs = noSpeechProc.Probs()
	}

	return d.assemble(results, prompts, opts, noSpeechProbs), nil
}

// GenerateText tokenizes each string prompt through the vocabulary adapter
// and delegates to Generate.
func (d *WhisperDriver) GenerateText(ctx context.Context, features Tensor, prompts [][]string, opts GenerateOptions) ([]GenerationResult, error) {
	ids := make([][]int32, len(prompts))
	for i, row := range prompts {
		ids[i] = make([]int32, len(row))
		for j, tok := range row {
			ids[i][j] = d.vocab.Tokenize(tok)
		}
	}
	return d.Generate(ctx, features, ids, opts)
}

// prefill runs the prompt prefix through the decoder once before
// autoregressive generation begins: no prefill when prompt_length==1,
// otherwise a batched decoder pass over each prompt's prefix, optionally
// capturing the eager no-speech probability at the SOT column.
func (d *WhisperDriver) prefill(ctx context.Context, state DecoderState, prompts [][]int32, promptLength, sotIndex int, sotIsStartToken bool, opts GenerateOptions) (startTokens [][]int32, startStep int, eagerNoSpeech []float32, err error) {
	if promptLength == 1 {
		return prompts, 0, nil, nil
	}

	prefix := make([][]int32, len(prompts))
	startTokens = make([][]int32, len(prompts))
	for i, p := range prompts {
		prefix[i] = p[:promptLength-1]
		startTokens[i] = p[promptLength-1:]
	}

	wantHidden := opts.ReturnNoSpeechProb && !sotIsStartToken
	hidden, err := d.decoder.ForwardPrompt(ctx, state, prefix, wantHidden)
	if err != nil {
		return nil, 0, nil, propagate("prefill", err)
	}

	if wantHidden {
		cols := make([]int, len(prompts))
		for i := range cols {
			cols[i] = sotIndex
		}
		logits, lerr := d.decoder.ComputeLogitsForSteps(ctx, hidden, cols)
		if lerr != nil {
			return nil, 0, nil, propagate("compute no-speech logits", lerr)
		}
		eagerNoSpeech = ExtractNoSpeechEager(logits, d.vocab.NoSpeechID(), d.ops)
	}

	return startTokens, promptLength - 1, eagerNoSpeech, nil
}

func (d *WhisperDriver) expandSuppressTokens(ids []int32) []int32 {
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id == -1 {
			out = append(out, d.modelConfig.SuppressIDs()...)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (d *WhisperDriver) assemble(results []DecodingResult, prompts [][]int32, opts GenerateOptions, noSpeechProbs []float32) []GenerationResult {
	out := make([]GenerationResult, len(prompts))
	for i := range prompts {
		var res GenerationResult
		if i < len(results) {
			r := results[i]
			res.Hypotheses = make([]Hypothesis, len(r.Hypotheses))
			for h, ids := range r.Hypotheses {
				hyp := Hypothesis{TokenIDs: ids, Tokens: d.vocab.DecodeTokens(ids)}
				if opts.ReturnScores && h < len(r.Scores) {
					s := r.Scores[h]
					hyp.Score = &s
				}
				if opts.ReturnScores && h < len(r.TokenScores) {
					hyp.TokenScores = r.TokenScores[h]
				}
				if opts.ReturnAttention && h < len(r.Attention) {
					hyp.Attention = r.Attention[h]
				}
				res.Hypotheses[h] = hyp
			}
		}
		if opts.ReturnNoSpeechProb && i < len(noSpeechProbs) {
			p := noSpeechProbs[i]
			res.NoSpeechProb = &p
		}
		out[i] = res
	}
	return out
}
