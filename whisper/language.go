package whisper

import (
	"context"
	"sort"
)

// LanguagePrediction is one (language token, probability) entry returned by
// LanguageDetector.Detect, sorted by probability descending.
type LanguagePrediction struct {
	Token string
	Prob  float32
}

// LanguageDetector runs a single decoder step to rank language identities
// from a batch of encoded audio features. It bypasses prompt analysis
// (Analyze), no-speech extraction and TimestampRules entirely.
type LanguageDetector struct {
	encoder     Encoder
	decoder     Decoder
	vocab       *VocabularyAdapter
	modelConfig ModelConfig
	ops         TensorOps
}

// NewLanguageDetector constructs a detector over the given collaborators.
func NewLanguageDetector(encoder Encoder, decoder Decoder, vocab *VocabularyAdapter, modelConfig ModelConfig, ops TensorOps) *LanguageDetector {
	if ops == nil {
		ops = DefaultTensorOps{}
	}
	return &LanguageDetector{encoder: encoder, decoder: decoder, vocab: vocab, modelConfig: modelConfig, ops: ops}
}

// Detect encodes features once, runs the decoder for a single step with
// input token sot_id replicated across the batch, and returns one sorted
// (language, probability) list per batch item. It fails with a runtime
// error when the model is not multilingual.
func (d *LanguageDetector) Detect(ctx context.Context, features Tensor, batchSize int) ([][]LanguagePrediction, error) {
	if !d.vocab.IsMultilingual() {
		return nil, runtimeFail("detect_language requires a multilingual model")
	}

	encoded, err := d.encoder.Apply(ctx, features)
	if err != nil {
		return nil, propagate("encode", err)
	}

	state := d.decoder.InitialState()
	state.Set(MemoryKey, encoded)

	inputIDs := make([]int32, batchSize)
	for i := range inputIDs {
		inputIDs[i] = d.vocab.SotID()
	}

	logits := make([][]float32, batchSize)
	for i := range logits {
		logits[i] = make([]float32, d.vocab.Vocabulary().Size())
	}
	if err := d.decoder.Apply(ctx, 0, inputIDs, state, logits); err != nil {
		return nil, propagate("decode language-id step", err)
	}

	langIDs := d.modelConfig.LangIDs()
	gathered := make([][]float32, batchSize)
	for i, row := range logits {
		cols := make([]float32, len(langIDs))
		for j, id := range langIDs {
			cols[j] = row[id]
		}
		gathered[i] = cols
	}

	probs := d.ops.Softmax2D(gathered)

	out := make([][]LanguagePrediction, batchSize)
	for i, row := range probs {
		preds := make([]LanguagePrediction, len(langIDs))
		for j, id := range langIDs {
			tok, _ := d.vocab.IDToToken(id)
			preds[j] = LanguagePrediction{Token: tok, Prob: row[j]}
		}
		sort.SliceStable(preds, func(a, b int) bool { return preds[a].Prob > preds[b].Prob })
		out[i] = preds
	}
	return out, nil
}
