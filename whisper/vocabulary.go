package whisper

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// multilingualVocabSize is the vocabulary size that distinguishes the
// multilingual Whisper checkpoints from the English-only ones.
const multilingualVocabSize = 51865

const (
	tokenNoTimestamps = "<|notimestamps|>"
	tokenNoSpeech     = "<|nospeech|>"
	tokenNoCaptions   = "<|nocaptions|>"
)

// Vocabulary is the index<->string bijection loaded from the model file
// with reserved BOS/EOS/UNK ids.
type Vocabulary interface {
	Size() int32
	IDToToken(id int32) (string, bool)
	// TokenToID returns the token's id, or UnkID() if the token is unknown.
	TokenToID(token string) int32
	UnkID() int32
	BosID() int32
	EosID() int32
}

// plainVocabulary is a simple slice/map-backed Vocabulary loaded from a
// one-token-per-line vocabulary.txt.
type plainVocabulary struct {
	tokens []string
	byTok  map[string]int32
	unkID  int32
	bosID  int32
	eosID  int32
}

// LoadVocabularyFile loads a UTF-8 vocabulary.txt, one token per line, in
// id order. Reserved tokens are recognized by exact text match.
func LoadVocabularyFile(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: open vocabulary file: %w", err)
	}
	defer f.Close()
	return ParseVocabulary(f)
}

// ParseVocabulary reads a one-token-per-line vocabulary from r.
func ParseVocabulary(r io.Reader) (Vocabulary, error) {
	v := &plainVocabulary{byTok: make(map[string]int32)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var id int32
	for scanner.Scan() {
		tok := scanner.Text()
		v.tokens = append(v.tokens, tok)
		v.byTok[tok] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("whisper: scan vocabulary file: %w", err)
	}
	if len(v.tokens) == 0 {
		return nil, fmt.Errorf("whisper: empty vocabulary")
	}

	v.unkID = v.findOrLast("<|unk|>", "<unk>")
	v.bosID = v.findOrLast("<|startoftranscript|>", "<s>")
	v.eosID = v.findOrLast("<|endoftext|>", "</s>")
	return v, nil
}

func (v *plainVocabulary) findOrLast(names ...string) int32 {
	for _, n := range names {
		if id, ok := v.byTok[n]; ok {
			return id
		}
	}
	return int32(len(v.tokens) - 1)
}

func (v *plainVocabulary) Size() int32 { return int32(len(v.tokens)) }

func (v *plainVocabulary) IDToToken(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

func (v *plainVocabulary) TokenToID(token string) int32 {
	if id, ok := v.byTok[token]; ok {
		return id
	}
	return v.unkID
}

func (v *plainVocabulary) UnkID() int32 { return v.unkID }
func (v *plainVocabulary) BosID() int32 { return v.bosID }
func (v *plainVocabulary) EosID() int32 { return v.eosID }

// VocabularyAdapter resolves Whisper's special-token identifiers from a
// loaded Vocabulary and classifies the model as multilingual or
// English-only. It holds no mutable state after construction
// and is shared read-only across replicas.
type VocabularyAdapter struct {
	vocab Vocabulary

	sotID            int32
	eotID            int32
	noTimestampsID   int32
	noSpeechID       int32
	timestampBeginID int32
	timestampEndID   int32
	isMultilingual   bool
}

// NewVocabularyAdapter resolves the Whisper-specific ids from vocab.
func NewVocabularyAdapter(vocab Vocabulary) (*VocabularyAdapter, error) {
	if vocab == nil {
		return nil, invalidArgument("vocabulary is nil")
	}

	noTimestampsID := vocab.TokenToID(tokenNoTimestamps)
	if noTimestampsID == vocab.UnkID() {
		return nil, invalidArgument("vocabulary is missing %q", tokenNoTimestamps)
	}

	noSpeechID := vocab.TokenToID(tokenNoSpeech)
	if noSpeechID == vocab.UnkID() {
		noSpeechID = vocab.TokenToID(tokenNoCaptions)
	}

	return &VocabularyAdapter{
		vocab:            vocab,
		sotID:            vocab.BosID(),
		eotID:            vocab.EosID(),
		noTimestampsID:   noTimestampsID,
		noSpeechID:       noSpeechID,
		timestampBeginID: noTimestampsID + 1,
		timestampEndID:   vocab.Size() - 1,
		isMultilingual:   vocab.Size() == multilingualVocabSize,
	}, nil
}

func (a *VocabularyAdapter) Vocabulary() Vocabulary { return a.vocab }
func (a *VocabularyAdapter) SotID() int32           { return a.sotID }
func (a *VocabularyAdapter) EotID() int32           { return a.eotID }
func (a *VocabularyAdapter) NoTimestampsID() int32  { return a.noTimestampsID }
func (a *VocabularyAdapter) NoSpeechID() int32      { return a.noSpeechID }
func (a *VocabularyAdapter) TimestampBeginID() int32 { return a.timestampBeginID }
func (a *VocabularyAdapter) TimestampEndID() int32   { return a.timestampEndID }
func (a *VocabularyAdapter) IsMultilingual() bool    { return a.isMultilingual }

// TokenToID looks up token, returning the vocabulary's UNK id if missing.
func (a *VocabularyAdapter) TokenToID(token string) int32 { return a.vocab.TokenToID(token) }

// IDToToken looks up id's string form.
func (a *VocabularyAdapter) IDToToken(id int32) (string, bool) { return a.vocab.IDToToken(id) }

// Tokenize maps one token string to its id (used by the GenerateText
// string-prompt entry points in driver.go and service.go to resolve task
// control tokens by name, e.g. "<|en|>"). Whisper prompts are built from control tokens and
// whole-word subword ids rather than free text tokenization, which the
// driver does not own; callers needing full text tokenization must resolve
// those ids themselves and pass numeric prompts.
func (a *VocabularyAdapter) Tokenize(token string) int32 { return a.vocab.TokenToID(token) }

// DecodeTokens renders a hypothesis's token ids as their vocabulary strings.
func (a *VocabularyAdapter) DecodeTokens(ids []int32) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if s, ok := a.vocab.IDToToken(id); ok {
			out[i] = s
		}
	}
	return out
}
