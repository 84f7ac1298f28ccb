package whisper

import (
	"strings"
	"testing"
)

func TestParseVocabulary(t *testing.T) {
	text := strings.Join([]string{
		"hello", "world", "<|nospeech|>", "<|endoftext|>",
		"<|startoftranscript|>", "<|en|>", "<|transcribe|>",
		"<|notimestamps|>", "<|0.00|>", "<|0.02|>",
	}, "\n") + "\n"

	vocab, err := ParseVocabulary(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseVocabulary: %v", err)
	}
	if vocab.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", vocab.Size())
	}
	if id := vocab.TokenToID("<|startoftranscript|>"); id != 4 {
		t.Errorf("BOS id = %d, want 4", id)
	}
	if vocab.BosID() != 4 {
		t.Errorf("BosID() = %d, want 4", vocab.BosID())
	}
	if vocab.EosID() != 3 {
		t.Errorf("EosID() = %d, want 3", vocab.EosID())
	}
	if tok, ok := vocab.IDToToken(0); !ok || tok != "hello" {
		t.Errorf("IDToToken(0) = (%q, %v), want (hello, true)", tok, ok)
	}
	if id := vocab.TokenToID("not-in-vocab"); id != vocab.UnkID() {
		t.Errorf("unknown token should resolve to UnkID, got %d", id)
	}
	if _, ok := vocab.IDToToken(1000); ok {
		t.Errorf("IDToToken(1000) should report ok=false for an out-of-range id")
	}
}

func TestParseVocabulary_Empty(t *testing.T) {
	if _, err := ParseVocabulary(strings.NewReader("")); err == nil {
		t.Fatal("expected an error for an empty vocabulary")
	}
}

func TestNewVocabularyAdapter_MissingNoTimestamps(t *testing.T) {
	vocab, err := ParseVocabulary(strings.NewReader("hello\nworld\n<|endoftext|>\n<|startoftranscript|>\n"))
	if err != nil {
		t.Fatalf("ParseVocabulary: %v", err)
	}
	if _, err := NewVocabularyAdapter(vocab); !IsInvalidArgument(err) {
		t.Fatalf("expected invalid-argument for a vocabulary missing <|notimestamps|>, got %v", err)
	}
}

func TestNewVocabularyAdapter_NilVocabulary(t *testing.T) {
	if _, err := NewVocabularyAdapter(nil); !IsInvalidArgument(err) {
		t.Fatalf("expected invalid-argument for a nil vocabulary, got %v", err)
	}
}

func TestVocabularyAdapter_ResolvedIDs(t *testing.T) {
	va := newSmallTestVocabAdapter(t)

	if va.SotID() != 5 {
		t.Errorf("SotID() = %d, want 5", va.SotID())
	}
	if va.EotID() != 4 {
		t.Errorf("EotID() = %d, want 4", va.EotID())
	}
	if va.NoTimestampsID() != 8 {
		t.Errorf("NoTimestampsID() = %d, want 8", va.NoTimestampsID())
	}
	if va.NoSpeechID() != 3 {
		t.Errorf("NoSpeechID() = %d, want 3", va.NoSpeechID())
	}
	if va.TimestampBeginID() != 9 {
		t.Errorf("TimestampBeginID() = %d, want 9", va.TimestampBeginID())
	}
	if va.TimestampEndID() != 11 {
		t.Errorf("TimestampEndID() = %d, want 11", va.TimestampEndID())
	}
	if va.IsMultilingual() {
		t.Errorf("a 12-token vocabulary must not be classified multilingual")
	}

	if got := va.DecodeTokens([]int32{1, 2}); got[0] != "hello" || got[1] != "world" {
		t.Errorf("DecodeTokens([1,2]) = %v, want [hello world]", got)
	}
}

func TestVocabularyAdapter_NoSpeechFallsBackToNoCaptions(t *testing.T) {
	v := &vocabStub{
		size: 12,
		names: map[int32]string{
			0: "<unk>", 8: "<|notimestamps|>", 5: "<|startoftranscript|>", 4: "<|endoftext|>",
			6: "<|nocaptions|>",
		},
		ids: map[string]int32{
			"<|notimestamps|>": 8, "<|startoftranscript|>": 5, "<|endoftext|>": 4,
			"<|nocaptions|>": 6,
		},
		unk: 0, bos: 5, eos: 4,
	}
	va, err := NewVocabularyAdapter(v)
	if err != nil {
		t.Fatalf("NewVocabularyAdapter: %v", err)
	}
	if va.NoSpeechID() != 6 {
		t.Errorf("NoSpeechID() = %d, want 6 (fallback to <|nocaptions|>)", va.NoSpeechID())
	}
}
