package whisper

import "testing"

func TestWhisperService_GenerateDispatchesInOrder(t *testing.T) {
	vocab := newSmallTestVocabAdapter(t)
	beam := &spyBeamDecoder{
		resultsFunc: func(opts DecodeOptions) ([]DecodingResult, error) {
			return []DecodingResult{
				{Hypotheses: [][]int32{{1, 2}}},
				{Hypotheses: [][]int32{{2, 1}}},
			}, nil
		},
	}
	driver := NewWhisperDriver(vocab, &fakeEncoder{}, &fakeDecoder{}, beam, &fakeModelConfig{}, DefaultTensorOps{}, nil)
	svc := NewWhisperService([]*WhisperDriver{driver}, 4)
	defer svc.Close()

	prompts := [][]int32{{vocab.SotID()}, {vocab.SotID()}}
	futures := svc.Generate(t.Context(), &fakeTensor{}, prompts, GenerateOptions{BeamSize: 1, MaxLength: 10})
	if len(futures) != 2 {
		t.Fatalf("len(futures) = %d, want 2", len(futures))
	}

	first, err := futures[0].Wait(t.Context())
	if err != nil {
		t.Fatalf("futures[0].Wait: %v", err)
	}
	second, err := futures[1].Wait(t.Context())
	if err != nil {
		t.Fatalf("futures[1].Wait: %v", err)
	}

	if len(first.Hypotheses) != 1 || first.Hypotheses[0].Tokens[0] != "hello" {
		t.Errorf("futures[0] result = %+v, want hypothesis decoded from [1,2]", first)
	}
	if len(second.Hypotheses) != 1 || second.Hypotheses[0].Tokens[0] != "world" {
		t.Errorf("futures[1] result = %+v, want hypothesis decoded from [2,1]", second)
	}
}

func TestWhisperService_DetectLanguageDispatch(t *testing.T) {
	va := newMultilingualTestVocabAdapter(t)
	decoder := &fakeDecoder{}
	decoder.applyLogits = func(step int, inputIDs []int32, outLogits [][]float32) {
		for i := range outLogits {
			outLogits[i][20] = 9 // <|en|>
			outLogits[i][10] = 1 // <|ar|>
			outLogits[i][30] = 0 // <|fr|>
		}
	}
	driver := NewWhisperDriver(va, &fakeEncoder{}, decoder, &spyBeamDecoder{}, &fakeModelConfig{lang: []int32{10, 20, 30}}, DefaultTensorOps{}, nil)
	svc := NewWhisperService([]*WhisperDriver{driver}, 4)
	defer svc.Close()

	if !svc.IsMultilingual() {
		t.Fatal("IsMultilingual() = false, want true")
	}

	futures := svc.DetectLanguage(t.Context(), &fakeTensor{}, 1)
	if len(futures) != 1 {
		t.Fatalf("len(futures) = %d, want 1", len(futures))
	}
	preds, err := futures[0].Wait(t.Context())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(preds) != 3 || preds[0].Token != "<|en|>" {
		t.Fatalf("preds = %+v, want <|en|> ranked first", preds)
	}
}

func TestWhisperService_GenerateTextTokenizesPrompts(t *testing.T) {
	vocab := newSmallTestVocabAdapter(t)
	beam := &spyBeamDecoder{}
	driver := NewWhisperDriver(vocab, &fakeEncoder{}, &fakeDecoder{}, beam, &fakeModelConfig{}, DefaultTensorOps{}, nil)
	svc := NewWhisperService([]*WhisperDriver{driver}, 4)
	defer svc.Close()

	futures := svc.GenerateText(t.Context(), &fakeTensor{}, [][]string{{"<|startoftranscript|>"}}, GenerateOptions{BeamSize: 1, MaxLength: 10})
	if _, err := futures[0].Wait(t.Context()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(beam.lastStart) != 1 || beam.lastStart[0][0] != vocab.SotID() {
		t.Errorf("startTokens = %v, want the tokenized SOT id", beam.lastStart)
	}
}
