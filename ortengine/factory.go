package ortengine

import (
	"path/filepath"

	"github.com/askidmobile/whisperdriver/whisper"
)

// NewFactory builds a whisper.Factory over real ONNX Runtime sessions: each
// call loads vocabulary.txt and config.json from the model directory,
// starts fresh encoder/decoder sessions, and wires a BeamDecoder built by
// beamFactory (which needs the resolved vocabulary size to size its logits
// buffers).
func NewFactory(beamFactory func(vocabSize int32) whisper.BeamDecoder, device whisper.DeviceGuard) whisper.Factory {
	return func(modelDir string) (*whisper.WhisperDriver, error) {
		if err := initRuntime(); err != nil {
			return nil, err
		}

		vocab, err := whisper.LoadVocabularyFile(filepath.Join(modelDir, "vocabulary.txt"))
		if err != nil {
			return nil, err
		}
		adapter, err := whisper.NewVocabularyAdapter(vocab)
		if err != nil {
			return nil, err
		}

		cfg, err := LoadModelConfig(modelDir)
		if err != nil {
			return nil, err
		}

		engine, err := NewEngine(modelDir)
		if err != nil {
			return nil, err
		}

		beam := beamFactory(adapter.Vocabulary().Size())
		return whisper.NewWhisperDriver(adapter, engine.Encoder(), engine.Decoder(), beam, cfg, nil, device), nil
	}
}
