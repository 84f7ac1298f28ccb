package ortengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/askidmobile/whisperdriver/whisper"
)

// Engine loads the two ONNX graphs a Whisper checkpoint is exported as for
// CPU inference: an encoder (log-mel features -> hidden states) and a
// non-cached decoder (full token sequence + encoder hidden states -> logits
// at every position). One ort.DynamicAdvancedSession per graph, with both
// paths derived from a single model-directory root.
//
// This decoder shape recomputes the whole prefix on every autoregressive
// step instead of threading past_key_values tensors, trading throughput for
// a session wiring simple enough to stay within this driver's scope — the
// beam-search loop itself is an external collaborator, so
// this engine only ever needs to answer one step or one prefill pass at a
// time, never to manage cache tensors across beam search's own bookkeeping.
type Engine struct {
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession

	mu     sync.Mutex
	closed bool
}

// NewEngine loads encoder.onnx and decoder.onnx from modelDir.
func NewEngine(modelDir string) (*Engine, error) {
	if err := initRuntime(); err != nil {
		return nil, err
	}

	encoderPath := filepath.Join(modelDir, "encoder.onnx")
	decoderPath := filepath.Join(modelDir, "decoder.onnx")
	for _, p := range []string{encoderPath, decoderPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("ortengine: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("ortengine: session options: %w", err)
	}
	defer options.Destroy()

	encIn, encOut, err := ort.GetInputOutputInfo(encoderPath)
	if err != nil {
		return nil, fmt.Errorf("ortengine: encoder info: %w", err)
	}
	encoderSession, err := ort.NewDynamicAdvancedSession(encoderPath, extractNames(encIn), extractNames(encOut), options)
	if err != nil {
		return nil, fmt.Errorf("ortengine: encoder session: %w", err)
	}

	decIn, decOut, err := ort.GetInputOutputInfo(decoderPath)
	if err != nil {
		encoderSession.Destroy()
		return nil, fmt.Errorf("ortengine: decoder info: %w", err)
	}
	decoderSession, err := ort.NewDynamicAdvancedSession(decoderPath, extractNames(decIn), extractNames(decOut), options)
	if err != nil {
		encoderSession.Destroy()
		return nil, fmt.Errorf("ortengine: decoder session: %w", err)
	}

	return &Engine{encoderSession: encoderSession, decoderSession: decoderSession}, nil
}

// Close releases both ONNX Runtime sessions. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.encoderSession.Destroy()
	e.decoderSession.Destroy()
	e.closed = true
}

// Encoder returns the whisper.Encoder view of this engine.
func (e *Engine) Encoder() whisper.Encoder { return (*encoderAdapter)(e) }

// Decoder returns the whisper.Decoder view of this engine.
func (e *Engine) Decoder() whisper.Decoder { return (*decoderAdapter)(e) }
