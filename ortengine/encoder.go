package ortengine

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/askidmobile/whisperdriver/whisper"
)

// encoderAdapter is *Engine viewed as a whisper.Encoder.
type encoderAdapter Engine

// NewInputTensor builds a whisper.Tensor around raw float32 data for feeding
// into Encoder.Apply (log-mel features) — passed to
// transport.BuildFeaturesFromPCM by cmd/whisperdriver so that package never
// touches onnxruntime_go directly.
func NewInputTensor(shape []int64, data []float32) (whisper.Tensor, error) {
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, fmt.Errorf("ortengine: new input tensor: %w", err)
	}
	return wrapFloat(t), nil
}

func (e *encoderAdapter) Apply(ctx context.Context, features whisper.Tensor) (whisper.Tensor, error) {
	ft, ok := features.(*floatTensor)
	if !ok {
		return nil, fmt.Errorf("ortengine: encoder input must come from ortengine.NewInputTensor, got %T", features)
	}

	eng := (*Engine)(e)
	eng.mu.Lock()
	defer eng.mu.Unlock()

	outputs := []ort.Value{nil}
	if err := eng.encoderSession.Run([]ort.Value{ft.value}, outputs); err != nil {
		return nil, fmt.Errorf("ortengine: run encoder: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		outputs[0].Destroy()
		return nil, fmt.Errorf("ortengine: unexpected encoder output type %T", outputs[0])
	}
	return wrapFloat(out), nil
}
