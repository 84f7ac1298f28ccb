package ortengine

import ort "github.com/yalue/onnxruntime_go"

// floatTensor wraps an ONNX Runtime float32 tensor so it can ride the
// whisper package's opaque whisper.Tensor interface between collaborator
// calls. The driver never inspects its contents directly; only this
// package's Encoder/Decoder methods type-assert it back.
type floatTensor struct {
	value *ort.Tensor[float32]
	shape []int64
}

func wrapFloat(v *ort.Tensor[float32]) *floatTensor {
	return &floatTensor{value: v, shape: v.GetShape()}
}

func (t *floatTensor) Shape() []int64 { return t.shape }

func (t *floatTensor) destroy() {
	if t.value != nil {
		t.value.Destroy()
		t.value = nil
	}
}

// tokenHistory is an internal, non-ONNX whisper.Tensor implementation used
// to carry each row's generated token ids inside a whisper.DecoderState
// between successive Decoder.Apply calls (see decoder.go). It never crosses
// into ONNX Runtime itself.
type tokenHistory struct {
	rows [][]int32
}

func (t *tokenHistory) Shape() []int64 { return []int64{int64(len(t.rows))} }

const tokenHistoryKey = "ortengine.tokens"
