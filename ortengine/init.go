// Package ortengine is the concrete ONNX Runtime backed Encoder/Decoder
// collaborator for the whisper driver (whisper/collaborators.go). It wires
// github.com/yalue/onnxruntime_go sessions into the whisper package's
// external contracts, loading a model directory into
// ort.DynamicAdvancedSession for Whisper's encoder + decoder pair.
package ortengine

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime locates and loads the ONNX Runtime shared library exactly
// once per process: an explicit ONNXRUNTIME_SHARED_LIBRARY_PATH environment
// variable wins, otherwise a short list of conventional install locations
// is probed.
func initRuntime() error {
	runtimeOnce.Do(func() {
		libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
		if libPath == "" {
			for _, candidate := range []string{
				"/usr/local/lib/libonnxruntime.so",
				"/usr/lib/libonnxruntime.so",
				"./libonnxruntime.so",
			} {
				if _, err := os.Stat(candidate); err == nil {
					libPath = candidate
					break
				}
			}
		}
		if libPath != "" {
			log.Printf("ortengine: using ONNX Runtime library %s", libPath)
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("ortengine: initialize ONNX Runtime: %w", err)
			return
		}
		log.Print("ortengine: ONNX Runtime initialized")
	})
	return runtimeErr
}

func extractNames(info []ort.InputOutputInfo) []string {
	names := make([]string, len(info))
	for i, inf := range info {
		names[i] = inf.Name
	}
	return names
}
