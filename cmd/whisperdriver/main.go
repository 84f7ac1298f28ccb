// Command whisperdriver loads a Whisper ONNX model directory, registers it
// with the whisper package's model registry, and serves generate/
// detect-language requests over websocket and gRPC. It is the CLI demo
// around the whisper package's otherwise-collaborator-agnostic driver.
package main

import (
	"log"
	"os"

	"github.com/askidmobile/whisperdriver/internal/config"
	"github.com/askidmobile/whisperdriver/internal/melfeatures"
	"github.com/askidmobile/whisperdriver/internal/refbeam"
	"github.com/askidmobile/whisperdriver/internal/transport"
	"github.com/askidmobile/whisperdriver/ortengine"
	"github.com/askidmobile/whisperdriver/whisper"
)

func main() {
	cfg := config.Load()
	if cfg.ORTLibPath != "" {
		os.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", cfg.ORTLibPath)
	}

	whisper.Register(cfg.DriverName, ortengine.NewFactory(func(vocabSize int32) whisper.BeamDecoder {
		return refbeam.New(vocabSize)
	}, nil))

	drivers := make([]*whisper.WhisperDriver, 0, cfg.Replicas)
	for i := 0; i < cfg.Replicas; i++ {
		d, err := whisper.CreateFromModel(cfg.DriverName, cfg.ModelDir)
		if err != nil {
			log.Fatalf("whisperdriver: load replica %d from %s: %v", i, cfg.ModelDir, err)
		}
		drivers = append(drivers, d)
	}

	service := whisper.NewWhisperService(drivers, cfg.QueueDepth)
	defer service.Close()

	extractor := melfeatures.NewExtractor()
	buildFeatures := transport.BuildFeaturesFromPCM(extractor, ortengine.NewInputTensor)

	server := transport.NewServer(cfg, service, buildFeatures)
	if err := server.Start(); err != nil {
		log.Fatalf("whisperdriver: server stopped: %v", err)
	}
}
