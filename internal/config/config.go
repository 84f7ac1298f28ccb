// Package config resolves whisperdriver's command-line flags into a typed
// Config: a model directory plus a replica count, network listen
// addresses, and decode defaults.
package config

import (
	"flag"
	"runtime"
)

// Config holds whisperdriver's runtime settings.
type Config struct {
	ModelDir    string
	DriverName  string
	Replicas    int
	QueueDepth  int
	Port        string
	GRPCAddr    string
	BeamSize    int
	MaxNew      int
	ORTLibPath  string
}

// Load parses os.Args (via the flag package) into a Config.
func Load() *Config {
	modelDir := flag.String("model-dir", "./model", "Directory holding encoder.onnx, decoder.onnx and vocabulary.txt")
	driverName := flag.String("driver-name", "WhisperSpec", "Name this model is registered under")
	replicas := flag.Int("replicas", 1, "Number of driver replicas to run in parallel")
	queueDepth := flag.Int("queue-depth", 64, "Pending-job queue depth per service")
	port := flag.String("port", "8080", "HTTP/websocket listen port")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC listen address (unix:/path/to.sock or npipe:////./pipe/whisperdriver-grpc)")
	beamSize := flag.Int("beam-size", 1, "Default beam size for generate requests")
	maxNew := flag.Int("max-new", 224, "Default max new tokens per generate request")
	ortLibPath := flag.String("onnxruntime-lib", "", "Path to libonnxruntime shared library (overrides ONNXRUNTIME_SHARED_LIBRARY_PATH)")

	flag.Parse()

	return &Config{
		ModelDir:   *modelDir,
		DriverName: *driverName,
		Replicas:   *replicas,
		QueueDepth: *queueDepth,
		Port:       *port,
		GRPCAddr:   *grpcAddr,
		BeamSize:   *beamSize,
		MaxNew:     *maxNew,
		ORTLibPath: *ortLibPath,
	}
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\whisperdriver-grpc"
	}
	return "unix:/tmp/whisperdriver-grpc.sock"
}
