// Package transport exposes a WhisperService over websocket and gRPC,
// handling two request kinds: generate and detect-language. Feature
// extraction (internal/melfeatures) and tensor construction (ortengine) are
// plugged in by the caller rather than owned by this package; the driver
// itself takes audio features, not raw files.
package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/askidmobile/whisperdriver/internal/config"
	"github.com/askidmobile/whisperdriver/internal/melfeatures"
	"github.com/askidmobile/whisperdriver/whisper"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeatureBuilder turns raw PCM samples into the whisper.Tensor the driver's
// encoder expects. ortengine.NewInputTensor plus internal/melfeatures
// satisfies this in the CLI entrypoint; tests can supply a fake.
type FeatureBuilder func(samples []float32) (whisper.Tensor, error)

// Server serves one WhisperService over HTTP/websocket and gRPC.
type Server struct {
	cfg      *config.Config
	service  *whisper.WhisperService
	features FeatureBuilder

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer builds a Server over svc. buildFeatures converts decoded audio
// samples into model input tensors.
func NewServer(cfg *config.Config, svc *whisper.WhisperService, buildFeatures FeatureBuilder) *Server {
	return &Server{
		cfg:      cfg,
		service:  svc,
		features: buildFeatures,
		clients:  make(map[*websocket.Conn]bool),
	}
}

// Start registers the websocket handler, starts the gRPC control server in
// the background, and blocks serving HTTP.
func (s *Server) Start() error {
	go s.StartGRPC()

	http.HandleFunc("/ws", s.handleWebSocket)
	log.Printf("whisperdriver: listening on :%s", s.cfg.Port)
	return http.ListenAndServe(":"+s.cfg.Port, nil)
}

func (s *Server) addClient(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = true
}

func (s *Server) removeClient(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	_ = c.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("whisperdriver: upgrade:", err)
		return
	}
	s.addClient(conn)
	defer s.removeClient(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Println("whisperdriver: read:", err)
			return
		}
		reply := s.process(r.Context(), msg)
		if err := conn.WriteJSON(reply); err != nil {
			log.Println("whisperdriver: write:", err)
			return
		}
	}
}

func (s *Server) process(ctx context.Context, msg Message) Message {
	switch msg.Type {
	case "generate":
		return s.handleGenerate(ctx, msg)
	case "detect-language":
		return s.handleDetectLanguage(ctx, msg)
	default:
		return Message{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

func (s *Server) handleGenerate(ctx context.Context, msg Message) Message {
	features, err := s.features(msg.Samples)
	if err != nil {
		return Message{Type: "error", Error: err.Error()}
	}

	task := msg.Task
	if task == "" {
		task = "transcribe"
	}
	lang := msg.Language
	if lang == "" {
		lang = "en"
	}
	prompt := []string{"<|startoftranscript|>", "<|" + lang + "|>", "<|" + task + "|>", "<|notimestamps|>"}

	beamSize := msg.BeamSize
	if beamSize < 1 {
		beamSize = s.cfg.BeamSize
	}
	numHyp := msg.NumHypotheses
	if numHyp < 1 {
		numHyp = 1
	}
	maxNew := msg.MaxNew
	if maxNew < 1 {
		maxNew = s.cfg.MaxNew
	}

	opts := whisper.GenerateOptions{
		BeamSize:           beamSize,
		NumHypotheses:      numHyp,
		MaxLength:          maxNew * 2,
		ReturnNoSpeechProb: true,
		SuppressTokens:     []int32{-1},
	}

	futures := s.service.GenerateText(ctx, features, [][]string{prompt}, opts)
	if len(futures) == 0 {
		return Message{Type: "error", Error: "no replicas available"}
	}
	result, err := futures[0].Wait(ctx)
	if err != nil {
		return Message{Type: "error", Error: err.Error()}
	}

	texts := make([]string, len(result.Hypotheses))
	for i, hyp := range result.Hypotheses {
		texts[i] = joinTokens(hyp.Tokens)
	}
	return Message{Type: "generate-result", Hypotheses: texts, NoSpeechProb: result.NoSpeechProb}
}

func (s *Server) handleDetectLanguage(ctx context.Context, msg Message) Message {
	features, err := s.features(msg.Samples)
	if err != nil {
		return Message{Type: "error", Error: err.Error()}
	}
	futures := s.service.DetectLanguage(ctx, features, 1)
	if len(futures) == 0 {
		return Message{Type: "error", Error: "no replicas available"}
	}
	preds, err := futures[0].Wait(ctx)
	if err != nil {
		return Message{Type: "error", Error: err.Error()}
	}
	out := make([]LangPct, len(preds))
	for i, p := range preds {
		out[i] = LangPct{Language: p.Token, Probability: p.Prob}
	}
	return Message{Type: "detect-language-result", Languages: out}
}

func joinTokens(tokens []string) string {
	out := ""
	for _, t := range tokens {
		if len(t) > 2 && t[0] == '<' && t[1] == '|' {
			continue
		}
		out += t
	}
	return out
}

// BuildFeaturesFromPCM is the default FeatureBuilder: extract log-mel
// features from raw samples and pad/trim to Whisper's fixed 30s window.
// newTensor is typically ortengine.NewInputTensor, kept as a parameter so
// this package never imports onnxruntime_go directly.
func BuildFeaturesFromPCM(extractor *melfeatures.Extractor, newTensor func(shape []int64, data []float32) (whisper.Tensor, error)) FeatureBuilder {
	return func(samples []float32) (whisper.Tensor, error) {
		frames := melfeatures.PadOrTrim(extractor.Compute(samples))
		flat := melfeatures.Flatten(frames)
		return newTensor([]int64{1, melfeatures.NMels, melfeatures.MaxFrames}, flat)
	}
}
