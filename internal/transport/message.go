package transport

// Message is the single flat wire format shared by the websocket and gRPC
// control channels, carrying both request and response fields.
type Message struct {
	Type string `json:"type"`

	// Requests
	Samples       []float32 `json:"samples,omitempty"`
	Language      string    `json:"language,omitempty"`
	Task          string    `json:"task,omitempty"` // "transcribe" or "translate"
	BeamSize      int       `json:"beamSize,omitempty"`
	MaxNew        int       `json:"maxNew,omitempty"`
	NumHypotheses int       `json:"numHypotheses,omitempty"`

	// Responses
	Hypotheses   []string  `json:"hypotheses,omitempty"`
	NoSpeechProb *float32  `json:"noSpeechProb,omitempty"`
	Languages    []LangPct `json:"languages,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// LangPct is one ranked language prediction in a detect-language response.
type LangPct struct {
	Language    string  `json:"language"`
	Probability float32 `json:"probability"`
}
