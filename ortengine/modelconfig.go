package ortengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/askidmobile/whisperdriver/whisper"
)

// modelConfigFile is the on-disk shape of config.json in a model directory,
// the convention used to recognize a HuggingFace-style model layout.
type modelConfigFile struct {
	SuppressTokens      []int32 `json:"suppress_tokens"`
	SuppressTokensBegin []int32 `json:"suppress_tokens_begin"`
	LangTokenIDs        []int32 `json:"lang_token_ids"`
}

// ModelConfig is the whisper.ModelConfig backed by a model directory's
// config.json.
type ModelConfig struct {
	suppress      []int32
	suppressBegin []int32
	langIDs       []int32
}

var _ whisper.ModelConfig = (*ModelConfig)(nil)

// LoadModelConfig reads config.json from modelDir.
func LoadModelConfig(modelDir string) (*ModelConfig, error) {
	path := filepath.Join(modelDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ortengine: read %s: %w", path, err)
	}
	var f modelConfigFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ortengine: parse %s: %w", path, err)
	}
	return &ModelConfig{
		suppress:      f.SuppressTokens,
		suppressBegin: f.SuppressTokensBegin,
		langIDs:       f.LangTokenIDs,
	}, nil
}

func (c *ModelConfig) SuppressIDs() []int32      { return c.suppress }
func (c *ModelConfig) SuppressIDsBegin() []int32 { return c.suppressBegin }
func (c *ModelConfig) LangIDs() []int32          { return c.langIDs }
