package inference

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CostModel is the fixed per-token pricing used to estimate enrichment
// call cost before spending money, loaded from a YAML file at startup.
type CostModel struct {
	Model         string  `yaml:"model"`
	Encoding      string  `yaml:"encoding"`
	InputPer1K    float64 `yaml:"input_per_1k"`
	OutputPer1K   float64 `yaml:"output_per_1k"`
	MaxOutputToks int     `yaml:"max_output_tokens"`
}

// LoadCostModel reads a YAML cost model file.
func LoadCostModel(path string) (*CostModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost model file %s: %w", path, err)
	}

	var m CostModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse cost model file %s: %w", path, err)
	}

	if m.Model == "" {
		return nil, fmt.Errorf("cost model file %s: missing model name", path)
	}
	if m.InputPer1K < 0 || m.OutputPer1K < 0 {
		return nil, fmt.Errorf("cost model file %s: negative token rates", path)
	}
	if m.MaxOutputToks <= 0 {
		m.MaxOutputToks = 1024
	}

	return &m, nil
}
