package simulator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Data holding performance parameters of the simulated models
type PerfData struct {
	Models []ModelPerf `yaml:"models" json:"models"`
}

// LoadPerf reads simulated model parameters from a YAML file
func LoadPerf(path string) (*PerfData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read perf data %s: %w", path, err)
	}
	var perf PerfData
	if err := yaml.Unmarshal(data, &perf); err != nil {
		return nil, fmt.Errorf("failed to parse perf data %s: %w", path, err)
	}
	return &perf, nil
}
