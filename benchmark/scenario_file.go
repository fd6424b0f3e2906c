package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
)

// A SerializedScenario is the on-disk form of a scenario selection: the kind
// plus field overrides applied on top of the flag-derived config.
type SerializedScenario struct {
	Kind  Kind
	Input map[string]any
}

func LoadScenarioFile(path string) (*SerializedScenario, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	ss := &SerializedScenario{}
	err = json.Unmarshal(buf, ss)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if ss.Kind == "" {
		return nil, fmt.Errorf("scenario file %s does not set a kind", path)
	}
	return ss, nil
}
