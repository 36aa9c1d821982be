package app

import (
	"encoding/json"
	"fmt"
	"os"
)

// configFile is the xApp's JSON configuration on disk. The file is owned
// by the platform; writes through the HTTP endpoints trigger a restart so
// the xApp comes back up with the new settings.
type configFile struct {
	path string
}

func (c configFile) load() (map[string]any, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("configuration is not valid JSON: %w", err)
	}
	return cfg, nil
}

func (c configFile) store(cfg map[string]any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// merge deep-merges src onto dst in place. Nested objects merge key by
// key, everything else is replaced.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				merge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
