package cache

import (
	"encoding/json"
	"fmt"
)

func marshal(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal cache value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cache value: %w", err)
	}
	return nil
}
