package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveToFile writes settings as indented JSON, creating the directory.
func SaveToFile(s *Settings, path string) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadFromFile reads settings saved by SaveToFile and validates them.
// Fields missing from the file keep their default values.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	s.Validate()
	return &s, nil
}

// SaveRecord writes the raw 32-byte record.
func SaveRecord(s *Settings, path string) error {
	r := s.MarshalRecord()
	if err := os.WriteFile(path, r[:], 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// LoadRecord reads a raw record over the defaults.
func LoadRecord(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	s := Default()
	if err := s.UnmarshalRecord(data); err != nil {
		return nil, err
	}
	s.Validate()
	return &s, nil
}
