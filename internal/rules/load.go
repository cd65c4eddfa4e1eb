package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/solatis/amcheck/internal/types"
	"gopkg.in/yaml.v3"
)

// LoadFile reads, parses and compiles a YAML rule file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and compiles a YAML rule document. Unknown keys are
// rejected so a misspelt child name does not silently become an empty tree.
func Parse(data []byte) (*Config, error) {
	var file types.RuleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}
	return Compile(&file)
}
