package results

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/artifact.schema.json
var artifactSchema []byte

// ErrInvalidArtifact is returned when an artifact does not match the schema.
var ErrInvalidArtifact = errors.New("artifact does not match schema")

var schemaLoader = gojsonschema.NewBytesLoader(artifactSchema)

// ValidateArtifact checks raw artifact JSON against the embedded schema.
func ValidateArtifact(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArtifact, strings.Join(msgs, "; "))
	}
	return nil
}

// Marshal encodes the result as indented JSON and validates it.
func Marshal(result ExperimentResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := ValidateArtifact(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteArtifact validates result and writes it to path. The file is written
// to a temporary sibling first and renamed, so readers never observe a
// partial artifact.
func WriteArtifact(path string, result ExperimentResult) error {
	data, err := Marshal(result)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// ReadArtifact loads and validates an artifact written by WriteArtifact.
func ReadArtifact(path string) (ExperimentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := ValidateArtifact(data); err != nil {
		return nil, err
	}
	var result ExperimentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return result, nil
}
