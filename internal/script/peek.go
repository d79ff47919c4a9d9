package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Header is the scalar preamble of a script: everything a caller
// needs to construct the right simulation before full validation can
// run. Peek does no frame parsing and no registry checks.
type Header struct {
	Version        int
	ConsoleProfile string
	Seed           int64
	Players        int
}

// Peek extracts the header fields without validating the timeline.
// Load is still the only way to obtain a runnable Script.
func Peek(data []byte) (Header, error) {
	var doc scriptDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Header{}, docErr("", "malformed YAML: %v", err)
	}
	if doc.Players < 1 {
		return Header{}, docErr("players", "players must be at least 1, got %d", doc.Players)
	}
	return Header{
		Version:        doc.Version,
		ConsoleProfile: doc.ConsoleProfile,
		Seed:           doc.Seed,
		Players:        doc.Players,
	}, nil
}

// PeekFile reads path and peeks its header.
func PeekFile(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("reading script: %w", err)
	}
	return Peek(data)
}
