package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/stride/internal/challenge"
)

// marshalChallenge converts a challenge to JSON TEXT for the body column.
// Uses json.Encoder with HTML escaping disabled so ids and badge names are
// stored byte-for-byte. Map keys are sorted by encoding/json.
func marshalChallenge(c *challenge.Challenge) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("marshal challenge: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalChallenge parses a body column and stamps it with version.
// A body that decodes to an invalid kind or no participants map is
// corrupted state and panics.
func unmarshalChallenge(data string, version int64) (*challenge.Challenge, error) {
	var c challenge.Challenge
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if !c.Template.Kind.Valid() {
		panic(fmt.Sprintf("store: challenge %s has corrupted template kind %d", c.ID, int(c.Template.Kind)))
	}
	if c.Participants == nil {
		c.Participants = map[string]*challenge.Participant{}
	}
	c.Version = version
	return &c, nil
}
