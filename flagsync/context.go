package flagsync

import (
	"encoding/hex"
	"maps"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// EvaluationContext carries the attributes the flag service evaluates
// against. The core forwards it opaquely.
type EvaluationContext struct {
	UserID        string            `json:"userId,omitempty" yaml:"user_id,omitempty" cbor:"userId,omitempty"`
	SessionID     string            `json:"sessionId,omitempty" yaml:"session_id,omitempty" cbor:"sessionId,omitempty"`
	RemoteAddress string            `json:"remoteAddress,omitempty" yaml:"remote_address,omitempty" cbor:"remoteAddress,omitempty"`
	Environment   string            `json:"environment,omitempty" yaml:"environment,omitempty" cbor:"environment,omitempty"`
	AppName       string            `json:"appName,omitempty" yaml:"app_name,omitempty" cbor:"appName,omitempty"`
	CurrentTime   string            `json:"currentTime,omitempty" yaml:"current_time,omitempty" cbor:"currentTime,omitempty"`
	Properties    map[string]string `json:"properties,omitempty" yaml:"properties,omitempty" cbor:"properties,omitempty"`
}

// Clone returns a copy that shares no map with c.
func (c EvaluationContext) Clone() EvaluationContext {
	if c.Properties != nil {
		c.Properties = maps.Clone(c.Properties)
	}

	return c
}

// IsZero reports whether c carries no attributes. An empty Properties map
// counts as no attributes.
func (c EvaluationContext) IsZero() bool {
	return c.UserID == "" &&
		c.SessionID == "" &&
		c.RemoteAddress == "" &&
		c.Environment == "" &&
		c.AppName == "" &&
		c.CurrentTime == "" &&
		len(c.Properties) == 0
}

// Equal reports structural equality.
func (c EvaluationContext) Equal(other EvaluationContext) bool {
	return Fingerprint(c) == Fingerprint(other)
}

// ContextFingerprint is the BLAKE3 digest of a context's canonical encoding.
type ContextFingerprint [32]byte

func (f ContextFingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// encMode uses Core Deterministic Encoding: sorted map keys and shortest
// forms, so structurally equal contexts always encode to identical bytes.
var encMode cbor.EncMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("flagsync: CBOR encoder initialization failed: " + err.Error())
	}
}

// Fingerprint returns the canonical digest of c. Property order and a nil
// versus empty Properties map do not affect the result.
func Fingerprint(c EvaluationContext) ContextFingerprint {
	if len(c.Properties) == 0 {
		c.Properties = nil
	}

	encoded, err := encMode.Marshal(c)
	if err != nil {
		// Strings and a string map always encode.
		panic("flagsync: could not encode evaluation context: " + err.Error())
	}

	return blake3.Sum256(encoded)
}
