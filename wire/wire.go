// Package wire defines the launch request that travels from a session builder
// to the runtime that creates the host, and seals it so only this process
// group can forge one.
//
// A launch request carries only serializable data. Live content values go
// through the handoff registry and the request carries the token.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/ggoodman/dialog-session-go/bundle"
	"github.com/ggoodman/dialog-session-go/handoff"
	"github.com/ggoodman/dialog-session-go/result"
)

// ErrInvalidPayload is returned when a sealed payload cannot be verified or
// decoded.
var ErrInvalidPayload = errors.New("wire: invalid launch payload")

// LaunchRequest is the serializable part of a show request.
type LaunchRequest struct {
	// Handoff references the content value; nil for layout-only sessions.
	Handoff    *handoff.Token `json:"handoffToken" jsonschema:"description=One-time content handoff token"`
	Cancelable bool           `json:"cancelable"`
	Identifier string         `json:"identifier" jsonschema:"description=Session identifier; empty means unmanaged"`
	Theme      string         `json:"theme,omitempty"`
	// Layout names a host layout registered on the runtime.
	Layout string        `json:"layout,omitempty"`
	Params bundle.Bundle `json:"parameters"`
}

// Encode marshals r to JSON.
func (r LaunchRequest) Encode() ([]byte, error) {
	if r.Params == nil {
		r.Params = bundle.New()
	}
	return json.Marshal(r)
}

// DecodeLaunchRequest parses the JSON form of a launch request.
func DecodeLaunchRequest(data []byte) (LaunchRequest, error) {
	var r LaunchRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return LaunchRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if r.Params == nil {
		r.Params = bundle.New()
	}
	return r, nil
}

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
}

// LaunchRequestSchema returns the JSON Schema of the launch request payload.
func LaunchRequestSchema() *jsonschema.Schema {
	return reflector().Reflect(new(LaunchRequest))
}

// EnvelopeSchema returns the JSON Schema of a result envelope.
func EnvelopeSchema() *jsonschema.Schema {
	return reflector().Reflect(new(result.Envelope))
}
