// Package result defines how a dialog session reports why it ended.
//
// A terminated session produces exactly one Envelope. Callers inspect it
// through a Decoder, always passing the identifier they launched the session
// with so that results belonging to other sessions are never misread:
//
//	dec := result.Decode(env)
//	switch {
//	case dec.IsPositive("delete-confirm"):
//		// delete
//	case dec.IsCancelled("delete-confirm"):
//		// nothing
//	}
package result

import (
	"fmt"

	"github.com/ggoodman/dialog-session-go/bundle"
)

// RequestTag correlates result deliveries with the launch that produced them.
const RequestTag = 8800

// Code is the closed set of reasons a session ended.
type Code int

const (
	// Cancelled is both the initial code of every session and the explicit
	// cancel code.
	Cancelled    Code = 0
	SingleChoice Code = 8801
	MultiChoice  Code = 8802
	PlainChoice  Code = 8803
	Positive     Code = 8804
	Negative     Code = 8805
	Neutral      Code = 8806
)

// Valid reports whether c is one of the defined codes.
func (c Code) Valid() bool {
	switch c {
	case Cancelled, SingleChoice, MultiChoice, PlainChoice, Positive, Negative, Neutral:
		return true
	}
	return false
}

func (c Code) String() string {
	switch c {
	case Cancelled:
		return "cancelled"
	case SingleChoice:
		return "single_choice"
	case MultiChoice:
		return "multi_choice"
	case PlainChoice:
		return "plain_choice"
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	case Neutral:
		return "neutral"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Envelope is the structured outcome of one session.
type Envelope struct {
	Code       Code          `json:"resultCode"`
	Identifier string        `json:"identifier"`
	Params     bundle.Bundle `json:"parameters"`
	Responses  bundle.Bundle `json:"responses,omitempty"`
	// Which is the zero-based selection index, or the button constant for
	// button results. Nil when nothing was selected.
	Which *int `json:"which,omitempty"`
	// Checked is only set by multi-choice selections.
	Checked *bool `json:"checked,omitempty"`
}

// Decoder exposes typed predicates over an Envelope. The zero Decoder and a
// Decoder over a nil envelope are valid and report nothing.
type Decoder struct {
	env *Envelope
}

// Decode wraps env. env may be nil.
func Decode(env *Envelope) Decoder { return Decoder{env: env} }

// IsValid reports whether the envelope belongs to the session launched with
// identifier id. Empty identifiers never match.
func (d Decoder) IsValid(id string) bool {
	return d.env != nil && id != "" && d.env.Identifier == id
}

// IsValidCode reports whether the envelope belongs to id and ended with code.
func (d Decoder) IsValidCode(id string, code Code) bool {
	return d.IsValid(id) && d.env.Code == code
}

func (d Decoder) IsPositive(id string) bool     { return d.IsValidCode(id, Positive) }
func (d Decoder) IsNegative(id string) bool     { return d.IsValidCode(id, Negative) }
func (d Decoder) IsNeutral(id string) bool      { return d.IsValidCode(id, Neutral) }
func (d Decoder) IsPlainChoice(id string) bool  { return d.IsValidCode(id, PlainChoice) }
func (d Decoder) IsSingleChoice(id string) bool { return d.IsValidCode(id, SingleChoice) }
func (d Decoder) IsMultiChoice(id string) bool  { return d.IsValidCode(id, MultiChoice) }
func (d Decoder) IsCancelled(id string) bool    { return d.IsValidCode(id, Cancelled) }

// Code returns the raw result code, Cancelled for an empty decoder.
func (d Decoder) Code() Code {
	if d.env == nil {
		return Cancelled
	}
	return d.env.Code
}

// Params returns the caller parameters echoed back by the session.
func (d Decoder) Params() bundle.Bundle {
	if d.env == nil {
		return nil
	}
	return d.env.Params
}

// Responses returns the payload collected from the content at termination.
func (d Decoder) Responses() bundle.Bundle {
	if d.env == nil {
		return nil
	}
	return d.env.Responses
}

// BindParams decodes the echoed caller parameters into the struct pointed to
// by dst. See bundle.Bundle.Bind for the field rules.
func (d Decoder) BindParams(dst any) error {
	return d.Params().Bind(dst)
}

// BindResponses decodes the collected responses into the struct pointed to
// by dst.
//
//	var form struct {
//		Name string `json:"name" bundle:"minLength=1"`
//	}
//	if err := result.Decode(env).BindResponses(&form); err != nil {
//		return err
//	}
func (d Decoder) BindResponses(dst any) error {
	return d.Responses().Bind(dst)
}

// Which returns the selection index, 0 if absent.
func (d Decoder) Which() int {
	if d.env == nil || d.env.Which == nil {
		return 0
	}
	return *d.env.Which
}

// Checked returns the multi-choice checked flag, false if absent.
func (d Decoder) Checked() bool {
	if d.env == nil || d.env.Checked == nil {
		return false
	}
	return *d.env.Checked
}

// Envelope returns the wrapped envelope, possibly nil.
func (d Decoder) Envelope() *Envelope { return d.env }
