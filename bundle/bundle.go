// Package bundle provides the opaque key-value payload carried through a
// dialog session: caller parameters echoed back in results, responses
// collected from content at termination and content state saved across a
// host rebuild.
//
// A Bundle is a plain map so it survives a JSON round-trip through the launch
// payload. After such a round-trip numbers come back as float64; the typed
// accessors and Bind accept both native Go numbers and float64.
package bundle

import (
	"encoding/json"
	"maps"
)

// Bundle is a key-value payload. The zero value (nil) is a valid empty
// bundle for reads; use Set or make(Bundle) for writes.
type Bundle map[string]any

// New returns an empty, writable bundle.
func New() Bundle { return make(Bundle) }

// Clone returns a shallow copy. Cloning nil yields nil.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	return maps.Clone(b)
}

// Set stores v under key and returns the bundle for chaining.
func (b Bundle) Set(key string, v any) Bundle {
	b[key] = v
	return b
}

// Has reports whether key is present.
func (b Bundle) Has(key string) bool {
	_, ok := b[key]
	return ok
}

// String returns the string stored under key, or def.
func (b Bundle) String(key, def string) string {
	if s, ok := b[key].(string); ok {
		return s
	}
	return def
}

// Int returns the integer stored under key, or def. JSON-decoded float64
// values are truncated toward zero.
func (b Bundle) Int(key string, def int) int {
	if f, ok := asFloat(b[key]); ok {
		return int(f)
	}
	return def
}

// Float returns the number stored under key, or def.
func (b Bundle) Float(key string, def float64) float64 {
	if f, ok := asFloat(b[key]); ok {
		return f
	}
	return def
}

// Bool returns the boolean stored under key, or def.
func (b Bundle) Bool(key string, def bool) bool {
	if v, ok := b[key].(bool); ok {
		return v
	}
	return def
}

// Equal reports whether two bundles carry the same JSON representation.
func Equal(a, b Bundle) bool {
	if len(a) != len(b) {
		return false
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
