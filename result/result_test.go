package result

import (
	"encoding/json"
	"testing"

	"github.com/ggoodman/dialog-session-go/bundle"
)

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestDecoder_IsValid(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
		id   string
		want bool
	}{
		{name: "match", env: &Envelope{Identifier: "A"}, id: "A", want: true},
		{name: "mismatch", env: &Envelope{Identifier: "A"}, id: "B", want: false},
		{name: "empty query", env: &Envelope{Identifier: "A"}, id: "", want: false},
		{name: "empty envelope id", env: &Envelope{}, id: "", want: false},
		{name: "nil envelope", env: nil, id: "A", want: false},
		{name: "case sensitive", env: &Envelope{Identifier: "a"}, id: "A", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decode(tc.env).IsValid(tc.id); got != tc.want {
				t.Fatalf("IsValid(%q) = %v, want %v", tc.id, got, tc.want)
			}
		})
	}
}

func TestDecoder_PredicatesImplyValid(t *testing.T) {
	codes := []Code{Cancelled, SingleChoice, MultiChoice, PlainChoice, Positive, Negative, Neutral}
	for _, code := range codes {
		dec := Decode(&Envelope{Identifier: "A", Code: code})
		preds := map[Code]func(string) bool{
			Cancelled:    dec.IsCancelled,
			SingleChoice: dec.IsSingleChoice,
			MultiChoice:  dec.IsMultiChoice,
			PlainChoice:  dec.IsPlainChoice,
			Positive:     dec.IsPositive,
			Negative:     dec.IsNegative,
			Neutral:      dec.IsNeutral,
		}
		for pc, pred := range preds {
			if got := pred("A"); got != (pc == code) {
				t.Fatalf("code %s: predicate for %s = %v", code, pc, got)
			}
			if pred("other") {
				t.Fatalf("code %s: predicate for %s true for wrong identifier", code, pc)
			}
		}
	}
}

func TestDecoder_Accessors(t *testing.T) {
	var empty Decoder
	if empty.Which() != 0 || empty.Checked() || empty.Params() != nil || empty.Responses() != nil {
		t.Fatalf("empty decoder must yield defaults")
	}
	if empty.Code() != Cancelled {
		t.Fatalf("empty decoder code must be Cancelled")
	}

	env := &Envelope{
		Identifier: "M",
		Code:       MultiChoice,
		Params:     bundle.New().Set("k", "v"),
		Responses:  bundle.New().Set("r", 1),
		Which:      intPtr(2),
		Checked:    boolPtr(true),
	}
	dec := Decode(env)
	if dec.Which() != 2 || !dec.Checked() {
		t.Fatalf("unexpected which/checked: %d/%v", dec.Which(), dec.Checked())
	}
	if dec.Params().String("k", "") != "v" {
		t.Fatalf("params not echoed")
	}
	if dec.Responses().Int("r", 0) != 1 {
		t.Fatalf("responses not exposed")
	}
}

func TestEnvelope_JSONFieldNames(t *testing.T) {
	env := Envelope{Identifier: "A", Code: Positive, Which: intPtr(-1)}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"resultCode", "identifier", "parameters", "which"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing field %q in %s", k, raw)
		}
	}
	if _, ok := m["checked"]; ok {
		t.Fatalf("checked must be omitted when unset")
	}
	if m["resultCode"].(float64) != float64(Positive) {
		t.Fatalf("unexpected result code %v", m["resultCode"])
	}
}

func TestCode_Valid(t *testing.T) {
	if !Positive.Valid() || !Cancelled.Valid() {
		t.Fatalf("expected defined codes to be valid")
	}
	if Code(42).Valid() {
		t.Fatalf("expected undefined code to be invalid")
	}
	if Code(42).String() != "code(42)" {
		t.Fatalf("unexpected string %q", Code(42).String())
	}
}

func TestDecoder_Bind(t *testing.T) {
	env := &Envelope{
		Code:       Positive,
		Identifier: "form",
		Params:     bundle.New().Set("row", 3),
		Responses:  bundle.New().Set("name", "ada").Set("tier", "gold"),
	}

	var resp struct {
		Name string  `json:"name" bundle:"minLength=1"`
		Tier string  `json:"tier" bundle:"enum=std|gold"`
		Note *string `json:"note"`
	}
	if err := Decode(env).BindResponses(&resp); err != nil {
		t.Fatalf("bind responses: %v", err)
	}
	if resp.Name != "ada" || resp.Tier != "gold" || resp.Note != nil {
		t.Fatalf("unexpected responses: %+v", resp)
	}

	var params struct {
		Row int `json:"row"`
	}
	if err := Decode(env).BindParams(&params); err != nil || params.Row != 3 {
		t.Fatalf("bind params: %+v %v", params, err)
	}

	var bad struct {
		Tier string `json:"tier" bundle:"enum=std"`
	}
	if err := Decode(env).BindResponses(&bad); err == nil {
		t.Fatalf("expected enum violation")
	}

	var required struct {
		Name string `json:"name"`
	}
	if err := Decode(nil).BindResponses(&required); err == nil {
		t.Fatalf("expected missing field error on empty decoder")
	}
}
