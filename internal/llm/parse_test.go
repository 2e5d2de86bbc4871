package llm

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseJSONObject(t *testing.T) {
	plain := `{"vendor_name":"ACME","total_amount":12.5}`
	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain", raw: plain},
		{name: "json fence", raw: "```json\n" + plain + "\n```"},
		{name: "bare fence", raw: "```\n" + plain + "\n```"},
		{name: "fence same line", raw: "```json" + plain + "```"},
		{name: "surrounding whitespace", raw: "\n\t  " + plain + "  \n"},
		{name: "control bytes", raw: "{\"vendor_name\":\"AC\x01ME\",\x02\"total_amount\":12.5}"},
		{name: "fence and control bytes", raw: "```json\n\x00" + plain + "\x1f\n```"},
		{name: "prose before fence", raw: "Here you go:\n```json" + plain + "```"},
		{name: "prose around object", raw: "Extracted fields: " + plain + " Let me know if you need more."},
		{name: "trailing comma", raw: `{"vendor_name":"ACME","total_amount":12.5,}`},
		{name: "trailing comma in fence", raw: "```json\n{\n  \"vendor_name\": \"ACME\",\n  \"total_amount\": 12.5,\n}\n```"},
	}

	_, want, err := ParseJSONObject(plain)
	if err != nil {
		t.Fatalf("baseline parse: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := ParseJSONObject(tt.raw)
			if err != nil {
				t.Fatalf("ParseJSONObject: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestParseJSONObjectRepairKeepsStrings(t *testing.T) {
	raw := `Result: {"notes": "braces } and commas ,} stay", "items": [1, 2,],}`
	b, got, err := ParseJSONObject(raw)
	if err != nil {
		t.Fatalf("ParseJSONObject: %v", err)
	}
	if got["notes"] != "braces } and commas ,} stay" {
		t.Errorf("notes = %q", got["notes"])
	}
	if items, _ := got["items"].([]any); len(items) != 2 {
		t.Errorf("items = %v", got["items"])
	}
	if string(b) != `{"notes": "braces } and commas ,} stay", "items": [1, 2]}` {
		t.Errorf("repaired bytes = %s", b)
	}
}

func TestParseJSONObjectKeepsWhitespaceControls(t *testing.T) {
	_, got, err := ParseJSONObject("{\n\t\"notes\": \"a\\nb\"\r\n}")
	if err != nil {
		t.Fatalf("ParseJSONObject: %v", err)
	}
	if got["notes"] != "a\nb" {
		t.Errorf("notes = %q", got["notes"])
	}
}

func TestParseJSONObjectErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrEmptyResponse},
		{name: "only fences", raw: "```json\n```", want: ErrEmptyResponse},
		{name: "prose", raw: "Sorry, I cannot help with that.", want: ErrInvalidJSON},
		{name: "array", raw: `[1,2]`, want: ErrInvalidJSON},
		{name: "null", raw: `null`, want: ErrInvalidJSON},
		{name: "unbalanced", raw: `Here: {"vendor_name": "ACME"`, want: ErrInvalidJSON},
		{name: "broken inside braces", raw: `{"vendor_name": ACME}`, want: ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseJSONObject(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStripControlChars(t *testing.T) {
	got := StripControlChars("a\x01b\x7fc\td\ne\rf")
	if got != "abc\td\ne\rf" {
		t.Errorf("got %q", got)
	}
}
