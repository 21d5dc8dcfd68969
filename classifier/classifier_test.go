package classifier

import (
	"errors"
	"testing"
)

func TestParseDirectJSON(t *testing.T) {
	t.Parallel()

	tc, err := Parse(`{"tool":"transfer","params":{"token":"RISE","recipient":"0xabc","amount":"1.5"}}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.Tool != "transfer" {
		t.Fatalf("Parse() tool = %q, want transfer", tc.Tool)
	}
	if tc.Params["amount"] != "1.5" {
		t.Fatalf("Parse() amount = %v, want 1.5", tc.Params["amount"])
	}
}

func TestParseCodeBlock(t *testing.T) {
	t.Parallel()

	text := "Here is the tool call:\n```json\n{\"tool\":\"get_balances\",\"params\":{}}\n```\nDone."
	tc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.Tool != "get_balances" {
		t.Fatalf("Parse() tool = %q, want get_balances", tc.Tool)
	}
}

func TestParseEmbeddedObject(t *testing.T) {
	t.Parallel()

	text := `Sure! I'll mint that for you: {"tool":"mint","params":{"token":"RISE"}} enjoy.`
	tc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.Tool != "mint" {
		t.Fatalf("Parse() tool = %q, want mint", tc.Tool)
	}
}

func TestParseRejectsInvalidOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose", "I cannot help with that."},
		{"unknown tool", `{"tool":"rm_rf","params":{}}`},
		{"missing param", `{"tool":"transfer","params":{"token":"RISE"}}`},
		{"empty param", `{"tool":"mint","params":{"token":"  "}}`},
		{"swap without amount", `{"tool":"swap","params":{"from_token":"USDC","to_token":"RISE"}}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tc.text)
			if err == nil {
				t.Fatalf("Parse(%q) accepted invalid output", tc.text)
			}
			if !errors.Is(err, ErrParseFailure) {
				t.Fatalf("Parse(%q) error = %v, want ErrParseFailure", tc.text, err)
			}
		})
	}
}

func TestParseNilParamsBecomesEmptyMap(t *testing.T) {
	t.Parallel()

	tc, err := Parse(`{"tool":"list_alerts"}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.Params == nil {
		t.Fatalf("Parse() left Params nil")
	}
}
