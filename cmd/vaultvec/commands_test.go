package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	cases := map[string]bool{
		"y\n":    true,
		"YES\n":  true,
		" yes ":  true,
		"n\n":    false,
		"\n":     false,
		"":       false,
		"sure\n": false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(input), &out, "Delete?"); got != want {
			t.Errorf("confirm(%q) = %v, want %v", input, got, want)
		}
		if out.String() != "Delete? [y/N]: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
