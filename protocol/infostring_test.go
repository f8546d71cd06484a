package protocol

import (
	"strings"
	"testing"
)

func TestInfoValueForKey(t *testing.T) {
	info := `\hostname\^2Cool ^7Server\sv_maxclients\32\gametype\freeroam\mapname\downtown`

	cases := []struct {
		key  string
		want string
	}{
		{"hostname", "^2Cool ^7Server"},
		{"sv_maxclients", "32"},
		{"gametype", "freeroam"},
		{"mapname", "downtown"},
		{"HOSTNAME", "^2Cool ^7Server"}, // keys compare case-insensitively
		{"missing", ""},
	}

	for _, tc := range cases {
		if got := InfoValueForKey(info, tc.key); got != tc.want {
			t.Errorf("InfoValueForKey(%q): got %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestInfoValueForKey_NoLeadingBackslash(t *testing.T) {
	if got := InfoValueForKey(`hostname\srv`, "hostname"); got != "srv" {
		t.Errorf("got %q, want \"srv\"", got)
	}
}

func TestInfoValueForKey_Malformed(t *testing.T) {
	if got := InfoValueForKey("", "hostname"); got != "" {
		t.Errorf("empty string: got %q", got)
	}
	if got := InfoValueForKey(`\hostname`, "hostname"); got != "" {
		t.Errorf("dangling key: got %q", got)
	}
	if got := InfoValueForKey(`\a\b`, ""); got != "" {
		t.Errorf("empty key: got %q", got)
	}

	oversized := `\k\` + strings.Repeat("x", MaxInfoString)
	if got := InfoValueForKey(oversized, "k"); got != "" {
		t.Errorf("oversized string: got %d bytes, want empty", len(got))
	}
}

func TestStripColors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"^2Cool ^7Server", "Cool Server"},
		{"plain", "plain"},
		{"^^22", "^2"}, // first caret escapes nothing, second eats the 2
		{"trailing^", "trailing^"},
		{"^a not a code", "^a not a code"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := StripColors(tc.in); got != tc.want {
			t.Errorf("StripColors(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
