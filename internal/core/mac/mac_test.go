package mac

import "testing"

func TestNormalize_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{name: "colon separated upper", in: "AA:BB:CC:DD:EE:FF", out: "aabbccddeeff"},
		{name: "dash separated", in: "aa-bb-cc-dd-ee-ff", out: "aabbccddeeff"},
		{name: "cisco dots", in: "aabb.ccdd.eeff", out: "aabbccddeeff"},
		{name: "already canonical", in: "0123456789ab", out: "0123456789ab"},
		{name: "mixed case bare", in: "0123456789AB", out: "0123456789ab"},
		{name: "empty", in: "", out: ""},
		{name: "idempotent", in: Normalize("AA:BB:CC:DD:EE:FF"), out: "aabbccddeeff"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.out {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.out)
			}
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"aabbccddeeff", true},
		{"0123456789ab", true},
		{"AABBCCDDEEFF", false}, // must be normalized first
		{"aabbccddeef", false},  // short
		{"aabbccddeeffa", false},
		{"aabbccddeefg", false}, // non-hex
		{"aa:bb:cc:dd:ee:ff", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := Valid(tc.in); got != tc.ok {
			t.Fatalf("Valid(%q) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("aabbccddeeff"); got != "aabbcc" {
		t.Fatalf("Prefix = %q, want aabbcc", got)
	}
	if got := Prefix("aabb"); got != "" {
		t.Fatalf("Prefix on short input = %q, want empty", got)
	}
}

func TestContainsNUL(t *testing.T) {
	if ContainsNUL("clean", "also clean") {
		t.Fatal("false positive on clean strings")
	}
	if !ContainsNUL("ok", "bad\x00ssid") {
		t.Fatal("missed embedded NUL")
	}
}
