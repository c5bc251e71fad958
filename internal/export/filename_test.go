package export

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a@x, +15550001", "a@x, +15550001"},
		{"a/b\\c:d", "a_b_c_d"},
		{".hidden", "hidden"},
		{"...", "conversation"},
		{"", "conversation"},
		{"tab\there", "tab_here"},
	}
	for _, tc := range cases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeNameTruncates(t *testing.T) {
	long := strings.Repeat("é", 300) // 2 bytes per rune
	got := sanitizeName(long)
	if len(got) > maxNameBytes {
		t.Errorf("len = %d, want <= %d", len(got), maxNameBytes)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
}

func TestNamerCollisions(t *testing.T) {
	n := newNamer("/out", ".txt")
	first := n.fileFor("Alice")
	second := n.fileFor("Alice")
	third := n.fileFor("Alice")

	if first != filepath.Join("/out", "Alice.txt") {
		t.Errorf("first = %q", first)
	}
	if second != filepath.Join("/out", "Alice-1.txt") {
		t.Errorf("second = %q", second)
	}
	if third != filepath.Join("/out", "Alice-2.txt") {
		t.Errorf("third = %q", third)
	}
	if other := n.fileFor("Bob"); other != filepath.Join("/out", "Bob.txt") {
		t.Errorf("other = %q", other)
	}
}
