package assemble

import "testing"

func TestCleanAssociatedGUID(t *testing.T) {
	const guid = "5E2B1E2B-1E2B-1E2B-1E2B-1E2B1E2B1E2B"
	cases := []struct {
		in       string
		wantPart int
		wantGUID string
		wantOK   bool
	}{
		{"p:2/" + guid, 2, guid, true},
		{"p:0/" + guid, 0, guid, true},
		{"bp:" + guid, 0, guid, true},
		{guid, 0, guid, true},
		{guid + "/extra", 0, guid, true},
		{"", 0, "", false},
		{"p:garbage", 0, "", false},
	}
	for _, tc := range cases {
		part, g, ok := cleanAssociatedGUID(tc.in)
		if part != tc.wantPart || g != tc.wantGUID || ok != tc.wantOK {
			t.Errorf("cleanAssociatedGUID(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tc.in, part, g, ok, tc.wantPart, tc.wantGUID, tc.wantOK)
		}
	}
}

func TestParseThreadPart(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"0:0,11", 0},
		{"2:5,3", 2},
		{"7", 7},
		{"", 0},
		{"x:1", 0},
	}
	for _, tc := range cases {
		if got := parseThreadPart(tc.in); got != tc.want {
			t.Errorf("parseThreadPart(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTapbackVerbs(t *testing.T) {
	if got := Disliked.Verb(); got != "Disliked" {
		t.Errorf("verb = %q", got)
	}
	if got := Laughed.Verb(); got != "Laughed at" {
		t.Errorf("verb = %q", got)
	}
}
