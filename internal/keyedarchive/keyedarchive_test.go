package keyedarchive

import (
	"errors"
	"testing"

	"howett.net/plist"
)

// marshalArchive builds a binary NSKeyedArchiver plist from an objects table.
func marshalArchive(t *testing.T, objects []any, root plist.UID) []byte {
	t.Helper()
	envelope := map[string]any{
		"$version":  100000,
		"$archiver": "NSKeyedArchiver",
		"$objects":  objects,
		"$top":      map[string]any{"root": root},
	}
	data, err := plist.Marshal(envelope, plist.BinaryFormat)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func classHint(name string) map[string]any {
	return map[string]any{"$classname": name, "$classes": []any{name, "NSObject"}}
}

func TestResolveDictionary(t *testing.T) {
	objects := []any{
		"$null",
		map[string]any{ // root NSDictionary
			"$class":     plist.UID(5),
			"NS.keys":    []any{plist.UID(2)},
			"NS.objects": []any{plist.UID(3)},
		},
		"link",
		map[string]any{ // NSURL
			"$class":      plist.UID(6),
			"NS.relative": plist.UID(4),
		},
		"https://example.com",
		classHint("NSDictionary"),
		classHint("NSURL"),
	}

	root, err := Parse(marshalArchive(t, objects, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got := root.StringKey("link"); got != "https://example.com" {
		t.Errorf("link = %q, want the resolved URL", got)
	}
	if root.Class != "NSDictionary" {
		t.Errorf("class = %q", root.Class)
	}
}

func TestResolveArrayAndSharedNode(t *testing.T) {
	objects := []any{
		"$null",
		map[string]any{
			"$class":     plist.UID(3),
			"NS.objects": []any{plist.UID(2), plist.UID(2)},
		},
		"shared",
		classHint("NSArray"),
	}

	root, err := Parse(marshalArchive(t, objects, 1))
	if err != nil {
		t.Fatal(err)
	}
	arr, err := root.Array()
	if err != nil {
		t.Fatal(err)
	}
	if len(arr) != 2 {
		t.Fatalf("got %d items, want 2", len(arr))
	}
	if arr[0] != arr[1] {
		t.Error("shared reference resolved to distinct nodes")
	}
}

func TestResolveCycle(t *testing.T) {
	// Dictionary 1 contains itself under "self".
	objects := []any{
		"$null",
		map[string]any{
			"$class":     plist.UID(3),
			"NS.keys":    []any{plist.UID(2)},
			"NS.objects": []any{plist.UID(1)},
		},
		"self",
		classHint("NSDictionary"),
	}

	root, err := Parse(marshalArchive(t, objects, 1))
	if err != nil {
		t.Fatal(err)
	}
	dict, err := root.Dict()
	if err != nil {
		t.Fatal(err)
	}
	inner := dict["self"]
	if !inner.BackEdge {
		t.Fatal("cycle edge is not marked as a back edge")
	}
	// The back edge may be traversed and lands on the root's own table.
	if got := inner.StringKey("self"); got != "" {
		t.Errorf("unexpected value through back edge: %q", got)
	}
	innerDict, err := inner.Dict()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := innerDict["self"]; !ok {
		t.Error("back edge does not reach the shared node")
	}
}

func TestStringClassUnwrap(t *testing.T) {
	objects := []any{
		"$null",
		map[string]any{
			"$class":    plist.UID(3),
			"NS.string": plist.UID(2),
		},
		"hello",
		classHint("NSMutableString"),
	}
	root, err := Parse(marshalArchive(t, objects, 1))
	if err != nil {
		t.Fatal(err)
	}
	s, err := root.String()
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Errorf("string = %q", s)
	}
}

func TestUnresolvedRef(t *testing.T) {
	objects := []any{
		"$null",
		map[string]any{
			"$class":     plist.UID(3),
			"NS.keys":    []any{plist.UID(2)},
			"NS.objects": []any{plist.UID(99)},
		},
		"key",
		classHint("NSDictionary"),
	}
	_, err := Parse(marshalArchive(t, objects, 1))
	var unresolved *UnresolvedRef
	if !errors.As(err, &unresolved) {
		t.Fatalf("got %v, want UnresolvedRef", err)
	}
	if unresolved.UID != 99 {
		t.Errorf("uid = %d, want 99", unresolved.UID)
	}
}

func TestMalformedPlist(t *testing.T) {
	cases := []struct {
		desc string
		data []byte
	}{
		{"garbage", []byte("not a plist at all")},
		{"empty", nil},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Parse(tc.data)
			if !errors.Is(err, ErrMalformedPlist) {
				t.Errorf("got %v, want ErrMalformedPlist", err)
			}
		})
	}

	t.Run("no objects table", func(t *testing.T) {
		data, err := plist.Marshal(map[string]any{"$top": map[string]any{}}, plist.BinaryFormat)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Parse(data); !errors.Is(err, ErrMalformedPlist) {
			t.Errorf("got %v, want ErrMalformedPlist", err)
		}
	})
}

func TestTypeMismatch(t *testing.T) {
	objects := []any{"$null", "just a string"}
	root, err := Parse(marshalArchive(t, objects, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := root.Dict(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Dict() error = %v, want ErrTypeMismatch", err)
	}
	if _, err := root.Array(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Array() error = %v, want ErrTypeMismatch", err)
	}
	if _, err := root.Int(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Int() error = %v, want ErrTypeMismatch", err)
	}
	s, err := root.String()
	if err != nil || s != "just a string" {
		t.Errorf("String() = %q, %v", s, err)
	}
}
