package typedstream

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"unicode/utf16"
)

// enc builds typedstream blobs for tests.
type enc struct {
	buf     []byte
	classes map[string]int
}

func newEnc() *enc {
	e := &enc{classes: map[string]int{}}
	e.buf = append(e.buf, []byte(signature)...)
	e.buf = append(e.buf, 0x00, 0x03) // version
	e.buf = append(e.buf, 0x84)       // sentinel
	return e
}

func (e *enc) raw(b ...byte) *enc {
	e.buf = append(e.buf, b...)
	return e
}

func (e *enc) integer(n int64) *enc {
	switch {
	case n >= 0 && n <= inlineMax:
		e.buf = append(e.buf, byte(n))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		e.buf = append(e.buf, tagInt16)
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(int16(n)))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		e.buf = append(e.buf, tagInt32)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(int32(n)))
	default:
		e.buf = append(e.buf, tagInt64)
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(n))
	}
	return e
}

// class emits a class record the first time a name is used and a
// back-reference on subsequent uses.
func (e *enc) class(name string) *enc {
	if idx, ok := e.classes[name]; ok {
		e.buf = append(e.buf, tagRef)
		e.integer(int64(idx))
		return e
	}
	e.classes[name] = len(e.classes)
	e.buf = append(e.buf, tagClass)
	e.integer(int64(len(name)))
	e.buf = append(e.buf, name...)
	e.integer(0)                  // class version
	e.buf = append(e.buf, tagNil) // no superclass
	return e
}

func (e *enc) utf8String(s string) *enc {
	e.class("NSString")
	e.integer(encUTF8)
	e.integer(int64(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

func (e *enc) utf16String(s string) *enc {
	units := utf16.Encode([]rune(s))
	e.class("NSString")
	e.integer(encUTF16BE)
	e.integer(int64(len(units) * 2))
	for _, u := range units {
		e.buf = binary.BigEndian.AppendUint16(e.buf, u)
	}
	return e
}

// body wraps text and runs into a full attributed-string stream.
func body(build func(e *enc)) []byte {
	e := newEnc()
	build(e)
	e.buf = append(e.buf, tagEnd)
	return e.buf
}

func simpleBody(text string, runs int) []byte {
	return body(func(e *enc) {
		e.class("NSAttributedString")
		e.utf8String(text)
		e.integer(int64(runs))
		for i := 0; i < runs; i++ {
			e.integer(0).integer(int64(len(text))).raw(tagNil)
		}
	})
}

func TestDecodePlainText(t *testing.T) {
	b, err := Decode(simpleBody("Noter test", 1))
	if err != nil {
		t.Fatal(err)
	}
	if b.Text != "Noter test" {
		t.Errorf("text = %q, want %q", b.Text, "Noter test")
	}
	if len(b.Runs) != 1 || b.Runs[0].Start != 0 || b.Runs[0].Length != 10 {
		t.Errorf("runs = %+v", b.Runs)
	}
}

func TestDecodeUTF16SurrogatePairs(t *testing.T) {
	text := "𝖍𝖊𝖑𝖑𝖔 🎉"
	data := body(func(e *enc) {
		e.class("NSAttributedString")
		e.utf16String(text)
		e.integer(0)
	})
	b, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if b.Text != text {
		t.Errorf("text = %q, want %q", b.Text, text)
	}
}

func TestDecodeMultiPartWithPlaceholders(t *testing.T) {
	text := "￼test 1￼test 2 ￼test 3"
	b, err := Decode(simpleBody(text, 0))
	if err != nil {
		t.Fatal(err)
	}
	if b.Text != text {
		t.Errorf("text = %q", b.Text)
	}
}

func TestDecodeAttributeRuns(t *testing.T) {
	data := body(func(e *enc) {
		e.class("NSAttributedString")
		e.utf8String("hello world")
		e.integer(2)
		// First run: message part attribute as an NSNumber.
		e.integer(0).integer(5)
		e.class("NSDictionary")
		e.integer(1)
		e.utf8String("__kIMMessagePartAttributeName")
		e.class("NSNumber")
		e.integer(0)
		// Second run overlaps the first; overlap is preserved verbatim.
		e.integer(3).integer(8)
		e.class("NSDictionary")
		e.integer(1)
		e.utf8String("__kIMLinkAttributeName")
		e.utf8String("https://example.com")
	})

	b, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(b.Runs))
	}
	if v := b.Runs[0].Attributes["__kIMMessagePartAttributeName"]; v != int64(0) {
		t.Errorf("part attribute = %#v, want int64(0)", v)
	}
	if b.Runs[1].Start != 3 || b.Runs[1].Length != 8 {
		t.Errorf("overlapping run = %+v", b.Runs[1])
	}
	if v := b.Runs[1].Attributes["__kIMLinkAttributeName"]; v != "https://example.com" {
		t.Errorf("link attribute = %#v", v)
	}
}

func TestClassBackReference(t *testing.T) {
	// Two NSString ivars: the second uses a table reference.
	data := body(func(e *enc) {
		e.class("NSAttributedString")
		e.utf8String("hi")
		e.integer(1)
		e.integer(0).integer(2)
		e.class("NSDictionary")
		e.integer(1)
		e.utf8String("key") // back-references NSString
		e.utf8String("value")
	})
	if _, err := Decode(data); err != nil {
		t.Fatal(err)
	}
}

func TestErrors(t *testing.T) {
	cases := []struct {
		desc string
		data []byte
	}{
		{"signature mismatch", []byte("streamtypo\x00\x00\x03\x84")},
		{"truncated header", []byte("streamty")},
		{"unknown tag", body(func(e *enc) {
			e.raw(0xF0)
		})},
		{"forward back-reference", body(func(e *enc) {
			e.raw(tagRef).integer(4)
		})},
		{"unsupported class", body(func(e *enc) {
			e.class("NSColor")
		})},
		{"bad string encoding", body(func(e *enc) {
			e.class("NSAttributedString")
			e.class("NSString").integer(9).integer(0)
			e.integer(0)
		})},
		{"truncated text", body(func(e *enc) {
			e.class("NSAttributedString")
			e.class("NSString").integer(encUTF8).integer(500)
		})},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Decode(tc.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedStream) {
				t.Errorf("error %v is not ErrMalformedStream", err)
			}
			var ms *MalformedStream
			if !errors.As(err, &ms) {
				t.Errorf("error %v is not *MalformedStream", err)
			}
		})
	}
}

func TestEmptyTextZeroRuns(t *testing.T) {
	b, err := Decode(simpleBody("", 0))
	if err != nil {
		t.Fatal(err)
	}
	if b.Text != "" || len(b.Runs) != 0 {
		t.Errorf("got %+v", b)
	}
}
