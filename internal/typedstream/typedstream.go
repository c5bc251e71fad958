// Package typedstream decodes Apple's legacy typed-object binary stream
// ("streamtyped") used for rich-text message bodies and edit entries.
//
// A stream carries one archived NSAttributedString: the body text followed by
// a sequence of attribute runs. The wire grammar is token based:
//
//	stream     := "streamtyped" version(u16 BE) sentinel(1 byte) object
//	integer    := 0x00..0x7F inline | 0x81 i16 BE | 0x82 i32 BE | 0x83 i64 BE
//	float      := 0x89 f64 BE
//	data       := 0x88 integer bytes
//	nil        := 0x87
//	class      := 0x84 name(integer + bytes) version(integer) super(class | ref | nil)
//	ref        := 0x85 integer           -- index into the per-stream class table
//	object     := (class | ref) ivars    -- ivar layout chosen by the class name
//
// Class records register themselves in a per-stream, forward-only reference
// table as they appear; a ref targeting an index that has not been registered
// yet is a protocol violation, not a forward reference.
package typedstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

const signature = "streamtyped"

// Token tags.
const (
	tagInt16  = 0x81
	tagInt32  = 0x82
	tagInt64  = 0x83
	tagClass  = 0x84
	tagRef    = 0x85
	tagEnd    = 0x86
	tagNil    = 0x87
	tagData   = 0x88
	tagFloat  = 0x89
	inlineMax = 0x7F
)

// String encodings declared by string records.
const (
	encUTF8    = 0
	encUTF16BE = 1
)

// MalformedStream reports a protocol violation at a byte offset.
type MalformedStream struct {
	Offset int
	Reason string
}

func (e *MalformedStream) Error() string {
	return fmt.Sprintf("malformed typedstream at offset %d: %s", e.Offset, e.Reason)
}

// ErrMalformedStream matches any *MalformedStream via errors.Is.
var ErrMalformedStream = errors.New("malformed typedstream")

func (e *MalformedStream) Is(target error) bool { return target == ErrMalformedStream }

// Value is a decoded attribute value: string, int64, float64, []byte,
// *Object, or nil.
type Value any

// Object is an archived object that is not one of the scalar kinds, e.g. a
// nested NSNumber wrapper inside an attribute dictionary.
type Object struct {
	Class string
	Value Value
}

// AttributeRun annotates a sub-range of the decoded text. Runs appear in
// document order; overlapping runs are legal and preserved verbatim.
type AttributeRun struct {
	Start      int
	Length     int
	Attributes map[string]Value
}

// Body is the result of decoding a message body stream.
type Body struct {
	Text string
	Runs []AttributeRun
}

type decoder struct {
	buf     []byte
	pos     int
	classes []string
}

// Decode parses a streamtyped blob into its text and attribute runs.
func Decode(data []byte) (*Body, error) {
	d := &decoder{buf: data}
	if err := d.header(); err != nil {
		return nil, err
	}
	return d.attributedString()
}

func (d *decoder) fail(format string, args ...any) error {
	return &MalformedStream{Offset: d.pos, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, d.fail("unexpected end of stream, need %d bytes", n)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) header() error {
	sig, err := d.take(len(signature))
	if err != nil {
		return err
	}
	if string(sig) != signature {
		d.pos = 0
		return d.fail("signature mismatch")
	}
	// Two byte version plus the sentinel byte; neither affects decoding.
	if _, err := d.take(3); err != nil {
		return err
	}
	return nil
}

func (d *decoder) integer() (int64, error) {
	tag, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case tag <= inlineMax:
		return int64(tag), nil
	case tag == tagInt16:
		b, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case tag == tagInt32:
		b, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case tag == tagInt64:
		b, err := d.take(8)
		if err != nil {
			return 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	}
	d.pos--
	return 0, d.fail("unknown integer tag 0x%02x", tag)
}

func (d *decoder) float() (float64, error) {
	tag, err := d.byte()
	if err != nil {
		return 0, err
	}
	if tag != tagFloat {
		d.pos--
		return 0, d.fail("unknown float tag 0x%02x", tag)
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (d *decoder) lengthPrefixed() ([]byte, error) {
	n, err := d.integer()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, d.fail("negative length %d", n)
	}
	return d.take(int(n))
}

// class parses a class record or back-reference and returns the class name.
// New classes register in the reference table in the order they appear.
func (d *decoder) class() (string, error) {
	tag, err := d.byte()
	if err != nil {
		return "", err
	}
	switch tag {
	case tagClass:
		name, err := d.lengthPrefixed()
		if err != nil {
			return "", err
		}
		if _, err := d.integer(); err != nil { // class version
			return "", err
		}
		d.classes = append(d.classes, string(name))
		// Superclass chain: nested class records, a back-reference, or nil.
		super, err := d.byte()
		if err != nil {
			return "", err
		}
		switch super {
		case tagNil:
		case tagClass, tagRef:
			d.pos--
			if _, err := d.class(); err != nil {
				return "", err
			}
		default:
			d.pos--
			return "", d.fail("unknown superclass tag 0x%02x", super)
		}
		return string(name), nil
	case tagRef:
		idx, err := d.integer()
		if err != nil {
			return "", err
		}
		if idx < 0 || int(idx) >= len(d.classes) {
			return "", d.fail("class reference %d out of range (table size %d)", idx, len(d.classes))
		}
		return d.classes[idx], nil
	}
	d.pos--
	return "", d.fail("expected class record, got tag 0x%02x", tag)
}

// object parses a class reference and dispatches on the class name for the
// ivar layout.
func (d *decoder) object() (*Object, error) {
	name, err := d.class()
	if err != nil {
		return nil, err
	}
	switch name {
	case "NSString", "NSMutableString":
		s, err := d.stringIvars()
		if err != nil {
			return nil, err
		}
		return &Object{Class: name, Value: s}, nil
	case "NSNumber":
		tag := byte(0)
		if d.pos < len(d.buf) {
			tag = d.buf[d.pos]
		}
		if tag == tagFloat {
			f, err := d.float()
			if err != nil {
				return nil, err
			}
			return &Object{Class: name, Value: f}, nil
		}
		n, err := d.integer()
		if err != nil {
			return nil, err
		}
		return &Object{Class: name, Value: n}, nil
	case "NSData", "NSMutableData":
		tag, err := d.byte()
		if err != nil {
			return nil, err
		}
		if tag != tagData {
			d.pos--
			return nil, d.fail("expected data tag, got 0x%02x", tag)
		}
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return &Object{Class: name, Value: append([]byte(nil), b...)}, nil
	case "NSDictionary", "NSMutableDictionary":
		attrs, err := d.dictionaryIvars()
		if err != nil {
			return nil, err
		}
		return &Object{Class: name, Value: attrs}, nil
	}
	return nil, d.fail("unsupported class %q", name)
}

func (d *decoder) stringIvars() (string, error) {
	enc, err := d.integer()
	if err != nil {
		return "", err
	}
	raw, err := d.lengthPrefixed()
	if err != nil {
		return "", err
	}
	switch enc {
	case encUTF8:
		if !utf8.Valid(raw) {
			return "", d.fail("invalid UTF-8 in string record")
		}
		return string(raw), nil
	case encUTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(raw)
		if err != nil {
			return "", d.fail("invalid UTF-16 in string record: %v", err)
		}
		return string(out), nil
	}
	return "", d.fail("unknown string encoding %d", enc)
}

func (d *decoder) dictionaryIvars() (map[string]Value, error) {
	count, err := d.integer()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, d.fail("negative dictionary count %d", count)
	}
	attrs := make(map[string]Value, count)
	for i := int64(0); i < count; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		ks, ok := key.(string)
		if !ok {
			return nil, d.fail("dictionary key is not a string")
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		attrs[ks] = val
	}
	return attrs, nil
}

// value parses one attribute value of any supported kind. Scalars decode to
// their Go types; string and number objects unwrap to their scalar value so
// callers see `string` and `int64` rather than wrapper objects.
func (d *decoder) value() (Value, error) {
	if d.pos >= len(d.buf) {
		return nil, d.fail("unexpected end of stream")
	}
	switch tag := d.buf[d.pos]; {
	case tag == tagNil:
		d.pos++
		return nil, nil
	case tag == tagFloat:
		return d.float()
	case tag == tagData:
		d.pos++
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	case tag == tagClass || tag == tagRef:
		obj, err := d.object()
		if err != nil {
			return nil, err
		}
		switch v := obj.Value.(type) {
		case string, int64, float64:
			return v, nil
		}
		return obj, nil
	case tag <= inlineMax || tag == tagInt16 || tag == tagInt32 || tag == tagInt64:
		return d.integer()
	}
	return nil, d.fail("unknown tag 0x%02x", d.buf[d.pos])
}

// attributedString parses the top-level NSAttributedString: the full text
// followed by its runs.
func (d *decoder) attributedString() (*Body, error) {
	name, err := d.class()
	if err != nil {
		return nil, err
	}
	if name != "NSAttributedString" && name != "NSMutableAttributedString" {
		return nil, d.fail("top-level object is %q, want attributed string", name)
	}

	textObj, err := d.object()
	if err != nil {
		return nil, err
	}
	text, ok := textObj.Value.(string)
	if !ok {
		return nil, d.fail("attributed string body is not a string")
	}

	runCount, err := d.integer()
	if err != nil {
		return nil, err
	}
	if runCount < 0 {
		return nil, d.fail("negative run count %d", runCount)
	}

	body := &Body{Text: text}
	for i := int64(0); i < runCount; i++ {
		start, err := d.integer()
		if err != nil {
			return nil, err
		}
		length, err := d.integer()
		if err != nil {
			return nil, err
		}
		var attrs map[string]Value
		if d.pos < len(d.buf) && d.buf[d.pos] == tagNil {
			d.pos++
		} else {
			obj, err := d.object()
			if err != nil {
				return nil, err
			}
			attrs, ok = obj.Value.(map[string]Value)
			if !ok {
				return nil, d.fail("run attributes are not a dictionary")
			}
		}
		body.Runs = append(body.Runs, AttributeRun{
			Start:      int(start),
			Length:     int(length),
			Attributes: attrs,
		})
	}

	tag, err := d.byte()
	if err != nil || tag != tagEnd {
		if err == nil {
			d.pos--
			return nil, d.fail("missing end marker, got 0x%02x", tag)
		}
		return nil, err
	}
	return body, nil
}
