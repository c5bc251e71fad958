// Package typedstreamtest builds minimal streamtyped blobs for tests in
// other packages.
package typedstreamtest

import "encoding/binary"

func appendInt(buf []byte, n int64) []byte {
	switch {
	case n >= 0 && n <= 0x7F:
		return append(buf, byte(n))
	case n >= -32768 && n <= 32767:
		buf = append(buf, 0x81)
		return binary.BigEndian.AppendUint16(buf, uint16(int16(n)))
	default:
		buf = append(buf, 0x82)
		return binary.BigEndian.AppendUint32(buf, uint32(int32(n)))
	}
}

func appendClass(buf []byte, name string) []byte {
	buf = append(buf, 0x84)
	buf = appendInt(buf, int64(len(name)))
	buf = append(buf, name...)
	buf = appendInt(buf, 0)  // class version
	return append(buf, 0x87) // no superclass
}

// Body encodes text as an attributed-string stream with no attribute runs.
func Body(text string) []byte {
	buf := []byte("streamtyped")
	buf = append(buf, 0x00, 0x03) // version
	buf = append(buf, 0x84)       // sentinel
	buf = appendClass(buf, "NSAttributedString")
	buf = appendClass(buf, "NSString")
	buf = appendInt(buf, 0) // UTF-8
	buf = appendInt(buf, int64(len(text)))
	buf = append(buf, text...)
	buf = appendInt(buf, 0)  // no runs
	return append(buf, 0x86) // end marker
}
