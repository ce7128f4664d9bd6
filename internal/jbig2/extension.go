package jbig2

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Extension segment types (7.4.14). The high bit of the type word marks the
// extension as necessary for correct decoding.
const (
	extensionSingleByteCodedComment = 0x20000000
	extensionMultiByteCodedComment  = 0x20000002
	extensionNecessaryBit           = 0x80000000
)

// Comment is one key/value pair from a comment extension segment.
type Comment struct {
	Key   string
	Value string
}

// decodeExtension parses a 7.4.14 extension segment. Comment extensions
// yield their key/value pairs; a malformed comment body degrades to a
// warning, since comments are never marked necessary. An unknown extension
// is fatal only when the necessary bit is set; otherwise it is skipped
// with a returned warning.
func decodeExtension(data []byte) ([]Comment, string, error) {
	bs := NewBitStream(data)
	extType, err := bs.ReadUint32()
	if err != nil {
		return nil, "ignored truncated extension segment", nil
	}

	switch extType {
	case extensionSingleByteCodedComment:
		comments, err := decodeComments(bs, 1)
		if err != nil {
			return nil, fmt.Sprintf("ignored malformed comment extension: %v", err), nil
		}
		return comments, "", nil
	case extensionMultiByteCodedComment:
		comments, err := decodeComments(bs, 2)
		if err != nil {
			return nil, fmt.Sprintf("ignored malformed comment extension: %v", err), nil
		}
		return comments, "", nil
	}

	if extType&extensionNecessaryBit != 0 {
		return nil, "", fmt.Errorf("jbig2: unknown necessary extension type %#x", extType)
	}
	return nil, fmt.Sprintf("skipped unknown extension type %#x", extType), nil
}

// decodeComments reads zero-terminated key/value string pairs, terminated
// by an empty key. charWidth selects ISO-8859-1 (1) or UCS-2 (2) coding.
func decodeComments(bs *BitStream, charWidth int) ([]Comment, error) {
	readString := func() ([]byte, error) {
		var raw []byte
		for {
			var unit uint32
			var err error
			if charWidth == 1 {
				var b byte
				b, err = bs.ReadByte()
				unit = uint32(b)
			} else {
				var v uint16
				v, err = bs.ReadUint16()
				unit = uint32(v)
			}
			if err != nil {
				return nil, err
			}
			if unit == 0 {
				return raw, nil
			}
			if charWidth == 1 {
				raw = append(raw, byte(unit))
			} else {
				raw = append(raw, byte(unit>>8), byte(unit))
			}
		}
	}

	decodeText := func(raw []byte) (string, error) {
		if charWidth == 1 {
			return charmap.ISO8859_1.NewDecoder().String(string(raw))
		}
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		return dec.String(string(raw))
	}

	var comments []Comment
	for {
		key, err := readString()
		if err != nil {
			return nil, err
		}
		if len(key) == 0 {
			break
		}
		value, err := readString()
		if err != nil {
			return nil, err
		}
		keyText, err := decodeText(key)
		if err != nil {
			return nil, err
		}
		valueText, err := decodeText(value)
		if err != nil {
			return nil, err
		}
		comments = append(comments, Comment{Key: keyText, Value: valueText})
	}
	if bs.BytesLeft() != 0 {
		return nil, errors.New("jbig2: trailing data after comment extension")
	}
	return comments, nil
}
