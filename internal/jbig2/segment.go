package jbig2

import (
	"bytes"
	"errors"
	"fmt"
)

// SegmentType is the 6-bit segment type tag (7.3).
type SegmentType uint8

const (
	SegmentSymbolDictionary                         SegmentType = 0
	SegmentIntermediateTextRegion                   SegmentType = 4
	SegmentImmediateTextRegion                      SegmentType = 6
	SegmentImmediateLosslessTextRegion              SegmentType = 7
	SegmentPatternDictionary                        SegmentType = 16
	SegmentIntermediateHalftoneRegion               SegmentType = 20
	SegmentImmediateHalftoneRegion                  SegmentType = 22
	SegmentImmediateLosslessHalftoneRegion          SegmentType = 23
	SegmentIntermediateGenericRegion                SegmentType = 36
	SegmentImmediateGenericRegion                   SegmentType = 38
	SegmentImmediateLosslessGenericRegion           SegmentType = 39
	SegmentIntermediateGenericRefinementRegion      SegmentType = 40
	SegmentImmediateGenericRefinementRegion         SegmentType = 42
	SegmentImmediateLosslessGenericRefinementRegion SegmentType = 43
	SegmentPageInformation                          SegmentType = 48
	SegmentEndOfPage                                SegmentType = 49
	SegmentEndOfStripe                              SegmentType = 50
	SegmentEndOfFile                                SegmentType = 51
	SegmentProfiles                                 SegmentType = 52
	SegmentTables                                   SegmentType = 53
	SegmentColorPalette                             SegmentType = 54
	SegmentExtension                                SegmentType = 62
)

// unknownDataLength is the sentinel value in the data length field, legal
// only on immediate generic regions.
const unknownDataLength = 0xffffffff

// SegmentHeader is the parsed form of a 7.2 segment header.
type SegmentHeader struct {
	Number          uint32
	Type            SegmentType
	ReferredTo      []uint32
	PageAssociation uint32
	// DataLength is the resolved data length; for unknown-length generic
	// regions the file parser fills it in by scanning the data.
	DataLength uint32
	// LengthWasUnknown records that the header carried the 0xFFFFFFFF
	// sentinel.
	LengthWasUnknown bool
	// RetainBit is bit 7 of the flags byte (deferred-non-retain); parsed
	// and otherwise ignored.
	RetainBit bool
}

// Segment pairs a header with its data slice and, after decoding, the
// artifacts later segments borrow through their referred-to lists.
type Segment struct {
	Header SegmentHeader
	Data   []byte

	Symbols  []*Image
	Patterns []*Image
	Table    *HuffmanTable

	extensionSeen bool
}

// parseSegmentHeader reads one segment header from the stream.
func parseSegmentHeader(bs *BitStream) (SegmentHeader, error) {
	var h SegmentHeader
	number, err := bs.ReadUint32()
	if err != nil {
		return h, err
	}
	h.Number = number

	flags, err := bs.ReadByte()
	if err != nil {
		return h, err
	}
	h.Type = SegmentType(flags & 0x3f)
	pageAssociationIs32Bit := flags&0x40 != 0
	h.RetainBit = flags&0x80 != 0

	countByte, err := bs.ReadByte()
	if err != nil {
		return h, err
	}
	count := uint32(countByte >> 5)
	switch count {
	case 5, 6:
		return h, fmt.Errorf("jbig2: invalid referred-to segment count field %d", count)
	case 7:
		// Long form: the byte just read plus three more form a 32-bit
		// count, followed by retention flag bytes to skip.
		rest, err := bs.ReadByte()
		if err != nil {
			return h, err
		}
		b2, err := bs.ReadByte()
		if err != nil {
			return h, err
		}
		b3, err := bs.ReadByte()
		if err != nil {
			return h, err
		}
		count = (uint32(countByte)<<24 | uint32(rest)<<16 | uint32(b2)<<8 | uint32(b3)) & 0x1fffffff
		if count > maxReferredSegments {
			return h, fmt.Errorf("jbig2: referred-to segment count %d too large", count)
		}
		retainBytes := (count + 8) / 8
		for i := uint32(0); i < retainBytes; i++ {
			if _, err := bs.ReadByte(); err != nil {
				return h, err
			}
		}
	}

	h.ReferredTo = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		var ref uint32
		switch {
		case h.Number <= 256:
			b, err := bs.ReadByte()
			if err != nil {
				return h, err
			}
			ref = uint32(b)
		case h.Number <= 65536:
			v, err := bs.ReadUint16()
			if err != nil {
				return h, err
			}
			ref = uint32(v)
		default:
			v, err := bs.ReadUint32()
			if err != nil {
				return h, err
			}
			ref = v
		}
		if ref >= h.Number {
			return h, fmt.Errorf("jbig2: segment %d refers to segment %d, which is not earlier", h.Number, ref)
		}
		h.ReferredTo = append(h.ReferredTo, ref)
	}

	if pageAssociationIs32Bit {
		h.PageAssociation, err = bs.ReadUint32()
	} else {
		var b byte
		b, err = bs.ReadByte()
		h.PageAssociation = uint32(b)
	}
	if err != nil {
		return h, err
	}

	length, err := bs.ReadUint32()
	if err != nil {
		return h, err
	}
	if length == unknownDataLength {
		if h.Type != SegmentImmediateGenericRegion {
			return h, errors.New("jbig2: unknown data length only allowed for immediate generic regions")
		}
		h.LengthWasUnknown = true
	}
	h.DataLength = length
	return h, nil
}

// scanUnknownSegmentLength resolves an unknown-length immediate generic
// region (7.2.7): the data ends with 0xFF 0xAC (arithmetic) or 0x00 0x00
// (MMR) followed by a four-byte row count. The coding form is in the flags
// byte at offset 17, and the terminator cannot occur before offset 19.
func scanUnknownSegmentLength(data []byte) (uint32, error) {
	const headerLen = 19
	const rowCountLen = 4
	if len(data) < headerLen+rowCountLen {
		return 0, errors.New("jbig2: segment too short to resolve unknown data length")
	}
	usesMMR := data[17]&1 != 0
	terminator := []byte{0xff, 0xac}
	if usesMMR {
		terminator = []byte{0x00, 0x00}
	}
	idx := bytes.Index(data[headerLen:len(data)-rowCountLen], terminator)
	if idx < 0 {
		return 0, errors.New("jbig2: missing end sequence in unknown-length segment")
	}
	return uint32(headerLen + idx + len(terminator) + rowCountLen), nil
}
