package jbig2

import (
	"bytes"
	"errors"
	"fmt"
)

var fileSignature = []byte{0x97, 0x4A, 0x42, 0x32, 0x0D, 0x0A, 0x1A, 0x0A}

// Sniff reports whether data begins with the JBIG2 file signature.
func Sniff(data []byte) bool {
	return len(data) >= len(fileSignature) && bytes.Equal(data[:len(fileSignature)], fileSignature)
}

// Organization is the Annex D file organization.
type Organization int

const (
	OrganizationSequential Organization = iota
	OrganizationRandomAccess
	OrganizationEmbedded
)

func (o Organization) String() string {
	switch o {
	case OrganizationSequential:
		return "Sequential"
	case OrganizationRandomAccess:
		return "RandomAccess"
	case OrganizationEmbedded:
		return "Embedded"
	default:
		return "Organization(?)"
	}
}

// FileHeader holds the parsed D.4 file header fields.
type FileHeader struct {
	Organization            Organization
	NumberOfPages           uint32
	HasNumberOfPages        bool
	Uses12ATPixelTemplates  bool
	ContainsColoredSegments bool
}

// File is the fully parsed segment stream: every header read, every data
// slice located, segments indexed by number.
type File struct {
	Header   FileHeader
	Segments []*Segment
	byNumber map[uint32]int
}

// SegmentByNumber returns the segment with the given number, or nil.
func (f *File) SegmentByNumber(n uint32) *Segment {
	idx, ok := f.byNumber[n]
	if !ok {
		return nil
	}
	return f.Segments[idx]
}

// ParseFile parses a self-contained JBIG2 file (signature, file header,
// segments in sequential or random-access organization).
func ParseFile(data []byte) (*File, error) {
	if !Sniff(data) {
		return nil, errors.New("jbig2: invalid file signature")
	}
	bs := NewBitStream(data)
	bs.AddOffset(len(fileSignature))

	flags, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&0xf0 != 0 {
		return nil, errors.New("jbig2: reserved file header flag bits set")
	}
	header := FileHeader{
		Uses12ATPixelTemplates:  flags&0x04 != 0,
		ContainsColoredSegments: flags&0x08 != 0,
	}
	if flags&0x01 != 0 {
		header.Organization = OrganizationSequential
	} else {
		header.Organization = OrganizationRandomAccess
	}
	if flags&0x02 == 0 {
		header.NumberOfPages, err = bs.ReadUint32()
		if err != nil {
			return nil, err
		}
		header.HasNumberOfPages = true
	}

	f := &File{Header: header}
	if err := f.parseSegments(data, bs.Offset()); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseEmbedded parses an embedded (PDF JBIG2Decode) stream: no file
// header, chunks concatenated in order, EndOfPage and EndOfFile forbidden.
func ParseEmbedded(chunks [][]byte) (*File, error) {
	var data []byte
	switch len(chunks) {
	case 0:
		return nil, errors.New("jbig2: empty embedded stream")
	case 1:
		data = chunks[0]
	default:
		data = bytes.Join(chunks, nil)
	}

	f := &File{Header: FileHeader{Organization: OrganizationEmbedded}}
	if err := f.parseSegments(data, 0); err != nil {
		return nil, err
	}
	for _, seg := range f.Segments {
		switch seg.Header.Type {
		case SegmentEndOfPage:
			return nil, errors.New("jbig2: end of page segment in embedded stream")
		case SegmentEndOfFile:
			return nil, errors.New("jbig2: end of file segment in embedded stream")
		}
	}
	return f, nil
}

// parseSegments reads all segment headers and locates their data slices
// according to the file organization.
func (f *File) parseSegments(data []byte, start int) error {
	bs := NewBitStream(data)
	bs.AddOffset(start)

	var headers []SegmentHeader
	var datas [][]byte

	takeData := func(h *SegmentHeader) error {
		offset := bs.Offset()
		if h.LengthWasUnknown {
			length, err := scanUnknownSegmentLength(data[offset:])
			if err != nil {
				return err
			}
			h.DataLength = length
		}
		if int64(offset)+int64(h.DataLength) > int64(len(data)) {
			return fmt.Errorf("jbig2: segment %d data length %d exceeds input", h.Number, h.DataLength)
		}
		datas = append(datas, data[offset:offset+int(h.DataLength)])
		bs.AddOffset(int(h.DataLength))
		return nil
	}

	for bs.BytesLeft() > 0 {
		h, err := parseSegmentHeader(bs)
		if err != nil {
			return err
		}
		headers = append(headers, h)
		if f.Header.Organization != OrganizationRandomAccess {
			if err := takeData(&headers[len(headers)-1]); err != nil {
				return err
			}
		}
		// A random-access header section is terminated by EndOfFile.
		if h.Type == SegmentEndOfFile {
			break
		}
	}

	if f.Header.Organization == OrganizationRandomAccess {
		if len(headers) == 0 || headers[len(headers)-1].Type != SegmentEndOfFile {
			return errors.New("jbig2: random-access file missing end of file segment")
		}
		for i := range headers {
			if err := takeData(&headers[i]); err != nil {
				return err
			}
		}
	}

	f.byNumber = make(map[uint32]int, len(headers))
	for i := range headers {
		if _, dup := f.byNumber[headers[i].Number]; dup {
			return fmt.Errorf("jbig2: duplicate segment number %d", headers[i].Number)
		}
		f.Segments = append(f.Segments, &Segment{Header: headers[i], Data: datas[i]})
		f.byNumber[headers[i].Number] = i
	}
	return nil
}
