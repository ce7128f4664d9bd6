package jbig2

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fileHeaderBytes builds a non-embedded file header.
func fileHeaderBytes(sequential bool, pages uint32) []byte {
	out := append([]byte(nil), fileSignature...)
	flags := byte(0)
	if sequential {
		flags |= 0x01
	}
	out = append(out, flags)
	return binary.BigEndian.AppendUint32(out, pages)
}

// pageInfoData builds a page information segment payload.
func pageInfoData(width, height uint32, flags uint8, striping uint16) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint32(out, width)
	out = binary.BigEndian.AppendUint32(out, height)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = append(out, flags)
	return binary.BigEndian.AppendUint16(out, striping)
}

func endOfStripeData(y uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, y)
}

func TestSniff(t *testing.T) {
	if !Sniff([]byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0a, 0x00}) {
		t.Fatal("valid signature not sniffed")
	}
	if Sniff([]byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0b}) {
		t.Fatal("corrupt signature sniffed")
	}
	if Sniff([]byte{0x97, 0x4a}) {
		t.Fatal("short input sniffed")
	}
}

func TestParseFileSequential(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(true, 1))
	buf.Write(buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)))
	buf.Write(buildSegment(2, SegmentEndOfPage, 1, nil, nil))
	buf.Write(buildSegment(3, SegmentEndOfFile, 0, nil, nil))

	f, err := ParseFile(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if f.Header.Organization != OrganizationSequential {
		t.Fatalf("organization = %v", f.Header.Organization)
	}
	if !f.Header.HasNumberOfPages || f.Header.NumberOfPages != 1 {
		t.Fatalf("page count %v/%d", f.Header.HasNumberOfPages, f.Header.NumberOfPages)
	}
	if len(f.Segments) != 3 {
		t.Fatalf("segment count = %d", len(f.Segments))
	}
	if seg := f.SegmentByNumber(1); seg == nil || len(seg.Data) != 19 {
		t.Fatal("page information segment not indexed")
	}
}

func TestParseFileRandomAccess(t *testing.T) {
	// All headers first (terminated by EndOfFile), then the data blocks
	// concatenated in header order.
	info := pageInfoData(8, 8, 0, 0)
	stripe := endOfStripeData(7)

	header1 := buildSegment(1, SegmentPageInformation, 1, nil, nil)
	header1 = header1[:len(header1)-4]
	header1 = binary.BigEndian.AppendUint32(header1, uint32(len(info)))
	header2 := buildSegment(2, SegmentEndOfStripe, 1, nil, nil)
	header2 = header2[:len(header2)-4]
	header2 = binary.BigEndian.AppendUint32(header2, uint32(len(stripe)))
	header3 := buildSegment(3, SegmentEndOfPage, 1, nil, nil)
	header4 := buildSegment(4, SegmentEndOfFile, 0, nil, nil)

	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(false, 1))
	buf.Write(header1)
	buf.Write(header2)
	buf.Write(header3)
	buf.Write(header4)
	buf.Write(info)
	buf.Write(stripe)

	f, err := ParseFile(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if f.Header.Organization != OrganizationRandomAccess {
		t.Fatalf("organization = %v", f.Header.Organization)
	}
	if got := f.SegmentByNumber(2).Data; !bytes.Equal(got, stripe) {
		t.Fatalf("segment 2 data = %v", got)
	}
	if got := f.SegmentByNumber(1).Data; !bytes.Equal(got, info) {
		t.Fatalf("segment 1 data = %v", got)
	}
}

func TestParseFileRejectsReservedFlags(t *testing.T) {
	data := append([]byte(nil), fileSignature...)
	data = append(data, 0x10) // reserved bit set
	if _, err := ParseFile(data); err == nil {
		t.Fatal("expected error for reserved file flag bits")
	}
}

func TestParseFileRejectsBadSignature(t *testing.T) {
	if _, err := ParseFile([]byte("not a jbig2 file")); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestParseFileRejectsOversizeSegment(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(true, 1))
	seg := buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0))
	buf.Write(seg[:len(seg)-4]) // truncate the data
	if _, err := ParseFile(buf.Bytes()); err == nil {
		t.Fatal("expected error for segment data past end of file")
	}
}

func TestParseEmbedded(t *testing.T) {
	chunk1 := buildSegment(1, SegmentSymbolDictionary, 0, nil, nil)
	chunk2 := buildSegment(2, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0))

	f, err := ParseEmbedded([][]byte{chunk1, chunk2})
	if err != nil {
		t.Fatal(err)
	}
	if f.Header.Organization != OrganizationEmbedded {
		t.Fatalf("organization = %v", f.Header.Organization)
	}
	if len(f.Segments) != 2 {
		t.Fatalf("segment count = %d", len(f.Segments))
	}
}

func TestParseEmbeddedForbidsEndSegments(t *testing.T) {
	eop := buildSegment(1, SegmentEndOfPage, 1, nil, nil)
	if _, err := ParseEmbedded([][]byte{eop}); err == nil {
		t.Fatal("expected error for EndOfPage in embedded stream")
	}
	eof := buildSegment(1, SegmentEndOfFile, 0, nil, nil)
	if _, err := ParseEmbedded([][]byte{eof}); err == nil {
		t.Fatal("expected error for EndOfFile in embedded stream")
	}
}

func TestParseFileDuplicateSegmentNumber(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(true, 1))
	buf.Write(buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)))
	buf.Write(buildSegment(1, SegmentEndOfPage, 1, nil, nil))
	if _, err := ParseFile(buf.Bytes()); err == nil {
		t.Fatal("expected error for duplicate segment number")
	}
}
