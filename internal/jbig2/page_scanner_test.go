package jbig2

import (
	"bytes"
	"testing"
)

// buildFile assembles a sequential file from segments.
func buildFile(t *testing.T, segments ...[]byte) *File {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(true, 1))
	for _, seg := range segments {
		buf.Write(seg)
	}
	f, err := ParseFile(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return f
}

const stripedFlag = 0x8000

func TestScanPageKnownHeight(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(32, 24, 0, 0)),
		buildSegment(2, SegmentEndOfPage, 1, nil, nil),
	)
	geom, err := scanPage(f, 1)
	if err != nil {
		t.Fatal(err)
	}
	if geom.Width != 32 || geom.Height != 24 {
		t.Fatalf("geometry %dx%d", geom.Width, geom.Height)
	}
}

func TestScanPageUnknownHeightFromStripes(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 0xffffffff, 0, stripedFlag|4)),
		buildSegment(2, SegmentEndOfStripe, 1, nil, endOfStripeData(3)),
		buildSegment(3, SegmentEndOfStripe, 1, nil, endOfStripeData(7)),
		buildSegment(4, SegmentEndOfStripe, 1, nil, endOfStripeData(11)),
		buildSegment(5, SegmentEndOfPage, 1, nil, nil),
	)
	geom, err := scanPage(f, 1)
	if err != nil {
		t.Fatal(err)
	}
	if geom.Height != 12 {
		t.Fatalf("height = %d, want 12", geom.Height)
	}
}

func TestScanPageNonMonotoneStripes(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 0xffffffff, 0, stripedFlag|8)),
		buildSegment(2, SegmentEndOfStripe, 1, nil, endOfStripeData(7)),
		buildSegment(3, SegmentEndOfStripe, 1, nil, endOfStripeData(3)),
		buildSegment(4, SegmentEndOfPage, 1, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for decreasing stripe coordinates")
	}
}

func TestScanPageStripeExceedsMaximum(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 0xffffffff, 0, stripedFlag|4)),
		buildSegment(2, SegmentEndOfStripe, 1, nil, endOfStripeData(9)),
		buildSegment(3, SegmentEndOfPage, 1, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for stripe taller than the maximum")
	}
}

func TestScanPageUnknownHeightRequiresStriping(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 0xffffffff, 0, 0)),
		buildSegment(2, SegmentEndOfPage, 1, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for unknown height without striping")
	}
}

func TestScanPageEndOfStripeOnNonStripedPage(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)),
		buildSegment(2, SegmentEndOfStripe, 1, nil, endOfStripeData(3)),
		buildSegment(3, SegmentEndOfPage, 1, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for EndOfStripe on non-striped page")
	}
}

func TestScanPageSegmentAfterEndOfPage(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)),
		buildSegment(2, SegmentEndOfPage, 1, nil, nil),
		buildSegment(3, SegmentEndOfStripe, 1, nil, endOfStripeData(3)),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for segment after EndOfPage")
	}
}

func TestScanPageMissingEndOfPage(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)),
		buildSegment(2, SegmentEndOfFile, 0, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for missing EndOfPage")
	}
}

func TestScanPageDuplicatePageInformation(t *testing.T) {
	f := buildFile(t,
		buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)),
		buildSegment(2, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)),
		buildSegment(3, SegmentEndOfPage, 1, nil, nil),
	)
	if _, err := scanPage(f, 1); err == nil {
		t.Fatal("expected error for duplicate PageInformation")
	}
}

func TestScanPageNumbersHeaderMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fileHeaderBytes(true, 2)) // header claims two pages
	buf.Write(buildSegment(1, SegmentPageInformation, 1, nil, pageInfoData(8, 8, 0, 0)))
	buf.Write(buildSegment(2, SegmentEndOfPage, 1, nil, nil))
	f, err := ParseFile(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := scanPageNumbers(f); err == nil {
		t.Fatal("expected error for page count mismatch")
	}
}

func TestPageInformationFlags(t *testing.T) {
	info, err := parsePageInformation(pageInfoData(8, 8, 0x44|0x08, stripedFlag|9))
	if err != nil {
		t.Fatal(err)
	}
	if !info.DefaultPixelValue() {
		t.Fatal("default pixel flag not parsed")
	}
	if info.DefaultCombinationOperator() != ComposeAND {
		t.Fatalf("default op = %v, want AND", info.DefaultCombinationOperator())
	}
	if !info.DirectRegionSegmentsOverrideDefaultCombinationOperator() {
		t.Fatal("override flag not parsed")
	}
	if !info.IsStriped() || info.MaximumStripeHeight() != 9 {
		t.Fatalf("striping parsed as %v/%d", info.IsStriped(), info.MaximumStripeHeight())
	}
}
