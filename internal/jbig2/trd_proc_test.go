package jbig2

import "testing"

func TestTextRegionPlacement(t *testing.T) {
	const wi, hi = 4, 6
	cases := []struct {
		transposed bool
		corner     Corner
		x, y, adv  int
	}{
		{false, CornerTopLeft, 10, 20, wi - 1},
		{false, CornerTopRight, 10 - wi + 1, 20, 0},
		{false, CornerBottomLeft, 10, 20 - hi + 1, wi - 1},
		{false, CornerBottomRight, 10 - wi + 1, 20 - hi + 1, 0},
		{true, CornerTopLeft, 20, 10, hi - 1},
		{true, CornerTopRight, 20 - wi + 1, 10, hi - 1},
		{true, CornerBottomLeft, 20, 10 - hi + 1, 0},
		{true, CornerBottomRight, 20 - wi + 1, 10 - hi + 1, 0},
	}
	for _, tc := range cases {
		p := &TRDProc{Transposed: tc.transposed, RefCorner: tc.corner}
		x, y, adv := p.placement(10, 20, wi, hi)
		if x != tc.x || y != tc.y || adv != tc.adv {
			t.Errorf("transposed=%v corner=%v: got (%d,%d,%d), want (%d,%d,%d)",
				tc.transposed, tc.corner, x, y, adv, tc.x, tc.y, tc.adv)
		}
	}
}

func TestTextRegionRejectsNonZeroDefaultPixel(t *testing.T) {
	p := NewTRDProc()
	p.SBDefPixel = true
	p.Width = 4
	p.Height = 4
	p.SBStrips = 1
	p.SBNumInstances = 1
	p.SBSyms = []*Image{NewImage(1, 1)}
	if _, err := p.DecodeArith(NewArithDecoder(NewBitStream([]byte{0xff, 0xac})), nil); err == nil {
		t.Fatal("expected error for non-zero default pixel")
	}
}

func TestTextRegionRejectsBadStripSize(t *testing.T) {
	p := NewTRDProc()
	p.Width = 4
	p.Height = 4
	p.SBStrips = 3
	p.SBNumInstances = 1
	p.SBSyms = []*Image{NewImage(1, 1)}
	if _, err := p.DecodeArith(NewArithDecoder(NewBitStream([]byte{0xff, 0xac})), nil); err == nil {
		t.Fatal("expected error for invalid strip size")
	}
}

func TestDecodeSymbolIDCodes(t *testing.T) {
	// Assign length 1 to both symbols via two direct run codes: each run
	// code value is itself Huffman-coded over the 35 four-bit lengths.
	var w bitWriter
	for i := 0; i < 35; i++ {
		// Run code 1 gets prefix length 1, everything else is unused.
		if i == 1 {
			w.writeBits(1, 4)
		} else {
			w.writeBits(0, 4)
		}
	}
	// Two symbols, each with code length 1 (run code 1, prefix "0").
	w.writeBits(0, 1)
	w.writeBits(0, 1)

	bs := NewBitStream(w.out)
	table, err := decodeSymbolIDCodes(bs, 2)
	if err != nil {
		t.Fatalf("decodeSymbolIDCodes: %v", err)
	}
	lines := table.Lines()
	if len(lines) != 2 {
		t.Fatalf("line count = %d", len(lines))
	}
	if lines[0].PrefLen != 1 || lines[1].PrefLen != 1 {
		t.Fatalf("prefix lengths %d,%d, want 1,1", lines[0].PrefLen, lines[1].PrefLen)
	}

	// Symbol IDs decode as 0 then 1.
	var payload bitWriter
	payload.writeBits(0, 1)
	payload.writeBits(1, 1)
	hd := NewHuffmanDecoder(NewBitStream(payload.out))
	for want := int32(0); want < 2; want++ {
		got, err := hd.ReadSymbolNonOOB(table)
		if err != nil || got != want {
			t.Fatalf("symbol id = %d, %v; want %d", got, err, want)
		}
	}
}
