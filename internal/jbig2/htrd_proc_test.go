package jbig2

import (
	"errors"
	"testing"
)

func TestHalftoneCellOrigins(t *testing.T) {
	proc := NewHTRDProc()
	proc.GridX = 0
	proc.GridY = 0
	proc.VectorX = 0x0200 // 2 pixels per column step
	proc.VectorY = 0x0100 // 1 pixel of shear

	x, y := proc.cellOrigin(0, 0)
	if x != 0 || y != 0 {
		t.Fatalf("cell (0,0) at (%d,%d)", x, y)
	}
	x, y = proc.cellOrigin(0, 3)
	if x != 6 || y != -3 {
		t.Fatalf("cell (0,3) at (%d,%d), want (6,-3)", x, y)
	}
	x, y = proc.cellOrigin(2, 1)
	if x != 4 || y != 3 {
		t.Fatalf("cell (2,1) at (%d,%d), want (4,3)", x, y)
	}
}

func TestHalftoneRejectsMMRGrayscale(t *testing.T) {
	proc := NewHTRDProc()
	proc.Width = 4
	proc.Height = 4
	proc.MMR = true
	proc.GridWidth = 2
	proc.GridHeight = 2
	proc.VectorX = 0x0200
	proc.Patterns = []*Image{NewImage(2, 2), NewImage(2, 2)}
	contexts := make([]ArithContext, contextSizeForTemplate(0))
	_, err := proc.Decode(NewArithDecoder(NewBitStream([]byte{0xff, 0xac})), contexts)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for MMR grayscale, got %v", err)
	}
}

func TestHalftoneRejectsGrayValueOutOfRange(t *testing.T) {
	// Three patterns need two bitplanes, so gray value 3 is decodable but
	// exceeds the pattern count.
	plane := NewImage(1, 1)
	plane.SetPixel(0, 0, 1)

	enc := newMQEncoder()
	contexts := make([]ArithContext, contextSizeForTemplate(0))
	grayAt := [4]AdaptivePixel{{3, -1}, {-3, -1}, {2, -2}, {-2, -2}}
	encodeGenericRegion(enc, contexts, plane, 0, grayAt) // MSB plane = 1
	zero := NewImage(1, 1)
	zero.SetPixel(0, 0, 0)
	// Gray-coded LSB plane: bit0 XOR bit1 = 1 XOR 1 = 0 for value 3.
	encodeGenericRegion(enc, contexts, zero, 0, grayAt)

	proc := NewHTRDProc()
	proc.Width = 2
	proc.Height = 2
	proc.GridWidth = 1
	proc.GridHeight = 1
	proc.VectorX = 0x0200
	proc.Patterns = []*Image{NewImage(2, 2), NewImage(2, 2), NewImage(2, 2)}
	decCtx := make([]ArithContext, contextSizeForTemplate(0))
	if _, err := proc.Decode(NewArithDecoder(NewBitStream(enc.flush())), decCtx); err == nil {
		t.Fatal("expected error for gray value beyond pattern count")
	}
}
