package jbig2

import "testing"

func TestBitStreamBitReads(t *testing.T) {
	bs := NewBitStream([]byte{0b1010_1100, 0xff, 0x00})

	for i, want := range []uint32{1, 0, 1, 0} {
		got, err := bs.Read1Bit()
		if err != nil {
			t.Fatalf("Read1Bit %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("Read1Bit %d = %d, want %d", i, got, want)
		}
	}

	v, err := bs.ReadNBits(6)
	if err != nil {
		t.Fatalf("ReadNBits: %v", err)
	}
	if v != 0b1100_11 {
		t.Fatalf("ReadNBits = %#b, want 110011", v)
	}

	bs.AlignByte()
	if bs.Offset() != 2 {
		t.Fatalf("offset after align = %d, want 2", bs.Offset())
	}
	b, err := bs.ReadByte()
	if err != nil || b != 0 {
		t.Fatalf("ReadByte = %d, %v", b, err)
	}
	if _, err := bs.Read1Bit(); err == nil {
		t.Fatal("expected EOF")
	}
}

func TestBitStreamIntegerReads(t *testing.T) {
	bs := NewBitStream([]byte{0x12, 0x34, 0x56, 0x78, 0xab, 0xcd})
	v32, err := bs.ReadUint32()
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("ReadUint32 = %#x, %v", v32, err)
	}
	v16, err := bs.ReadUint16()
	if err != nil || v16 != 0xabcd {
		t.Fatalf("ReadUint16 = %#x, %v", v16, err)
	}
	if _, err := bs.ReadUint16(); err == nil {
		t.Fatal("expected EOF on short ReadUint16")
	}
}

func TestBitStreamReadUntilFilled(t *testing.T) {
	bs := NewBitStream([]byte{1, 2, 3, 4})
	dst := make([]byte, 3)
	if err := bs.ReadUntilFilled(dst); err != nil {
		t.Fatalf("ReadUntilFilled: %v", err)
	}
	if dst[0] != 1 || dst[2] != 3 {
		t.Fatalf("ReadUntilFilled copied %v", dst)
	}
	if err := bs.ReadUntilFilled(make([]byte, 2)); err == nil {
		t.Fatal("expected EOF on over-long fill")
	}
}

func TestBitStreamUnalignedByteRead(t *testing.T) {
	bs := NewBitStream([]byte{0xaa, 0xbb})
	if _, err := bs.Read1Bit(); err != nil {
		t.Fatal(err)
	}
	if _, err := bs.ReadByte(); err == nil {
		t.Fatal("expected error for unaligned byte read")
	}
}

func TestBitStreamArithByteAccess(t *testing.T) {
	bs := NewBitStream([]byte{0x10, 0x20})
	if bs.CurByteArith() != 0x10 || bs.NextByteArith() != 0x20 {
		t.Fatal("arith byte access wrong")
	}
	bs.IncByte()
	if bs.CurByteArith() != 0x20 || bs.NextByteArith() != 0xff {
		t.Fatal("arith byte access after advance wrong")
	}
	bs.IncByte()
	if bs.CurByteArith() != 0xff {
		t.Fatal("exhausted stream should read 0xff")
	}
}

func TestBitStreamOffsets(t *testing.T) {
	bs := NewBitStream(make([]byte, 10))
	bs.AddOffset(4)
	if bs.Offset() != 4 || bs.BytesLeft() != 6 {
		t.Fatalf("offset %d left %d", bs.Offset(), bs.BytesLeft())
	}
	bs.AddOffset(100)
	if bs.Offset() != 10 || bs.BytesLeft() != 0 || bs.InBounds() {
		t.Fatal("offset should clamp to buffer end")
	}
}
