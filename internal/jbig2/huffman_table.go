package jbig2

import (
	"errors"
	"fmt"
	"math"
)

// HuffmanLine is one row of a JBIG2 Huffman table: a prefix code plus the
// range of values it introduces. A lower-range line subtracts the read range
// bits from RangeLow instead of adding them; an OOB line carries no value.
type HuffmanLine struct {
	PrefLen  uint8
	RangeLen uint8
	RangeLow int32
	IsLower  bool
	IsOOB    bool
	Code     int32
}

// HuffmanTable is a canonical prefix-code table (Annex B). Standard tables,
// tables parsed from Tables segments and the per-text-region symbol-ID table
// all share this representation.
type HuffmanTable struct {
	hasOOB bool
	lines  []HuffmanLine
}

// HasOOB reports whether the table can produce the out-of-band value.
func (ht *HuffmanTable) HasOOB() bool { return ht.hasOOB }

// Lines exposes the table rows.
func (ht *HuffmanTable) Lines() []HuffmanLine { return ht.lines }

// NewHuffmanTable builds a table from explicit lines, assigning canonical
// codes. hasOOB must be set iff one of the lines is the OOB line.
func NewHuffmanTable(lines []HuffmanLine, hasOOB bool) (*HuffmanTable, error) {
	oobSeen := false
	for _, line := range lines {
		if line.IsOOB {
			oobSeen = true
		}
	}
	if oobSeen != hasOOB {
		return nil, errors.New("jbig2: OOB flag disagrees with table lines")
	}
	ht := &HuffmanTable{hasOOB: hasOOB, lines: append([]HuffmanLine(nil), lines...)}
	if err := assignHuffmanCodes(ht.lines); err != nil {
		return nil, err
	}
	return ht, nil
}

// NewHuffmanTableFromStream parses a custom table from a Tables segment
// (B.2 table flags, value range, and one prefix length per line).
func NewHuffmanTableFromStream(bs *BitStream) (*HuffmanTable, error) {
	flag, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag&0x80 != 0 {
		return nil, errors.New("jbig2: reserved Huffman table flag bit set")
	}
	hasOOB := flag&0x01 != 0
	htps := uint32(flag>>1&0x07) + 1
	htrs := uint32(flag>>4&0x07) + 1

	lowBits, err := bs.ReadUint32()
	if err != nil {
		return nil, err
	}
	highBits, err := bs.ReadUint32()
	if err != nil {
		return nil, err
	}
	low, high := int32(lowBits), int32(highBits)
	if low > high {
		return nil, errors.New("jbig2: invalid Huffman table value range")
	}

	var lines []HuffmanLine
	curLow := int64(low)
	for {
		prefLen, err := bs.ReadNBits(htps)
		if err != nil {
			return nil, err
		}
		rangeLen, err := bs.ReadNBits(htrs)
		if err != nil {
			return nil, err
		}
		if rangeLen >= 32 {
			return nil, errors.New("jbig2: Huffman table range length too wide")
		}
		lines = append(lines, HuffmanLine{
			PrefLen:  uint8(prefLen),
			RangeLen: uint8(rangeLen),
			RangeLow: int32(curLow),
		})
		curLow += int64(1) << rangeLen
		if curLow > math.MaxInt32 {
			return nil, errors.New("jbig2: Huffman table range overflows")
		}
		if curLow >= int64(high) {
			break
		}
	}

	// Lower- and upper-range lines cover everything outside [low, high).
	prefLen, err := bs.ReadNBits(htps)
	if err != nil {
		return nil, err
	}
	if low == math.MinInt32 {
		return nil, errors.New("jbig2: Huffman table lower bound underflow")
	}
	lines = append(lines, HuffmanLine{PrefLen: uint8(prefLen), RangeLen: 32, RangeLow: low - 1, IsLower: true})

	prefLen, err = bs.ReadNBits(htps)
	if err != nil {
		return nil, err
	}
	lines = append(lines, HuffmanLine{PrefLen: uint8(prefLen), RangeLen: 32, RangeLow: high})

	if hasOOB {
		prefLen, err = bs.ReadNBits(htps)
		if err != nil {
			return nil, err
		}
		lines = append(lines, HuffmanLine{PrefLen: uint8(prefLen), IsOOB: true})
	}
	bs.AlignByte()
	return NewHuffmanTable(lines, hasOOB)
}

// assignHuffmanCodes performs canonical code assignment (B.3): codes of each
// length are numbered consecutively in input order, starting at
// 2*(firstcode[len-1] + count[len-1]). Lines with a zero prefix length take
// no code.
func assignHuffmanCodes(lines []HuffmanLine) error {
	maxLen := uint8(0)
	for _, line := range lines {
		if line.PrefLen > maxLen {
			maxLen = line.PrefLen
		}
	}
	if maxLen == 0 {
		return nil
	}
	if maxLen > 31 {
		return errors.New("jbig2: Huffman prefix length too large")
	}

	counts := make([]int, maxLen+1)
	for _, line := range lines {
		counts[line.PrefLen]++
	}
	counts[0] = 0

	firstCodes := make([]int64, maxLen+1)
	for l := 1; l <= int(maxLen); l++ {
		firstCodes[l] = (firstCodes[l-1] + int64(counts[l-1])) << 1
		if firstCodes[l]+int64(counts[l]) > int64(1)<<l {
			return errors.New("jbig2: Huffman code space exhausted")
		}
		cur := firstCodes[l]
		for i := range lines {
			if int(lines[i].PrefLen) == l {
				lines[i].Code = int32(cur)
				cur++
			}
		}
	}
	return nil
}

// stdTableLine mirrors the compact (PREFLEN, RANGELEN, RANGELOW) triples the
// standard publishes for tables B.1 to B.15. The lower-range line sits just
// before the upper-range line; the OOB line, when present, is last.
type stdTableLine struct {
	prefLen  uint8
	rangeLen uint8
	rangeLow int32
}

var stdTables = [...]struct {
	hasOOB bool
	lines  []stdTableLine
}{
	{},
	{false, []stdTableLine{{1, 4, 0}, {2, 8, 16}, {3, 16, 272}, {0, 32, -1}, {3, 32, 65808}}},
	{true, []stdTableLine{{1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 3, 3}, {5, 6, 11}, {0, 32, -1}, {6, 32, 75}, {6, 0, 0}}},
	{true, []stdTableLine{{8, 8, -256}, {1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 3, 3}, {5, 6, 11}, {8, 32, -257}, {7, 32, 75}, {6, 0, 0}}},
	{false, []stdTableLine{{1, 0, 1}, {2, 0, 2}, {3, 0, 3}, {4, 3, 4}, {5, 6, 12}, {0, 32, 0}, {5, 32, 76}}},
	{false, []stdTableLine{{7, 8, -255}, {1, 0, 1}, {2, 0, 2}, {3, 0, 3}, {4, 3, 4}, {5, 6, 12}, {7, 32, -256}, {6, 32, 76}}},
	{false, []stdTableLine{{5, 10, -2048}, {4, 9, -1024}, {4, 8, -512}, {4, 7, -256}, {5, 6, -128}, {5, 5, -64}, {4, 5, -32}, {2, 7, 0}, {3, 7, 128}, {3, 8, 256}, {4, 9, 512}, {4, 10, 1024}, {6, 32, -2049}, {6, 32, 2048}}},
	{false, []stdTableLine{{4, 9, -1024}, {3, 8, -512}, {4, 7, -256}, {5, 6, -128}, {5, 5, -64}, {4, 5, -32}, {4, 5, 0}, {5, 5, 32}, {5, 6, 64}, {4, 7, 128}, {3, 8, 256}, {3, 9, 512}, {3, 10, 1024}, {5, 32, -1025}, {5, 32, 2048}}},
	{true, []stdTableLine{{8, 3, -15}, {9, 1, -7}, {8, 1, -5}, {9, 0, -3}, {7, 0, -2}, {4, 0, -1}, {2, 1, 0}, {5, 0, 2}, {6, 0, 3}, {3, 4, 4}, {6, 1, 20}, {4, 4, 22}, {4, 5, 38}, {5, 6, 70}, {5, 7, 134}, {6, 7, 262}, {7, 8, 390}, {6, 10, 646}, {9, 32, -16}, {9, 32, 1670}, {2, 0, 0}}},
	{true, []stdTableLine{{8, 4, -31}, {9, 2, -15}, {8, 2, -11}, {9, 1, -7}, {7, 1, -5}, {4, 1, -3}, {3, 1, -1}, {3, 1, 1}, {5, 1, 3}, {6, 1, 5}, {3, 5, 7}, {6, 2, 39}, {4, 5, 43}, {4, 6, 75}, {5, 7, 139}, {5, 8, 267}, {6, 8, 523}, {7, 9, 779}, {6, 11, 1291}, {9, 32, -32}, {9, 32, 3339}, {2, 0, 0}}},
	{true, []stdTableLine{{7, 4, -21}, {8, 0, -5}, {7, 0, -4}, {5, 0, -3}, {2, 2, -2}, {5, 0, 2}, {6, 0, 3}, {7, 0, 4}, {8, 0, 5}, {2, 6, 6}, {5, 5, 70}, {6, 5, 102}, {6, 6, 134}, {6, 7, 198}, {6, 8, 326}, {6, 9, 582}, {6, 10, 1094}, {7, 11, 2118}, {8, 32, -22}, {8, 32, 4166}, {2, 0, 0}}},
	{false, []stdTableLine{{1, 0, 1}, {2, 1, 2}, {4, 0, 4}, {4, 1, 5}, {5, 1, 7}, {5, 2, 9}, {6, 2, 13}, {7, 2, 17}, {7, 3, 21}, {7, 4, 29}, {7, 5, 45}, {7, 6, 77}, {0, 32, 0}, {7, 32, 141}}},
	{false, []stdTableLine{{1, 0, 1}, {2, 0, 2}, {3, 1, 3}, {5, 0, 5}, {5, 1, 6}, {6, 1, 8}, {7, 0, 10}, {7, 1, 11}, {7, 2, 13}, {7, 3, 17}, {7, 4, 25}, {8, 5, 41}, {0, 32, 0}, {8, 32, 73}}},
	{false, []stdTableLine{{1, 0, 1}, {3, 0, 2}, {4, 0, 3}, {5, 0, 4}, {4, 1, 5}, {3, 3, 7}, {6, 1, 15}, {6, 2, 17}, {6, 3, 21}, {6, 4, 29}, {6, 5, 45}, {7, 6, 77}, {0, 32, 0}, {7, 32, 141}}},
	{false, []stdTableLine{{3, 0, -2}, {3, 0, -1}, {1, 0, 0}, {3, 0, 1}, {3, 0, 2}, {0, 32, -3}, {0, 32, 3}}},
	{false, []stdTableLine{{7, 4, -24}, {6, 2, -8}, {5, 1, -4}, {4, 0, -2}, {3, 0, -1}, {1, 0, 0}, {3, 0, 1}, {4, 0, 2}, {5, 1, 3}, {6, 2, 5}, {7, 4, 9}, {7, 32, -25}, {7, 32, 25}}},
}

var standardTables [len(stdTables)]*HuffmanTable

func init() {
	for idx := 1; idx < len(stdTables); idx++ {
		std := stdTables[idx]
		lines := make([]HuffmanLine, len(std.lines))
		// Positional convention of the published tables: the lower-range
		// line precedes the upper-range line, and the OOB line is last.
		lowerIdx := len(std.lines) - 2
		if std.hasOOB {
			lowerIdx = len(std.lines) - 3
		}
		for i, l := range std.lines {
			lines[i] = HuffmanLine{
				PrefLen:  l.prefLen,
				RangeLen: l.rangeLen,
				RangeLow: l.rangeLow,
				IsLower:  i == lowerIdx,
				IsOOB:    std.hasOOB && i == len(std.lines)-1,
			}
		}
		table, err := NewHuffmanTable(lines, std.hasOOB)
		if err != nil {
			panic(fmt.Sprintf("jbig2: standard Huffman table %d invalid: %v", idx, err))
		}
		standardTables[idx] = table
	}
}

// StandardHuffmanTable returns standard table B.<idx>, idx in [1, 15].
func StandardHuffmanTable(idx int) (*HuffmanTable, error) {
	if idx <= 0 || idx >= len(standardTables) {
		return nil, errors.New("jbig2: standard Huffman table index out of range")
	}
	return standardTables[idx], nil
}
