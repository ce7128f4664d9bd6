package jbig2

import "errors"

// HuffmanDecoder reads canonical prefix codes from a bitstream and resolves
// them against a HuffmanTable.
type HuffmanDecoder struct {
	stream *BitStream
}

// NewHuffmanDecoder binds a decoder to the provided stream.
func NewHuffmanDecoder(stream *BitStream) *HuffmanDecoder {
	return &HuffmanDecoder{stream: stream}
}

// ReadSymbol returns the next value. The boolean is false when the matched
// line is the table's out-of-band line.
func (hd *HuffmanDecoder) ReadSymbol(table *HuffmanTable) (int32, bool, error) {
	if table == nil {
		return 0, false, errors.New("jbig2: missing Huffman table")
	}

	var code int32
	bits := uint8(0)
	for {
		bit, err := hd.stream.Read1Bit()
		if err != nil {
			return 0, false, err
		}
		code = code<<1 | int32(bit)
		bits++
		if bits > 31 {
			return 0, false, errors.New("jbig2: Huffman code too long")
		}

		for _, line := range table.lines {
			if line.PrefLen != bits || line.Code != code {
				continue
			}
			if line.IsOOB {
				return 0, false, nil
			}
			var extra uint32
			if line.RangeLen > 0 {
				extra, err = hd.stream.ReadNBits(uint32(line.RangeLen))
				if err != nil {
					return 0, false, err
				}
			}
			if line.IsLower {
				return line.RangeLow - int32(extra), true, nil
			}
			return line.RangeLow + int32(extra), true, nil
		}
	}
}

// ReadSymbolNonOOB returns the next value and fails on OOB.
func (hd *HuffmanDecoder) ReadSymbolNonOOB(table *HuffmanTable) (int32, error) {
	v, inBand, err := hd.ReadSymbol(table)
	if err != nil {
		return 0, err
	}
	if !inBand {
		return 0, errUnexpectedOOB
	}
	return v, nil
}
