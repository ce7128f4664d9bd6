package jbig2

import (
	"errors"
	"fmt"
)

// Corner enumerates the four reference corners used in text region
// placement.
type Corner int

const (
	CornerBottomLeft Corner = iota
	CornerTopLeft
	CornerBottomRight
	CornerTopRight
)

// TRDProc holds the parameters of the 6.4 text region decoding procedure.
type TRDProc struct {
	SBHUFF         bool
	SBREFINE       bool
	SBRTEMPLATE    uint8
	Transposed     bool
	SBDefPixel     bool
	SBDSOffset     int
	SBSymCodeLen   uint8
	Width          int
	Height         int
	SBNumInstances uint32
	SBStrips       int
	SBSyms         []*Image
	SBCombOp       ComposeOp
	RefCorner      Corner
	SBRAT          [2]AdaptivePixel

	// Huffman tables, required when SBHUFF is set. SymIDTable is the
	// per-region table decoded by decodeSymbolIDCodes.
	SBHUFFFS    *HuffmanTable
	SBHUFFDS    *HuffmanTable
	SBHUFFDT    *HuffmanTable
	SBHUFFRDW   *HuffmanTable
	SBHUFFRDH   *HuffmanTable
	SBHUFFRDX   *HuffmanTable
	SBHUFFRDY   *HuffmanTable
	SBHUFFRSIZE *HuffmanTable
	SymIDTable  *HuffmanTable
}

// NewTRDProc constructs an empty text region configuration.
func NewTRDProc() *TRDProc { return &TRDProc{} }

// trdState carries per-decode state: either the Huffman reader or the
// arithmetic integer decoding contexts.
type trdState struct {
	decoder *ArithDecoder
	huffman *HuffmanDecoder
	stream  *BitStream

	iadt  *ArithIntDecoder
	iafs  *ArithIntDecoder
	iads  *ArithIntDecoder
	iait  *ArithIntDecoder
	iari  *ArithIntDecoder
	iardw *ArithIntDecoder
	iardh *ArithIntDecoder
	iardx *ArithIntDecoder
	iardy *ArithIntDecoder
	iaid  *ArithIaidDecoder

	grContexts []ArithContext
}

// DecodeArith decodes the region with arithmetic coding.
func (p *TRDProc) DecodeArith(decoder *ArithDecoder, grContexts []ArithContext) (*Image, error) {
	if decoder == nil {
		return nil, errors.New("jbig2: text region requires an arithmetic decoder")
	}
	st := &trdState{
		decoder:    decoder,
		iadt:       NewArithIntDecoder(),
		iafs:       NewArithIntDecoder(),
		iads:       NewArithIntDecoder(),
		iait:       NewArithIntDecoder(),
		iari:       NewArithIntDecoder(),
		iardw:      NewArithIntDecoder(),
		iardh:      NewArithIntDecoder(),
		iardx:      NewArithIntDecoder(),
		iardy:      NewArithIntDecoder(),
		grContexts: grContexts,
	}
	codeLen := p.SBSymCodeLen
	if codeLen == 0 {
		codeLen = symCodeLenFor(uint32(len(p.SBSyms)))
	}
	st.iaid = NewArithIaidDecoder(codeLen)
	return p.decode(st)
}

// DecodeHuffman decodes the region with Huffman coding.
func (p *TRDProc) DecodeHuffman(bs *BitStream) (*Image, error) {
	if bs == nil {
		return nil, errors.New("jbig2: text region requires a bitstream")
	}
	if p.SBHUFFFS == nil || p.SBHUFFDS == nil || p.SBHUFFDT == nil || p.SymIDTable == nil {
		return nil, errors.New("jbig2: text region missing Huffman tables")
	}
	st := &trdState{stream: bs, huffman: NewHuffmanDecoder(bs)}
	return p.decode(st)
}

func (p *TRDProc) decode(st *trdState) (*Image, error) {
	if p.SBDefPixel {
		return nil, unsupportedf("text region with non-zero default pixel")
	}
	if p.SBStrips != 1 && p.SBStrips != 2 && p.SBStrips != 4 && p.SBStrips != 8 {
		return nil, errors.New("jbig2: invalid text region strip size")
	}
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) {
		return nil, errors.New("jbig2: invalid text region dimensions")
	}

	img := NewImage(p.Width, p.Height)
	if !img.Valid() {
		return nil, errors.New("jbig2: failed to allocate text region image")
	}

	dt, err := p.decodeDeltaT(st)
	if err != nil {
		return nil, err
	}
	stripT := -dt * p.SBStrips
	firstS := 0
	instances := uint32(0)

	for instances < p.SBNumInstances {
		dt, err := p.decodeDeltaT(st)
		if err != nil {
			return nil, err
		}
		stripT += dt * p.SBStrips

		curS := 0
		first := true
		for {
			if first {
				dfs, err := p.decodeFirstS(st)
				if err != nil {
					return nil, err
				}
				firstS += dfs
				curS = firstS
				first = false
			} else {
				ds, inBand, err := p.decodeDeltaS(st)
				if err != nil {
					return nil, err
				}
				if !inBand {
					break
				}
				curS += ds + p.SBDSOffset
			}
			if instances >= p.SBNumInstances {
				break
			}

			curT := 0
			if p.SBStrips != 1 {
				curT, err = p.decodeCurT(st)
				if err != nil {
					return nil, err
				}
			}
			ti := stripT + curT

			id, err := p.decodeSymbolID(st)
			if err != nil {
				return nil, err
			}
			if id >= uint32(len(p.SBSyms)) {
				return nil, fmt.Errorf("jbig2: symbol id %d out of range", id)
			}
			glyph := p.SBSyms[id]
			if glyph == nil {
				return nil, fmt.Errorf("jbig2: missing symbol %d", id)
			}

			if p.SBREFINE {
				refined, err := p.maybeRefine(st, glyph)
				if err != nil {
					return nil, err
				}
				glyph = refined
			}

			wi := glyph.Width()
			hi := glyph.Height()
			if !p.Transposed && (p.RefCorner == CornerTopRight || p.RefCorner == CornerBottomRight) {
				curS += wi - 1
			} else if p.Transposed && (p.RefCorner == CornerBottomLeft || p.RefCorner == CornerBottomRight) {
				curS += hi - 1
			}

			x, y, advance := p.placement(curS, ti, wi, hi)
			if !glyph.ComposeTo(img, x, y, p.SBCombOp) {
				return nil, errors.New("jbig2: failed to compose text region glyph")
			}
			curS += advance
			instances++
		}
	}
	return img, nil
}

func (p *TRDProc) decodeDeltaT(st *trdState) (int, error) {
	if p.SBHUFF {
		v, err := st.huffman.ReadSymbolNonOOB(p.SBHUFFDT)
		return int(v), err
	}
	return st.iadt.DecodeNonOOB(st.decoder)
}

func (p *TRDProc) decodeFirstS(st *trdState) (int, error) {
	if p.SBHUFF {
		v, err := st.huffman.ReadSymbolNonOOB(p.SBHUFFFS)
		return int(v), err
	}
	return st.iafs.DecodeNonOOB(st.decoder)
}

func (p *TRDProc) decodeDeltaS(st *trdState) (int, bool, error) {
	if p.SBHUFF {
		v, inBand, err := st.huffman.ReadSymbol(p.SBHUFFDS)
		return int(v), inBand, err
	}
	return st.iads.Decode(st.decoder)
}

// decodeCurT reads the within-strip T offset: raw bits under Huffman
// coding, the IAIT context otherwise.
func (p *TRDProc) decodeCurT(st *trdState) (int, error) {
	if p.SBHUFF {
		bits := symCodeLenFor(uint32(p.SBStrips))
		v, err := st.stream.ReadNBits(uint32(bits))
		return int(v), err
	}
	return st.iait.DecodeNonOOB(st.decoder)
}

func (p *TRDProc) decodeSymbolID(st *trdState) (uint32, error) {
	if p.SBHUFF {
		v, err := st.huffman.ReadSymbolNonOOB(p.SymIDTable)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	return st.iaid.Decode(st.decoder)
}

// maybeRefine reads the per-instance refinement flag and, when set, decodes
// a refinement of the glyph.
func (p *TRDProc) maybeRefine(st *trdState, glyph *Image) (*Image, error) {
	var ri int
	if p.SBHUFF {
		bit, err := st.stream.Read1Bit()
		if err != nil {
			return nil, err
		}
		ri = int(bit)
	} else {
		var err error
		ri, err = st.iari.DecodeNonOOB(st.decoder)
		if err != nil {
			return nil, err
		}
	}
	if ri == 0 {
		return glyph, nil
	}
	if p.SBHUFF {
		return nil, unsupportedf("refined text region instances with Huffman coding")
	}

	rdw, err := st.iardw.DecodeNonOOB(st.decoder)
	if err != nil {
		return nil, err
	}
	rdh, err := st.iardh.DecodeNonOOB(st.decoder)
	if err != nil {
		return nil, err
	}
	rdx, err := st.iardx.DecodeNonOOB(st.decoder)
	if err != nil {
		return nil, err
	}
	rdy, err := st.iardy.DecodeNonOOB(st.decoder)
	if err != nil {
		return nil, err
	}

	newWidth := glyph.Width() + rdw
	newHeight := glyph.Height() + rdh
	if !IsValidImageSize(int64(newWidth), int64(newHeight)) {
		return nil, errors.New("jbig2: refined glyph dimensions out of range")
	}

	grrd := NewGRRDProc()
	grrd.Template = p.SBRTEMPLATE
	grrd.Width = newWidth
	grrd.Height = newHeight
	grrd.Reference = glyph
	grrd.ReferenceDX = floorDiv2(rdw) + rdx
	grrd.ReferenceDY = floorDiv2(rdh) + rdy
	grrd.At = p.SBRAT
	return grrd.Decode(st.decoder, st.grContexts)
}

func floorDiv2(v int) int {
	if v < 0 {
		return (v - 1) / 2
	}
	return v / 2
}

// placement maps the decoded (S, T) coordinate of an instance to the
// top-left compose point, and returns the S advance applied after drawing.
// TRANSPOSED swaps the roles of the S and T axes.
func (p *TRDProc) placement(s, t, wi, hi int) (int, int, int) {
	if !p.Transposed {
		switch p.RefCorner {
		case CornerTopLeft:
			return s, t, wi - 1
		case CornerTopRight:
			return s - wi + 1, t, 0
		case CornerBottomLeft:
			return s, t - hi + 1, wi - 1
		default: // CornerBottomRight
			return s - wi + 1, t - hi + 1, 0
		}
	}
	switch p.RefCorner {
	case CornerTopLeft:
		return t, s, hi - 1
	case CornerTopRight:
		return t - wi + 1, s, hi - 1
	case CornerBottomLeft:
		return t, s - hi + 1, 0
	default: // CornerBottomRight
		return t - wi + 1, s - hi + 1, 0
	}
}

// decodeSymbolIDCodes reads the two-stage symbol-ID code length assignment
// that precedes a Huffman-coded text region's data: 35 four-bit run-code
// lengths, then one run-coded length per symbol. The stream is left
// byte-aligned.
func decodeSymbolIDCodes(bs *BitStream, numSyms uint32) (*HuffmanTable, error) {
	const numRunCodes = 35
	runLines := make([]HuffmanLine, numRunCodes)
	for i := range runLines {
		v, err := bs.ReadNBits(4)
		if err != nil {
			return nil, err
		}
		runLines[i] = HuffmanLine{PrefLen: uint8(v), RangeLow: int32(i)}
	}
	if err := assignHuffmanCodes(runLines); err != nil {
		return nil, err
	}

	matchRunCode := func() (int, error) {
		var code int32
		bits := uint8(0)
		for {
			bit, err := bs.Read1Bit()
			if err != nil {
				return 0, err
			}
			code = code<<1 | int32(bit)
			bits++
			if bits > 16 {
				return 0, errors.New("jbig2: invalid symbol id run code")
			}
			for _, line := range runLines {
				if line.PrefLen == bits && line.Code == code {
					return int(line.RangeLow), nil
				}
			}
		}
	}

	lengths := make([]uint8, numSyms)
	var previous uint8
	for i := uint32(0); i < numSyms; {
		runCode, err := matchRunCode()
		if err != nil {
			return nil, err
		}
		switch {
		case runCode < 32:
			lengths[i] = uint8(runCode)
			previous = uint8(runCode)
			i++
		case runCode == 32, runCode == 33, runCode == 34:
			var run uint32
			repeat := uint8(0)
			switch runCode {
			case 32:
				v, err := bs.ReadNBits(2)
				if err != nil {
					return nil, err
				}
				run = v + 3
				if i == 0 {
					return nil, errors.New("jbig2: symbol id repeat run with no previous length")
				}
				repeat = previous
			case 33:
				v, err := bs.ReadNBits(3)
				if err != nil {
					return nil, err
				}
				run = v + 3
			case 34:
				v, err := bs.ReadNBits(7)
				if err != nil {
					return nil, err
				}
				run = v + 11
			}
			if i+run > numSyms {
				return nil, errors.New("jbig2: symbol id run exceeds symbol count")
			}
			for k := uint32(0); k < run; k++ {
				lengths[i+k] = repeat
			}
			previous = repeat
			i += run
		default:
			return nil, fmt.Errorf("jbig2: invalid symbol id run code %d", runCode)
		}
	}
	bs.AlignByte()

	lines := make([]HuffmanLine, numSyms)
	for i, l := range lengths {
		lines[i] = HuffmanLine{PrefLen: l, RangeLow: int32(i)}
	}
	return NewHuffmanTable(lines, false)
}
