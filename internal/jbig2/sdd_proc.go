package jbig2

import (
	"errors"
	"fmt"
)

// SDDProc holds the parameters of the 6.5 symbol dictionary decoding
// procedure.
type SDDProc struct {
	SDHUFF       bool
	SDREFAGG     bool
	SDTEMPLATE   uint8
	SDRTEMPLATE  uint8
	SDNUMEXSYMS  uint32
	SDNUMNEWSYMS uint32
	SDINSYMS     []*Image
	SDAT         [4]AdaptivePixel
	SDRAT        [2]AdaptivePixel

	// Huffman tables, required when SDHUFF is set.
	SDHUFFDH      *HuffmanTable
	SDHUFFDW      *HuffmanTable
	SDHUFFBMSIZE  *HuffmanTable
	SDHUFFAGGINST *HuffmanTable
}

// NewSDDProc constructs an empty symbol dictionary configuration.
func NewSDDProc() *SDDProc { return &SDDProc{} }

// sddState carries the shared decoding state of one dictionary decode: the
// integer decoding contexts live across the whole segment.
type sddState struct {
	decoder *ArithDecoder
	huffman *HuffmanDecoder
	stream  *BitStream

	iadh  *ArithIntDecoder
	iadw  *ArithIntDecoder
	iaai  *ArithIntDecoder
	iaex  *ArithIntDecoder
	iardx *ArithIntDecoder
	iardy *ArithIntDecoder
	iaid  *ArithIaidDecoder

	gbContexts []ArithContext
	grContexts []ArithContext
}

// DecodeArith decodes the dictionary with arithmetic coding. The caller
// provides zeroed generic and refinement context arrays sized for the
// templates.
func (p *SDDProc) DecodeArith(decoder *ArithDecoder, gbContexts, grContexts []ArithContext) ([]*Image, error) {
	if decoder == nil {
		return nil, errors.New("jbig2: symbol dictionary requires an arithmetic decoder")
	}
	st := &sddState{
		decoder:    decoder,
		iadh:       NewArithIntDecoder(),
		iadw:       NewArithIntDecoder(),
		iaai:       NewArithIntDecoder(),
		iaex:       NewArithIntDecoder(),
		iardx:      NewArithIntDecoder(),
		iardy:      NewArithIntDecoder(),
		gbContexts: gbContexts,
		grContexts: grContexts,
	}
	st.iaid = NewArithIaidDecoder(symCodeLenFor(uint32(len(p.SDINSYMS)) + p.SDNUMNEWSYMS))
	return p.decode(st)
}

// DecodeHuffman decodes the dictionary with Huffman coding.
func (p *SDDProc) DecodeHuffman(bs *BitStream, grContexts []ArithContext) ([]*Image, error) {
	if bs == nil {
		return nil, errors.New("jbig2: symbol dictionary requires a bitstream")
	}
	if p.SDHUFFDH == nil || p.SDHUFFDW == nil || p.SDHUFFBMSIZE == nil {
		return nil, errors.New("jbig2: symbol dictionary missing Huffman tables")
	}
	if p.SDREFAGG && p.SDHUFFAGGINST == nil {
		return nil, errors.New("jbig2: symbol dictionary missing aggregate instance table")
	}
	st := &sddState{
		stream:     bs,
		huffman:    NewHuffmanDecoder(bs),
		grContexts: grContexts,
	}
	return p.decode(st)
}

func (p *SDDProc) decode(st *sddState) ([]*Image, error) {
	newSymbols := make([]*Image, 0, p.SDNUMNEWSYMS)
	widths := make([]int, 0, p.SDNUMNEWSYMS)

	height := 0
	for uint32(len(newSymbols)) < p.SDNUMNEWSYMS {
		dh, err := p.decodeDeltaHeight(st)
		if err != nil {
			return nil, err
		}
		height += dh
		if height < 0 || height > maxImageSize {
			return nil, errors.New("jbig2: symbol height class out of range")
		}

		width := 0
		totalWidth := 0
		firstSymbol := len(newSymbols)
		widths = widths[:0]
		for {
			dw, inBand, err := p.decodeDeltaWidth(st)
			if err != nil {
				return nil, err
			}
			if !inBand {
				break
			}
			if uint32(len(newSymbols)) >= p.SDNUMNEWSYMS {
				return nil, errors.New("jbig2: more symbols than declared in height class")
			}
			width += dw
			totalWidth += width
			if width < 0 || width > maxImageSize || totalWidth > maxImageSize {
				return nil, errors.New("jbig2: symbol width out of range")
			}

			if !p.SDHUFF || p.SDREFAGG {
				var symbol *Image
				if width > 0 && height > 0 {
					symbol, err = p.decodeSymbolBitmap(st, width, height, newSymbols)
					if err != nil {
						return nil, err
					}
				}
				newSymbols = append(newSymbols, symbol)
			} else {
				// Collective bitmap: record the width, split after the class.
				widths = append(widths, width)
				newSymbols = append(newSymbols, nil)
			}
		}

		if p.SDHUFF && !p.SDREFAGG {
			if err := p.decodeCollectiveBitmap(st, height, totalWidth, widths, newSymbols[firstSymbol:]); err != nil {
				return nil, err
			}
		}
	}

	return p.exportSymbols(st, newSymbols)
}

func (p *SDDProc) decodeDeltaHeight(st *sddState) (int, error) {
	if p.SDHUFF {
		v, err := st.huffman.ReadSymbolNonOOB(p.SDHUFFDH)
		return int(v), err
	}
	return st.iadh.DecodeNonOOB(st.decoder)
}

func (p *SDDProc) decodeDeltaWidth(st *sddState) (int, bool, error) {
	if p.SDHUFF {
		v, inBand, err := st.huffman.ReadSymbol(p.SDHUFFDW)
		return int(v), inBand, err
	}
	return st.iadw.Decode(st.decoder)
}

// decodeSymbolBitmap decodes one symbol, either as a plain generic region
// or through refinement/aggregate coding.
func (p *SDDProc) decodeSymbolBitmap(st *sddState, width, height int, newSymbols []*Image) (*Image, error) {
	if !p.SDREFAGG {
		grd := NewGRDProc()
		grd.Template = p.SDTEMPLATE
		grd.Width = width
		grd.Height = height
		grd.At = p.SDAT
		return grd.DecodeArith(st.decoder, st.gbContexts)
	}

	instances, err := p.decodeAggregateInstances(st)
	if err != nil {
		return nil, err
	}
	switch {
	case instances < 0:
		return nil, errors.New("jbig2: negative aggregate instance count")
	case instances > 1:
		return nil, unsupportedf("aggregate symbol coding with %d instances", instances)
	case instances == 0:
		return nil, errors.New("jbig2: aggregate symbol with zero instances")
	}
	if p.SDHUFF {
		return p.decodeRefinedSymbolHuffman(st, width, height, newSymbols)
	}
	return p.decodeRefinedSymbolArith(st, width, height, newSymbols)
}

func (p *SDDProc) decodeAggregateInstances(st *sddState) (int, error) {
	if p.SDHUFF {
		v, err := st.huffman.ReadSymbolNonOOB(p.SDHUFFAGGINST)
		return int(v), err
	}
	return st.iaai.DecodeNonOOB(st.decoder)
}

// lookupSymbol fetches a reference symbol from the inputs followed by the
// already decoded new symbols.
func (p *SDDProc) lookupSymbol(id uint32, newSymbols []*Image) (*Image, error) {
	if id < uint32(len(p.SDINSYMS)) {
		return p.SDINSYMS[id], nil
	}
	idx := id - uint32(len(p.SDINSYMS))
	if idx >= uint32(len(newSymbols)) {
		return nil, fmt.Errorf("jbig2: refinement symbol id %d out of range", id)
	}
	if newSymbols[idx] == nil {
		return nil, fmt.Errorf("jbig2: refinement symbol %d not yet decoded", id)
	}
	return newSymbols[idx], nil
}

func (p *SDDProc) decodeRefinedSymbolArith(st *sddState, width, height int, newSymbols []*Image) (*Image, error) {
	id, err := st.iaid.Decode(st.decoder)
	if err != nil {
		return nil, err
	}
	ref, err := p.lookupSymbol(id, newSymbols)
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

	grrd := NewGRRDProc()
	grrd.Template = p.SDRTEMPLATE
	grrd.Width = width
	grrd.Height = height
	grrd.Reference = ref
	grrd.ReferenceDX = rdx
	grrd.ReferenceDY = rdy
	grrd.At = p.SDRAT
	return grrd.Decode(st.decoder, st.grContexts)
}

func (p *SDDProc) decodeRefinedSymbolHuffman(st *sddState, width, height int, newSymbols []*Image) (*Image, error) {
	symCodeLen := symCodeLenFor(uint32(len(p.SDINSYMS) + len(newSymbols)))
	var id uint32
	for i := uint8(0); i < symCodeLen; i++ {
		bit, err := st.stream.Read1Bit()
		if err != nil {
			return nil, err
		}
		id = id<<1 | bit
	}
	ref, err := p.lookupSymbol(id, newSymbols)
	if err != nil {
		return nil, err
	}

	rdxTable, err := StandardHuffmanTable(15)
	if err != nil {
		return nil, err
	}
	sizeTable, err := StandardHuffmanTable(1)
	if err != nil {
		return nil, err
	}
	rdx, err := st.huffman.ReadSymbolNonOOB(rdxTable)
	if err != nil {
		return nil, err
	}
	rdy, err := st.huffman.ReadSymbolNonOOB(rdxTable)
	if err != nil {
		return nil, err
	}
	bmsize, err := st.huffman.ReadSymbolNonOOB(sizeTable)
	if err != nil {
		return nil, err
	}
	if bmsize < 0 {
		return nil, errors.New("jbig2: negative refinement data size")
	}

	st.stream.AlignByte()
	start := st.stream.Offset()

	grrd := NewGRRDProc()
	grrd.Template = p.SDRTEMPLATE
	grrd.Width = width
	grrd.Height = height
	grrd.Reference = ref
	grrd.ReferenceDX = int(rdx)
	grrd.ReferenceDY = int(rdy)
	grrd.At = p.SDRAT
	symbol, err := grrd.Decode(NewArithDecoder(st.stream), st.grContexts)
	if err != nil {
		return nil, err
	}

	st.stream.AlignByte()
	st.stream.AddOffset(2)
	if int(bmsize) != st.stream.Offset()-start {
		return nil, errors.New("jbig2: refinement data size mismatch")
	}
	return symbol, nil
}

// decodeCollectiveBitmap handles the SDHUFF=1, SDREFAGG=0 path: the whole
// height class is coded as one bitmap, raw or MMR, then split by the
// recorded widths.
func (p *SDDProc) decodeCollectiveBitmap(st *sddState, height, totalWidth int, widths []int, out []*Image) error {
	bmsize, err := st.huffman.ReadSymbolNonOOB(p.SDHUFFBMSIZE)
	if err != nil {
		return err
	}
	if bmsize < 0 {
		return errors.New("jbig2: negative collective bitmap size")
	}
	st.stream.AlignByte()

	if len(widths) == 0 || height == 0 || totalWidth == 0 {
		return nil
	}

	var collective *Image
	if bmsize == 0 {
		// Uncompressed: row-aligned packed rows.
		collective = NewImage(totalWidth, height)
		if !collective.Valid() {
			return errors.New("jbig2: failed to allocate collective bitmap")
		}
		for y := 0; y < height; y++ {
			if err := st.stream.ReadUntilFilled(collective.line(y)); err != nil {
				return err
			}
		}
	} else {
		start := st.stream.Offset()
		collective, err = decodeMMR(st.stream, totalWidth, height)
		if err != nil {
			return err
		}
		// The size field tells where the next height class begins.
		st.stream.SetOffset(start + int(bmsize))
	}

	offset := 0
	for i, w := range widths {
		if w == 0 {
			continue
		}
		symbol, err := collective.SubImage(offset, 0, w, height)
		if err != nil {
			return err
		}
		out[i] = symbol
		offset += w
	}
	return nil
}

// exportSymbols runs the 6.5.10 export flag procedure: toggling run lengths
// over inputs plus new symbols. The number of exported symbols must equal
// the declared count.
func (p *SDDProc) exportSymbols(st *sddState, newSymbols []*Image) ([]*Image, error) {
	var exportTable *HuffmanTable
	if p.SDHUFF {
		var err error
		exportTable, err = StandardHuffmanTable(1)
		if err != nil {
			return nil, err
		}
	}

	total := len(p.SDINSYMS) + len(newSymbols)
	exported := make([]*Image, 0, p.SDNUMEXSYMS)
	index := 0
	curFlag := false
	for index < total {
		var run int
		if p.SDHUFF {
			v, err := st.huffman.ReadSymbolNonOOB(exportTable)
			if err != nil {
				return nil, err
			}
			run = int(v)
		} else {
			v, err := st.iaex.DecodeNonOOB(st.decoder)
			if err != nil {
				return nil, err
			}
			run = v
		}
		if run < 0 || run > total-index {
			return nil, errors.New("jbig2: export run exceeds symbol count")
		}
		if curFlag {
			for i := index; i < index+run; i++ {
				var symbol *Image
				if i < len(p.SDINSYMS) {
					symbol = p.SDINSYMS[i]
				} else {
					symbol = newSymbols[i-len(p.SDINSYMS)]
				}
				if symbol == nil {
					return nil, fmt.Errorf("jbig2: exported symbol %d was never decoded", i)
				}
				exported = append(exported, symbol)
			}
		}
		index += run
		curFlag = !curFlag
	}
	if uint32(len(exported)) != p.SDNUMEXSYMS {
		return nil, fmt.Errorf("jbig2: exported %d symbols, dictionary declared %d", len(exported), p.SDNUMEXSYMS)
	}
	return exported, nil
}
