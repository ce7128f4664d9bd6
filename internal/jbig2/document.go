package jbig2

import (
	"errors"
	"fmt"
)

// Document is a parsed JBIG2 input ready for page decoding. Each DecodePage
// walks the segment list from the start and builds a fresh page bitmap;
// symbol dictionaries, pattern dictionaries and tables decoded by an earlier
// call keep their results on the segment and are reused, and each extension
// segment's comments are collected only once.
type Document struct {
	file     *File
	pages    []uint32
	comments []Comment
	warnings []string
}

// NewDocument parses a self-contained JBIG2 file.
func NewDocument(data []byte) (*Document, error) {
	f, err := ParseFile(data)
	if err != nil {
		return nil, err
	}
	return newDocument(f)
}

// NewEmbeddedDocument parses an embedded (PDF) JBIG2 stream from one or
// more chunks, typically the globals stream followed by the page stream.
func NewEmbeddedDocument(chunks [][]byte) (*Document, error) {
	f, err := ParseEmbedded(chunks)
	if err != nil {
		return nil, err
	}
	doc, err := newDocument(f)
	if err != nil {
		return nil, err
	}
	if len(doc.pages) != 1 {
		return nil, fmt.Errorf("jbig2: embedded stream must contain exactly one page, found %d", len(doc.pages))
	}
	return doc, nil
}

func newDocument(f *File) (*Document, error) {
	pages, err := scanPageNumbers(f)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New("jbig2: no pages in input")
	}
	return &Document{file: f, pages: pages}, nil
}

// Pages returns the page numbers present, in file order.
func (d *Document) Pages() []uint32 { return d.pages }

// Comments returns the comment-extension pairs collected by page decodes.
func (d *Document) Comments() []Comment { return d.comments }

// Warnings returns non-fatal notes collected by page decodes, such as
// skipped non-necessary extensions.
func (d *Document) Warnings() []string { return d.warnings }

// pageDecoder is the per-page decoding pass.
type pageDecoder struct {
	doc  *Document
	geom *PageGeometry
	page *Image
}

// DecodePage decodes one page to its bi-level bitmap. A set bit is a black
// pixel.
func (d *Document) DecodePage(pageNumber uint32) (*Image, error) {
	geom, err := scanPage(d.file, pageNumber)
	if err != nil {
		return nil, err
	}

	page := NewImage(geom.Width, geom.Height)
	if !page.Valid() {
		return nil, errors.New("jbig2: failed to allocate page bitmap")
	}
	page.Fill(geom.Info.DefaultPixelValue())

	pd := &pageDecoder{doc: d, geom: geom, page: page}
	for _, seg := range d.file.Segments {
		pa := seg.Header.PageAssociation
		if pa != 0 && pa != pageNumber {
			continue
		}
		if err := pd.decodeSegment(seg); err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Header.Number, err)
		}
	}
	return page, nil
}

func (pd *pageDecoder) decodeSegment(seg *Segment) error {
	switch seg.Header.Type {
	case SegmentImmediateTextRegion, SegmentImmediateLosslessTextRegion,
		SegmentImmediateGenericRegion, SegmentImmediateLosslessGenericRegion,
		SegmentImmediateHalftoneRegion, SegmentImmediateLosslessHalftoneRegion:
		if seg.Header.PageAssociation == 0 {
			return errors.New("jbig2: region segment not associated with a page")
		}
	}
	switch seg.Header.Type {
	case SegmentSymbolDictionary:
		return pd.decodeSymbolDictionary(seg)
	case SegmentPatternDictionary:
		return pd.decodePatternDictionary(seg)
	case SegmentImmediateTextRegion, SegmentImmediateLosslessTextRegion:
		return pd.decodeTextRegion(seg)
	case SegmentImmediateGenericRegion, SegmentImmediateLosslessGenericRegion:
		return pd.decodeGenericRegion(seg)
	case SegmentImmediateHalftoneRegion, SegmentImmediateLosslessHalftoneRegion:
		return pd.decodeHalftoneRegion(seg)
	case SegmentIntermediateTextRegion, SegmentIntermediateHalftoneRegion, SegmentIntermediateGenericRegion:
		return unsupportedf("intermediate region segments")
	case SegmentIntermediateGenericRefinementRegion, SegmentImmediateGenericRefinementRegion, SegmentImmediateLosslessGenericRefinementRegion:
		return unsupportedf("top-level refinement region segments")
	case SegmentPageInformation, SegmentEndOfPage, SegmentEndOfStripe, SegmentEndOfFile:
		// Handled by the page scanner.
		return nil
	case SegmentProfiles:
		return unsupportedf("profiles segments")
	case SegmentTables:
		return pd.decodeTables(seg)
	case SegmentColorPalette:
		return unsupportedf("color palette segments")
	case SegmentExtension:
		if seg.extensionSeen {
			return nil
		}
		seg.extensionSeen = true
		comments, warning, err := decodeExtension(seg.Data)
		if err != nil {
			return err
		}
		pd.doc.comments = append(pd.doc.comments, comments...)
		if warning != "" {
			pd.doc.warnings = append(pd.doc.warnings, warning)
		}
		return nil
	default:
		return fmt.Errorf("jbig2: unknown segment type %d", seg.Header.Type)
	}
}

// referredSymbols gathers the symbols exported by referred-to symbol
// dictionaries, in reference order.
func (pd *pageDecoder) referredSymbols(seg *Segment) ([]*Image, error) {
	var symbols []*Image
	for _, ref := range seg.Header.ReferredTo {
		referred := pd.doc.file.SegmentByNumber(ref)
		if referred == nil {
			return nil, fmt.Errorf("jbig2: missing referred segment %d", ref)
		}
		if referred.Header.Type == SegmentSymbolDictionary {
			if referred.Symbols == nil {
				return nil, fmt.Errorf("jbig2: referred symbol dictionary %d not decoded", ref)
			}
			symbols = append(symbols, referred.Symbols...)
		}
	}
	return symbols, nil
}

// referredTable returns the index-th custom table among the referred-to
// Tables segments.
func (pd *pageDecoder) referredTable(seg *Segment, index int) (*HuffmanTable, error) {
	count := 0
	for _, ref := range seg.Header.ReferredTo {
		referred := pd.doc.file.SegmentByNumber(ref)
		if referred == nil || referred.Header.Type != SegmentTables {
			continue
		}
		if count == index {
			if referred.Table == nil {
				return nil, fmt.Errorf("jbig2: referred tables segment %d not decoded", ref)
			}
			return referred.Table, nil
		}
		count++
	}
	return nil, errors.New("jbig2: missing referred custom Huffman table")
}

// selectTable resolves a Huffman table selector: values below len(std) pick
// the listed standard tables, and the custom value (3 for a two-bit field, 1
// for a one-bit field with a single standard table) picks the next referred
// custom table.
func (pd *pageDecoder) selectTable(seg *Segment, selector uint16, std []int, customIndex *int) (*HuffmanTable, error) {
	if int(selector) < len(std) {
		return StandardHuffmanTable(std[selector])
	}
	if selector == 3 || (len(std) == 1 && selector == 1) {
		table, err := pd.referredTable(seg, *customIndex)
		if err != nil {
			return nil, err
		}
		*customIndex++
		return table, nil
	}
	return nil, fmt.Errorf("jbig2: invalid Huffman table selector %d", selector)
}

func (pd *pageDecoder) decodeTables(seg *Segment) error {
	if seg.Table != nil {
		return nil
	}
	table, err := NewHuffmanTableFromStream(NewBitStream(seg.Data))
	if err != nil {
		return err
	}
	seg.Table = table
	return nil
}

func (pd *pageDecoder) decodeSymbolDictionary(seg *Segment) error {
	if seg.Symbols != nil {
		return nil
	}
	bs := NewBitStream(seg.Data)
	flags, err := bs.ReadUint16()
	if err != nil {
		return err
	}

	proc := NewSDDProc()
	proc.SDHUFF = flags&0x0001 != 0
	proc.SDREFAGG = flags&0x0002 != 0
	proc.SDTEMPLATE = uint8(flags >> 10 & 0x0003)
	proc.SDRTEMPLATE = uint8(flags >> 12 & 0x0001)
	if flags&0x0100 != 0 {
		return unsupportedf("symbol dictionary bitmap coding context reuse")
	}
	if flags&0x0200 != 0 {
		return unsupportedf("symbol dictionary bitmap coding context retention")
	}
	if flags&0xe000 != 0 {
		return errors.New("jbig2: reserved symbol dictionary flag bits set")
	}

	if !proc.SDHUFF {
		n := 1
		if proc.SDTEMPLATE == 0 {
			n = 4
		}
		for i := 0; i < n; i++ {
			x, err := bs.ReadByte()
			if err != nil {
				return err
			}
			y, err := bs.ReadByte()
			if err != nil {
				return err
			}
			proc.SDAT[i] = AdaptivePixel{int(int8(x)), int(int8(y))}
		}
	}
	if proc.SDREFAGG && proc.SDRTEMPLATE == 0 {
		for i := 0; i < 2; i++ {
			x, err := bs.ReadByte()
			if err != nil {
				return err
			}
			y, err := bs.ReadByte()
			if err != nil {
				return err
			}
			proc.SDRAT[i] = AdaptivePixel{int(int8(x)), int(int8(y))}
		}
	}

	if proc.SDNUMEXSYMS, err = bs.ReadUint32(); err != nil {
		return err
	}
	if proc.SDNUMNEWSYMS, err = bs.ReadUint32(); err != nil {
		return err
	}
	if proc.SDNUMEXSYMS > maxExportSymbols || proc.SDNUMNEWSYMS > maxNewSymbols {
		return errors.New("jbig2: symbol dictionary size limits exceeded")
	}

	if proc.SDINSYMS, err = pd.referredSymbols(seg); err != nil {
		return err
	}

	if proc.SDHUFF {
		customIndex := 0
		if proc.SDHUFFDH, err = pd.selectTable(seg, flags>>2&0x0003, []int{4, 5}, &customIndex); err != nil {
			return err
		}
		if proc.SDHUFFDW, err = pd.selectTable(seg, flags>>4&0x0003, []int{2, 3}, &customIndex); err != nil {
			return err
		}
		if proc.SDHUFFBMSIZE, err = pd.selectTable(seg, flags>>6&0x0001, []int{1}, &customIndex); err != nil {
			return err
		}
		if proc.SDREFAGG {
			if proc.SDHUFFAGGINST, err = pd.selectTable(seg, flags>>7&0x0001, []int{1}, &customIndex); err != nil {
				return err
			}
		}
	}

	var symbols []*Image
	if proc.SDHUFF {
		var grContexts []ArithContext
		if proc.SDREFAGG {
			grContexts = make([]ArithContext, refinementContextSize(proc.SDRTEMPLATE))
		}
		symbols, err = proc.DecodeHuffman(bs, grContexts)
	} else {
		gbContexts := make([]ArithContext, contextSizeForTemplate(proc.SDTEMPLATE))
		var grContexts []ArithContext
		if proc.SDREFAGG {
			grContexts = make([]ArithContext, refinementContextSize(proc.SDRTEMPLATE))
		}
		symbols, err = proc.DecodeArith(NewArithDecoder(bs), gbContexts, grContexts)
	}
	if err != nil {
		return err
	}
	seg.Symbols = symbols
	return nil
}

func (pd *pageDecoder) decodePatternDictionary(seg *Segment) error {
	if seg.Patterns != nil {
		return nil
	}
	bs := NewBitStream(seg.Data)
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	if flags&0xf8 != 0 {
		return errors.New("jbig2: reserved pattern dictionary flag bits set")
	}

	proc := NewPDDProc()
	proc.MMR = flags&0x01 != 0
	proc.Template = flags >> 1 & 0x03
	if proc.Width, err = bs.ReadByte(); err != nil {
		return err
	}
	if proc.Height, err = bs.ReadByte(); err != nil {
		return err
	}
	grayMax, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if grayMax > maxPatternIndex {
		return errors.New("jbig2: pattern dictionary too large")
	}
	proc.GrayMax = grayMax

	var patterns []*Image
	if proc.MMR {
		patterns, err = proc.DecodeMMR(bs)
	} else {
		contexts := make([]ArithContext, contextSizeForTemplate(proc.Template))
		patterns, err = proc.DecodeArith(NewArithDecoder(bs), contexts)
	}
	if err != nil {
		return err
	}
	seg.Patterns = patterns
	return nil
}

func (pd *pageDecoder) decodeGenericRegion(seg *Segment) error {
	bs := NewBitStream(seg.Data)
	ri, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}

	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	proc := NewGRDProc()
	proc.MMR = flags&0x01 != 0
	proc.Template = flags >> 1 & 0x03
	proc.TPGDON = flags&0x08 != 0
	if flags&0x10 != 0 {
		return unsupportedf("extended reference templates (EXTTEMPLATE)")
	}
	if flags&0xe0 != 0 {
		return errors.New("jbig2: reserved generic region flag bits set")
	}
	proc.Width = int(ri.Width)
	proc.Height = int(ri.Height)

	if !proc.MMR {
		n := 1
		if proc.Template == 0 {
			n = 4
		}
		for i := 0; i < n; i++ {
			x, err := bs.ReadByte()
			if err != nil {
				return err
			}
			y, err := bs.ReadByte()
			if err != nil {
				return err
			}
			proc.At[i] = AdaptivePixel{int(int8(x)), int(int8(y))}
		}
	}

	var img *Image
	if proc.MMR {
		img, err = proc.DecodeMMR(bs)
	} else {
		contexts := make([]ArithContext, contextSizeForTemplate(proc.Template))
		img, err = proc.DecodeArith(NewArithDecoder(bs), contexts)
	}
	if err != nil {
		return err
	}
	return pd.composeRegion(ri, img)
}

func (pd *pageDecoder) decodeTextRegion(seg *Segment) error {
	bs := NewBitStream(seg.Data)
	ri, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}

	flags, err := bs.ReadUint16()
	if err != nil {
		return err
	}
	proc := NewTRDProc()
	proc.Width = int(ri.Width)
	proc.Height = int(ri.Height)
	proc.SBHUFF = flags&0x0001 != 0
	proc.SBREFINE = flags&0x0002 != 0
	proc.SBStrips = 1 << (flags >> 2 & 0x0003)
	proc.RefCorner = Corner(flags >> 4 & 0x0003)
	proc.Transposed = flags&0x0040 != 0
	proc.SBCombOp = ComposeOp(flags >> 7 & 0x0003)
	proc.SBDefPixel = flags&0x0200 != 0
	dsOffset := int(flags >> 10 & 0x001f)
	if dsOffset >= 16 {
		dsOffset -= 32
	}
	proc.SBDSOffset = dsOffset
	proc.SBRTEMPLATE = uint8(flags >> 15 & 0x0001)

	var huffFlags uint16
	if proc.SBHUFF {
		if huffFlags, err = bs.ReadUint16(); err != nil {
			return err
		}
		if huffFlags&0x8000 != 0 {
			return errors.New("jbig2: reserved text region Huffman flag bit set")
		}
	}
	if proc.SBREFINE && proc.SBRTEMPLATE == 0 {
		for i := 0; i < 2; i++ {
			x, err := bs.ReadByte()
			if err != nil {
				return err
			}
			y, err := bs.ReadByte()
			if err != nil {
				return err
			}
			proc.SBRAT[i] = AdaptivePixel{int(int8(x)), int(int8(y))}
		}
	}
	instances, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	proc.SBNumInstances = instances

	if proc.SBSyms, err = pd.referredSymbols(seg); err != nil {
		return err
	}
	if len(proc.SBSyms) == 0 {
		return errors.New("jbig2: text region without symbols")
	}

	if proc.SBHUFF {
		customIndex := 0
		if proc.SBHUFFFS, err = pd.selectTable(seg, huffFlags>>0&0x0003, []int{6, 7}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFDS, err = pd.selectTable(seg, huffFlags>>2&0x0003, []int{8, 9, 10}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFDT, err = pd.selectTable(seg, huffFlags>>4&0x0003, []int{11, 12, 13}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFRDW, err = pd.selectTable(seg, huffFlags>>6&0x0003, []int{14, 15}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFRDH, err = pd.selectTable(seg, huffFlags>>8&0x0003, []int{14, 15}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFRDX, err = pd.selectTable(seg, huffFlags>>10&0x0003, []int{14, 15}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFRDY, err = pd.selectTable(seg, huffFlags>>12&0x0003, []int{14, 15}, &customIndex); err != nil {
			return err
		}
		if proc.SBHUFFRSIZE, err = pd.selectTable(seg, huffFlags>>14&0x0001, []int{1}, &customIndex); err != nil {
			return err
		}
		if proc.SymIDTable, err = decodeSymbolIDCodes(bs, uint32(len(proc.SBSyms))); err != nil {
			return err
		}
	}

	var img *Image
	if proc.SBHUFF {
		img, err = proc.DecodeHuffman(bs)
	} else {
		var grContexts []ArithContext
		if proc.SBREFINE {
			grContexts = make([]ArithContext, refinementContextSize(proc.SBRTEMPLATE))
		}
		img, err = proc.DecodeArith(NewArithDecoder(bs), grContexts)
	}
	if err != nil {
		return err
	}
	return pd.composeRegion(ri, img)
}

func (pd *pageDecoder) decodeHalftoneRegion(seg *Segment) error {
	bs := NewBitStream(seg.Data)
	ri, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}

	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	proc := NewHTRDProc()
	proc.Width = int(ri.Width)
	proc.Height = int(ri.Height)
	proc.MMR = flags&0x01 != 0
	proc.Template = flags >> 1 & 0x03
	proc.EnableSkip = flags&0x08 != 0
	combOp := flags >> 4 & 0x07
	if combOp > uint8(ComposeReplace) {
		return errors.New("jbig2: invalid halftone combination operator")
	}
	proc.CombOp = ComposeOp(combOp)
	proc.DefPixel = flags&0x80 != 0

	gridWidth, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	gridHeight, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	proc.GridWidth = int(gridWidth)
	proc.GridHeight = int(gridHeight)
	gridX, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	gridY, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	proc.GridX = int32(gridX)
	proc.GridY = int32(gridY)
	if proc.VectorX, err = bs.ReadUint16(); err != nil {
		return err
	}
	if proc.VectorY, err = bs.ReadUint16(); err != nil {
		return err
	}

	for _, ref := range seg.Header.ReferredTo {
		referred := pd.doc.file.SegmentByNumber(ref)
		if referred == nil {
			return fmt.Errorf("jbig2: missing referred segment %d", ref)
		}
		if referred.Header.Type == SegmentPatternDictionary {
			if referred.Patterns == nil {
				return fmt.Errorf("jbig2: referred pattern dictionary %d not decoded", ref)
			}
			proc.Patterns = append(proc.Patterns, referred.Patterns...)
		}
	}
	if len(proc.Patterns) == 0 {
		return errors.New("jbig2: halftone region requires a pattern dictionary")
	}

	contexts := make([]ArithContext, contextSizeForTemplate(proc.Template))
	img, err := proc.Decode(NewArithDecoder(bs), contexts)
	if err != nil {
		return err
	}
	return pd.composeRegion(ri, img)
}

// composeRegion applies a decoded region to the page bitmap at the region's
// location with its external combination operator (8.2 step 5).
func (pd *pageDecoder) composeRegion(ri RegionInfo, img *Image) error {
	op := ri.CombinationOperator()
	info := pd.geom.Info
	if !info.DirectRegionSegmentsOverrideDefaultCombinationOperator() && op != info.DefaultCombinationOperator() {
		return fmt.Errorf("jbig2: region operator %v differs from page default %v", op, info.DefaultCombinationOperator())
	}
	x, y := int(ri.X), int(ri.Y)
	if x+img.Width() > pd.page.Width() || y+img.Height() > pd.page.Height() {
		return errors.New("jbig2: region extends beyond page boundary")
	}
	if !img.ComposeTo(pd.page, x, y, op) {
		return errors.New("jbig2: failed to compose region onto page")
	}
	return nil
}
