package jbig2

// A minimal QM arithmetic encoder (T.88 Annex E software conventions),
// used by the tests to build valid arithmetic-coded streams for the
// round-trip properties and the end-to-end scenarios. It shares the
// probability table with the decoder.

type mqEncoder struct {
	a   uint32
	c   uint32
	ct  int
	out []byte
}

func newMQEncoder() *mqEncoder {
	// out[0] is the byte "before" the stream; it usually stays zero and
	// is dropped, but a carry may turn it into a real leading byte.
	return &mqEncoder{a: 0x8000, c: 0, ct: 12, out: []byte{0}}
}

func (e *mqEncoder) byteOut() {
	last := len(e.out) - 1
	if e.out[last] == 0xff {
		e.out = append(e.out, byte(e.c>>20))
		e.c &= 0xfffff
		e.ct = 7
		return
	}
	if e.c < 0x8000000 {
		e.out = append(e.out, byte(e.c>>19))
		e.c &= 0x7ffff
		e.ct = 8
		return
	}
	e.out[last]++
	if e.out[last] == 0xff {
		e.c &= 0x7ffffff
		e.out = append(e.out, byte(e.c>>20))
		e.c &= 0xfffff
		e.ct = 7
		return
	}
	e.out = append(e.out, byte(e.c>>19))
	e.c &= 0x7ffff
	e.ct = 8
}

func (e *mqEncoder) renorm() {
	for {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
		if e.a&0x8000 != 0 {
			return
		}
	}
}

func (e *mqEncoder) encodeBit(ctx *ArithContext, d int) {
	qe := arithQeTable[ctx.i]
	if d == ctx.MPS() {
		e.a -= uint32(qe.qe)
		if e.a&0x8000 == 0 {
			if e.a < uint32(qe.qe) {
				e.a = uint32(qe.qe)
			} else {
				e.c += uint32(qe.qe)
			}
			ctx.i = qe.nmps
			e.renorm()
		} else {
			e.c += uint32(qe.qe)
		}
		return
	}
	e.a -= uint32(qe.qe)
	if e.a < uint32(qe.qe) {
		e.c += uint32(qe.qe)
	} else {
		e.a = uint32(qe.qe)
	}
	if qe.switchM {
		ctx.mps = !ctx.mps
	}
	ctx.i = qe.nlps
	e.renorm()
}

// flush terminates the stream and returns the encoded bytes, ending with
// the 0xFF 0xAC marker.
func (e *mqEncoder) flush() []byte {
	tempC := e.c + e.a
	e.c |= 0xffff
	if e.c >= tempC {
		e.c -= 0x8000
	}
	e.c <<= uint(e.ct)
	e.byteOut()
	e.c <<= uint(e.ct)
	e.byteOut()
	e.out = append(e.out, 0xff, 0xac)
	if e.out[0] == 0 {
		return e.out[1:]
	}
	return e.out
}

// intEncoder is the Annex A integer encoding procedure, the inverse of
// ArithIntDecoder over the same 512 contexts.
type intEncoder struct {
	ctx []ArithContext
}

func newIntEncoder() *intEncoder {
	return &intEncoder{ctx: make([]ArithContext, 512)}
}

func (ie *intEncoder) encodeBitTracked(e *mqEncoder, prev *int, bit int) {
	e.encodeBit(&ie.ctx[*prev&0x1ff], bit)
	if *prev < 256 {
		*prev = *prev<<1 | bit
	} else {
		*prev = (*prev<<1|bit)&511 | 256
	}
}

// encode writes v; encodeOOB writes the out-of-band sentinel.
func (ie *intEncoder) encode(e *mqEncoder, v int) {
	prev := 1
	sign := 0
	if v < 0 {
		sign = 1
		v = -v
	}
	ie.encodeBitTracked(e, &prev, sign)
	ie.encodeMagnitude(e, &prev, v)
}

func (ie *intEncoder) encodeOOB(e *mqEncoder) {
	prev := 1
	ie.encodeBitTracked(e, &prev, 1)
	ie.encodeMagnitude(e, &prev, 0)
}

func (ie *intEncoder) encodeMagnitude(e *mqEncoder, prev *int, m int) {
	depth := 0
	for depth < len(arithIntRanges)-1 && m >= arithIntRanges[depth+1].base {
		depth++
	}
	for i := 0; i < depth; i++ {
		ie.encodeBitTracked(e, prev, 1)
	}
	if depth < len(arithIntRanges)-1 {
		ie.encodeBitTracked(e, prev, 0)
	}
	rest := m - arithIntRanges[depth].base
	for i := arithIntRanges[depth].needBits - 1; i >= 0; i-- {
		ie.encodeBitTracked(e, prev, rest>>i&1)
	}
}

// iaidEncoder mirrors ArithIaidDecoder.
type iaidEncoder struct {
	ctx     []ArithContext
	codeLen uint8
}

func newIaidEncoder(codeLen uint8) *iaidEncoder {
	return &iaidEncoder{ctx: make([]ArithContext, 1<<(codeLen+1)), codeLen: codeLen}
}

func (ia *iaidEncoder) encode(e *mqEncoder, id uint32) {
	prev := uint32(1)
	for i := int(ia.codeLen) - 1; i >= 0; i-- {
		bit := int(id >> i & 1)
		e.encodeBit(&ia.ctx[prev], bit)
		prev = prev<<1 | uint32(bit)
	}
}

// encodeGenericRegion writes img with the generic-region template coder.
// Context formation reuses the decoder's own template functions, and all
// referenced neighbourhood pixels are causal, so reading them from the
// finished image is equivalent to reading them from a partial one.
func encodeGenericRegion(e *mqEncoder, contexts []ArithContext, img *Image, template uint8, at [4]AdaptivePixel) {
	p := &GRDProc{Template: template, Width: img.Width(), Height: img.Height(), At: at}
	computeContext := p.contextFunc()
	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			e.encodeBit(&contexts[computeContext(img, x, y)], img.GetPixel(x, y))
		}
	}
}

// nominalAt are the nominal adaptive pixel positions for template 0.
var nominalAt = [4]AdaptivePixel{{3, -1}, {-3, -1}, {2, -2}, {-2, -2}}
