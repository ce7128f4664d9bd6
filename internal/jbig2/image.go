package jbig2

import "errors"

// ComposeOp enumerates the JBIG2 combination operators used when blending a
// decoded region onto another bitmap.
type ComposeOp int

const (
	ComposeOR ComposeOp = iota
	ComposeAND
	ComposeXOR
	ComposeXNOR
	ComposeReplace
)

func (op ComposeOp) String() string {
	switch op {
	case ComposeOR:
		return "OR"
	case ComposeAND:
		return "AND"
	case ComposeXOR:
		return "XOR"
	case ComposeXNOR:
		return "XNOR"
	case ComposeReplace:
		return "Replace"
	default:
		return "ComposeOp(?)"
	}
}

// Rect is a left/top/right/bottom rectangle, right and bottom exclusive.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns the span of the rectangle on the X axis.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the span of the rectangle on the Y axis.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Image is an owning two-dimensional bi-level bitmap. Rows are packed
// MSB-first with a pitch of ceil(width/8) bytes. Reads outside the bounds
// return 0, which is the "virtual zero outside the region" rule every
// decoding procedure relies on.
type Image struct {
	width  int
	height int
	stride int
	data   []byte
}

const maxImageBytes = 1 << 30

// NewImage constructs a zero-filled bitmap. Non-positive or oversized
// dimensions yield an image with nil data; callers that parse untrusted
// dimensions must check IsValidImageSize first.
func NewImage(w, h int) *Image {
	img := &Image{}
	if w <= 0 || h <= 0 {
		return img
	}
	stride := (w + 7) / 8
	if h > maxImageBytes/stride {
		return img
	}
	img.width = w
	img.height = h
	img.stride = stride
	img.data = make([]byte, stride*h)
	return img
}

// IsValidImageSize bounds region and symbol dimensions before allocation.
func IsValidImageSize(w, h int64) bool {
	return w > 0 && w <= int64(maxImageSize) && h > 0 && h <= int64(maxImageSize)
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.height }

// Stride returns the number of bytes per scanline.
func (img *Image) Stride() int { return img.stride }

// Data exposes the backing buffer.
func (img *Image) Data() []byte { return img.data }

// Valid reports whether the image has allocated storage.
func (img *Image) Valid() bool { return img != nil && img.data != nil }

// GetPixel returns the bit at (x, y), or 0 outside the bounds.
func (img *Image) GetPixel(x, y int) int {
	if img == nil || img.data == nil {
		return 0
	}
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return 0
	}
	b := img.data[y*img.stride+x>>3]
	return int((b >> (7 - (x & 7))) & 1)
}

// SetPixel writes the bit at (x, y). Out-of-bounds writes are dropped.
func (img *Image) SetPixel(x, y, v int) {
	if img == nil || img.data == nil {
		return
	}
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return
	}
	idx := y*img.stride + x>>3
	mask := byte(1 << (7 - (x & 7)))
	if v != 0 {
		img.data[idx] |= mask
	} else {
		img.data[idx] &^= mask
	}
}

// CopyLine clones scanline srcY into dstY, zero-filling when the source row
// is outside the image.
func (img *Image) CopyLine(dstY, srcY int) {
	if img == nil || img.data == nil {
		return
	}
	dst := img.line(dstY)
	if dst == nil {
		return
	}
	src := img.line(srcY)
	if src == nil {
		clear(dst)
		return
	}
	copy(dst, src)
}

// Fill writes the same bit across the whole buffer.
func (img *Image) Fill(v bool) {
	if img == nil || img.data == nil {
		return
	}
	b := byte(0)
	if v {
		b = 0xff
	}
	for i := range img.data {
		img.data[i] = b
	}
}

// SubImage returns a newly allocated copy of the requested rectangle.
// The rectangle must lie entirely within the image.
func (img *Image) SubImage(x, y, w, h int) (*Image, error) {
	if img == nil || img.data == nil {
		return nil, errors.New("jbig2: subimage of invalid image")
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > img.width || y+h > img.height {
		return nil, errors.New("jbig2: subimage rectangle out of bounds")
	}
	sub := NewImage(w, h)
	if !sub.Valid() {
		return nil, errors.New("jbig2: failed to allocate subimage")
	}
	if x&7 == 0 {
		n := (w + 7) / 8
		for j := 0; j < h; j++ {
			copy(sub.line(j)[:n], img.line(y+j)[x>>3:x>>3+n])
		}
		if tail := w & 7; tail != 0 {
			// Mask the bits that fell outside the requested width.
			mask := byte(0xff << (8 - tail))
			for j := 0; j < h; j++ {
				line := sub.line(j)
				line[n-1] &= mask
			}
		}
		return sub, nil
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			sub.SetPixel(i, j, img.GetPixel(x+i, y+j))
		}
	}
	return sub, nil
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	dup := &Image{width: img.width, height: img.height, stride: img.stride}
	if img.data != nil {
		dup.data = append([]byte(nil), img.data...)
	}
	return dup
}

// ComposeTo blends this image onto dst with its top-left corner at (x, y),
// clipping to the destination bounds.
func (img *Image) ComposeTo(dst *Image, x, y int, op ComposeOp) bool {
	if img == nil || img.data == nil {
		return false
	}
	return img.composeRect(dst, x, y, Rect{0, 0, img.width, img.height}, op)
}

// ComposeFrom blends src onto this image at (x, y).
func (img *Image) ComposeFrom(x, y int, src *Image, op ComposeOp) bool {
	if src == nil {
		return false
	}
	return src.ComposeTo(img, x, y, op)
}

const composeOffsetLimit = 1 << 20

func (img *Image) composeRect(dst *Image, x, y int, rect Rect, op ComposeOp) bool {
	if dst == nil || dst.data == nil {
		return false
	}
	if x < -composeOffsetLimit || x > composeOffsetLimit || y < -composeOffsetLimit || y > composeOffsetLimit {
		return false
	}
	if rect.Left < 0 || rect.Top < 0 || rect.Right > img.width || rect.Bottom > img.height {
		return false
	}

	xs0, ys0 := 0, 0
	if x < 0 {
		xs0 = -x
	}
	if y < 0 {
		ys0 = -y
	}
	xs1 := min(rect.Width(), dst.width-x)
	ys1 := min(rect.Height(), dst.height-y)
	if xs0 >= xs1 || ys0 >= ys1 {
		// A fully clipped composition is a no-op, not a failure.
		return true
	}

	xd0 := max(x, 0)
	yd0 := max(y, 0)
	for yy := 0; yy < ys1-ys0; yy++ {
		srcY := rect.Top + ys0 + yy
		dstY := yd0 + yy
		for xx := 0; xx < xs1-xs0; xx++ {
			srcBit := img.GetPixel(rect.Left+xs0+xx, srcY)
			dstX := xd0 + xx
			dst.SetPixel(dstX, dstY, combineBits(op, dst.GetPixel(dstX, dstY), srcBit))
		}
	}
	return true
}

func combineBits(op ComposeOp, dst, src int) int {
	switch op {
	case ComposeOR:
		return dst | src
	case ComposeAND:
		return dst & src
	case ComposeXOR:
		return dst ^ src
	case ComposeXNOR:
		return 1 - (dst ^ src)
	default:
		return src
	}
}

func (img *Image) line(y int) []byte {
	if img == nil || img.data == nil || y < 0 || y >= img.height {
		return nil
	}
	start := y * img.stride
	return img.data[start : start+img.stride]
}
