package jbig2

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/image/ccitt"
)

// decodeMMR runs the external CCITT Group 4 decoder over the stream's
// remaining bytes and returns a width x height image. The stream is
// advanced past the consumed input.
func decodeMMR(bs *BitStream, width, height int) (*Image, error) {
	bs.AlignByte()
	data := bs.Pointer()
	if data == nil {
		return nil, errors.New("jbig2: no data for MMR decode")
	}

	img := NewImage(width, height)
	if !img.Valid() {
		return nil, errors.New("jbig2: failed to allocate MMR image")
	}

	reader := bytes.NewReader(data)
	dec := ccitt.NewReader(reader, ccitt.MSB, ccitt.Group4, width, height, &ccitt.Options{})
	rowBytes := (width + 7) / 8
	decoded, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.New("jbig2: MMR decode failed")
	}
	if len(decoded) != rowBytes*height {
		return nil, errors.New("jbig2: decoded MMR data has wrong size")
	}
	for y := 0; y < height; y++ {
		copy(img.line(y), decoded[y*rowBytes:(y+1)*rowBytes])
	}

	bs.AddOffset(len(data) - reader.Len())
	return img, nil
}
