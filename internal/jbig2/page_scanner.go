package jbig2

import (
	"errors"
	"fmt"
)

// PageInformation is the parsed 7.4.8 page information segment.
type PageInformation struct {
	Width       uint32
	Height      uint32
	XResolution uint32
	YResolution uint32
	Flags       uint8
	Striping    uint16
}

// IsEventuallyLossless reports flag bit 0.
func (p PageInformation) IsEventuallyLossless() bool { return p.Flags&0x01 != 0 }

// MightContainRefinements reports flag bit 1.
func (p PageInformation) MightContainRefinements() bool { return p.Flags&0x02 != 0 }

// DefaultPixelValue is the value the page buffer is filled with before any
// region is composed.
func (p PageInformation) DefaultPixelValue() bool { return p.Flags&0x04 != 0 }

// DefaultCombinationOperator is the page default operator; the two-bit field
// can never encode Replace.
func (p PageInformation) DefaultCombinationOperator() ComposeOp {
	return ComposeOp(p.Flags >> 3 & 0x03)
}

// RequiresAuxiliaryBuffers reports flag bit 5.
func (p PageInformation) RequiresAuxiliaryBuffers() bool { return p.Flags&0x20 != 0 }

// DirectRegionSegmentsOverrideDefaultCombinationOperator reports flag bit 6.
func (p PageInformation) DirectRegionSegmentsOverrideDefaultCombinationOperator() bool {
	return p.Flags&0x40 != 0
}

// IsStriped reports the high bit of the striping information.
func (p PageInformation) IsStriped() bool { return p.Striping&0x8000 != 0 }

// MaximumStripeHeight is the low 15 bits of the striping information.
func (p PageInformation) MaximumStripeHeight() int { return int(p.Striping & 0x7fff) }

func parsePageInformation(data []byte) (PageInformation, error) {
	var p PageInformation
	if len(data) < 19 {
		return p, errors.New("jbig2: page information segment too short")
	}
	bs := NewBitStream(data)
	p.Width, _ = bs.ReadUint32()
	p.Height, _ = bs.ReadUint32()
	p.XResolution, _ = bs.ReadUint32()
	p.YResolution, _ = bs.ReadUint32()
	p.Flags, _ = bs.ReadByte()
	p.Striping, _ = bs.ReadUint16()
	return p, nil
}

func parseEndOfStripe(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, errors.New("jbig2: end of stripe segment has wrong size")
	}
	return NewBitStream(data).ReadUint32()
}

// PageGeometry is the result of the pre-decode scan of one page: its
// information segment plus the final dimensions, with the unknown-height
// sentinel resolved from EndOfStripe segments.
type PageGeometry struct {
	Info   PageInformation
	Width  int
	Height int
}

// scanPage walks the segments associated with pageNumber and determines the
// final page size while validating the striping and end-of-page structure
// (8.2, 7.4.9, 7.4.10).
func scanPage(f *File, pageNumber uint32) (*PageGeometry, error) {
	var (
		geom               *PageGeometry
		unknownHeight      bool
		foundEndOfPage     bool
		lastStripeBottom   = -1
		lastStripeSegIndex = -1
	)

	for idx, seg := range f.Segments {
		if seg.Header.PageAssociation != pageNumber {
			continue
		}
		if foundEndOfPage && seg.Header.Type != SegmentEndOfFile {
			return nil, errors.New("jbig2: segment after end of page")
		}

		switch seg.Header.Type {
		case SegmentPageInformation:
			if geom != nil {
				return nil, fmt.Errorf("jbig2: multiple page information segments for page %d", pageNumber)
			}
			info, err := parsePageInformation(seg.Data)
			if err != nil {
				return nil, err
			}
			unknownHeight = info.Height == 0xffffffff
			if unknownHeight && !info.IsStriped() {
				return nil, errors.New("jbig2: page of indeterminate height is not striped")
			}
			geom = &PageGeometry{Info: info, Width: int(info.Width), Height: int(info.Height)}

		case SegmentEndOfStripe:
			if geom == nil {
				return nil, errors.New("jbig2: end of stripe before page information")
			}
			if !geom.Info.IsStriped() {
				return nil, errors.New("jbig2: end of stripe on non-striped page")
			}
			y, err := parseEndOfStripe(seg.Data)
			if err != nil {
				return nil, err
			}
			newHeight := int(y) + 1
			if unknownHeight {
				if lastStripeBottom >= 0 && newHeight < lastStripeBottom {
					return nil, errors.New("jbig2: end of stripe Y coordinates not increasing")
				}
				geom.Height = newHeight
			} else if newHeight > geom.Height {
				return nil, errors.New("jbig2: end of stripe Y coordinate beyond page height")
			}
			stripeHeight := newHeight
			if lastStripeBottom >= 0 {
				stripeHeight = newHeight - lastStripeBottom
			}
			if stripeHeight < 0 || stripeHeight > geom.Info.MaximumStripeHeight() {
				return nil, errors.New("jbig2: stripe exceeds maximum stripe height")
			}
			lastStripeBottom = newHeight
			lastStripeSegIndex = idx

		case SegmentEndOfPage:
			if len(seg.Data) != 0 {
				return nil, errors.New("jbig2: end of page segment has non-zero size")
			}
			foundEndOfPage = true
			if geom != nil && geom.Info.IsStriped() && lastStripeSegIndex != idx-1 {
				return nil, errors.New("jbig2: end of page not preceded by end of stripe on striped page")
			}
		}
	}

	if geom == nil {
		return nil, fmt.Errorf("jbig2: no page information segment for page %d", pageNumber)
	}
	if geom.Info.IsStriped() {
		if lastStripeBottom < 0 {
			return nil, errors.New("jbig2: striped page without end of stripe segment")
		}
		if !unknownHeight && lastStripeBottom > geom.Height {
			return nil, errors.New("jbig2: stripes taller than page height")
		}
	}

	if f.Header.Organization == OrganizationEmbedded {
		if foundEndOfPage {
			return nil, errors.New("jbig2: end of page segment in embedded stream")
		}
	} else if !foundEndOfPage {
		return nil, fmt.Errorf("jbig2: missing end of page segment for page %d", pageNumber)
	}

	if !IsValidImageSize(int64(geom.Width), int64(geom.Height)) {
		return nil, errors.New("jbig2: invalid page dimensions")
	}
	return geom, nil
}

// scanPageNumbers enumerates the page numbers present in file order and
// cross-checks the file header page count.
func scanPageNumbers(f *File) ([]uint32, error) {
	seen := make(map[uint32]bool)
	var pages []uint32
	for _, seg := range f.Segments {
		pa := seg.Header.PageAssociation
		if pa == 0 || seen[pa] {
			continue
		}
		seen[pa] = true
		pages = append(pages, pa)
	}
	if f.Header.HasNumberOfPages && int(f.Header.NumberOfPages) != len(pages) {
		return nil, fmt.Errorf("jbig2: file header declares %d pages, found %d", f.Header.NumberOfPages, len(pages))
	}
	return pages, nil
}
