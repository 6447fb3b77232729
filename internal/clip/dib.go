package clip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math/bits"

	"golang.org/x/image/bmp"
)

const (
	fileHeaderLen   = 14
	infoHeaderLen   = 40
	v4InfoHeaderLen = 108

	biRGB       = 0
	biBitfields = 3

	// Headers from BITMAPV2INFOHEADER on carry the masks inline; from
	// BITMAPV3INFOHEADER on they carry an alpha mask too.
	inlineMasksLen = 52
	inlineAlphaLen = 56
)

var errShortDIB = errors.New("dib: truncated header")

// dibHeader is the part of a BITMAPINFOHEADER (or later) needed to rebuild
// the pixels.
type dibHeader struct {
	width       int32
	height      int32 // negative for top-down rows
	bitCount    uint16
	compression uint32
	// red, green, blue, alpha
	masks [4]uint32
}

// DecodeDIB decodes a packed device-independent bitmap (the CF_DIB clipboard
// payload: BITMAPINFOHEADER or later, optional masks and palette, pixels).
//
// The payload is rewritten into a file golang.org/x/image/bmp decodes the way
// the Windows imaging stack does. 8, 24 and plain 32-bit pixels pass through
// under a BITMAPINFOHEADER, so the fourth byte of a 32-bit pixel is padding.
// A 32-bit image keeps its alpha only when its header declares an alpha mask.
// Every other layout (1, 2, 4 and 16 bits, or non-BGR masks) is expanded to
// 24-bit BGR.
func DecodeDIB(dib []byte) (image.Image, error) {
	file, err := dibToBMP(dib)
	if err != nil {
		return nil, err
	}
	img, err := bmp.Decode(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("dib: %w", err)
	}
	return img, nil
}

func dibToBMP(dib []byte) ([]byte, error) {
	h, palette, pixels, err := parseDIB(dib)
	if err != nil {
		return nil, err
	}
	if h.compression != biRGB && h.compression != biBitfields {
		return nil, fmt.Errorf("dib: unsupported compression %d", h.compression)
	}

	switch {
	case h.bitCount == 8 && h.compression == biRGB:
		if len(palette) > 256*4 {
			palette = palette[:256*4]
		}
		pal := make([]byte, 256*4)
		copy(pal, palette)
		return bmpFile(h.info(8, 256, infoHeaderLen), pal, pixels), nil

	case h.bitCount == 24 && h.compression == biRGB:
		return bmpFile(h.info(24, 0, infoHeaderLen), nil, pixels), nil

	case h.bitCount == 32 && h.bgrMasks():
		if h.masks[3] == 0xff000000 {
			return bmpFile(h.info(32, 0, v4InfoHeaderLen), nil, pixels), nil
		}
		return bmpFile(h.info(32, 0, infoHeaderLen), nil, pixels), nil

	case h.bitCount == 1 || h.bitCount == 2 || h.bitCount == 4 ||
		h.bitCount == 16 || h.bitCount == 32:
		rows, err := h.expand24(palette, pixels)
		if err != nil {
			return nil, err
		}
		return bmpFile(h.info(24, 0, infoHeaderLen), nil, rows), nil

	default:
		return nil, fmt.Errorf("dib: unsupported %d-bit layout with compression %d", h.bitCount, h.compression)
	}
}

// parseDIB splits a packed DIB into its header fields, palette and pixels.
func parseDIB(dib []byte) (h dibHeader, palette, pixels []byte, err error) {
	le := binary.LittleEndian
	if len(dib) < infoHeaderLen {
		return h, nil, nil, errShortDIB
	}
	hdrLen := le.Uint32(dib[0:4])
	if hdrLen < infoHeaderLen || uint64(hdrLen) > uint64(len(dib)) {
		return h, nil, nil, errShortDIB
	}
	h.width = int32(le.Uint32(dib[4:8]))
	h.height = int32(le.Uint32(dib[8:12]))
	h.bitCount = le.Uint16(dib[14:16])
	h.compression = le.Uint32(dib[16:20])
	clrUsed := le.Uint32(dib[32:36])

	pos := uint64(hdrLen)
	switch {
	case h.compression != biBitfields:
		switch h.bitCount {
		case 16:
			h.masks = [4]uint32{0x7c00, 0x03e0, 0x001f, 0}
		case 32:
			h.masks = [4]uint32{0x00ff0000, 0x0000ff00, 0x000000ff, 0}
		}
	case hdrLen >= inlineMasksLen:
		for i := 0; i < 3; i++ {
			h.masks[i] = le.Uint32(dib[infoHeaderLen+4*i:])
		}
		if hdrLen >= inlineAlphaLen {
			h.masks[3] = le.Uint32(dib[infoHeaderLen+12:])
		}
	default:
		if pos+12 > uint64(len(dib)) {
			return h, nil, nil, errShortDIB
		}
		for i := 0; i < 3; i++ {
			h.masks[i] = le.Uint32(dib[pos+uint64(4*i):])
		}
		pos += 12
	}

	if clrUsed == 0 && h.bitCount <= 8 {
		clrUsed = 1 << h.bitCount
	}
	palLen := uint64(clrUsed) * 4
	if pos+palLen > uint64(len(dib)) {
		return h, nil, nil, errShortDIB
	}
	return h, dib[pos : pos+palLen], dib[pos+palLen:], nil
}

// bgrMasks reports whether the colour masks describe plain BGRX pixels.
func (h *dibHeader) bgrMasks() bool {
	return h.masks[0] == 0x00ff0000 && h.masks[1] == 0x0000ff00 && h.masks[2] == 0x000000ff
}

// info builds an uncompressed header of hdrLen bytes for the rewritten file.
func (h *dibHeader) info(bitCount uint16, clrUsed uint32, hdrLen int) []byte {
	le := binary.LittleEndian
	b := make([]byte, hdrLen)
	le.PutUint32(b[0:4], uint32(hdrLen))
	le.PutUint32(b[4:8], uint32(h.width))
	le.PutUint32(b[8:12], uint32(h.height))
	le.PutUint16(b[12:14], 1)
	le.PutUint16(b[14:16], bitCount)
	le.PutUint32(b[16:20], biRGB)
	le.PutUint32(b[32:36], clrUsed)
	return b
}

// expand24 converts every row to 24-bit BGR, keeping the row order.
func (h *dibHeader) expand24(palette, pixels []byte) ([]byte, error) {
	if h.width < 0 {
		return nil, fmt.Errorf("dib: negative width %d", h.width)
	}
	width := int(h.width)
	rows := int(h.height)
	if rows < 0 {
		rows = -rows
	}
	inStride := (width*int(h.bitCount) + 31) / 32 * 4
	if uint64(inStride)*uint64(rows) > uint64(len(pixels)) {
		return nil, errShortDIB
	}
	outStride := (width*3 + 3) &^ 3

	out := make([]byte, outStride*rows)
	for y := 0; y < rows; y++ {
		in := pixels[y*inStride : (y+1)*inStride]
		row := out[y*outStride:]
		for x := 0; x < width; x++ {
			row[3*x], row[3*x+1], row[3*x+2] = h.bgr(in, x, palette)
		}
	}
	return out, nil
}

// bgr returns pixel x of row as blue, green and red. Alpha is dropped.
func (h *dibHeader) bgr(row []byte, x int, palette []byte) (b, g, r byte) {
	le := binary.LittleEndian
	var p uint32
	switch h.bitCount {
	case 1, 2, 4:
		perByte := 8 / int(h.bitCount)
		shift := 8 - int(h.bitCount)*(x%perByte+1)
		idx := int(row[x/perByte]>>shift) & (1<<h.bitCount - 1)
		if 4*idx+3 > len(palette) {
			return 0, 0, 0
		}
		return palette[4*idx], palette[4*idx+1], palette[4*idx+2]
	case 16:
		p = uint32(le.Uint16(row[2*x:]))
	default:
		p = le.Uint32(row[4*x:])
	}
	return channel(p, h.masks[2]), channel(p, h.masks[1]), channel(p, h.masks[0])
}

// channel extracts the bits of p under mask and scales them to 0..255.
func channel(p, mask uint32) byte {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	top := mask >> shift
	return byte(uint64((p&mask)>>shift) * 255 / uint64(top))
}

// bmpFile prefixes a BITMAPFILEHEADER to info, palette and pixels.
func bmpFile(info, palette, pixels []byte) []byte {
	le := binary.LittleEndian
	offset := fileHeaderLen + len(info) + len(palette)
	file := make([]byte, offset, offset+len(pixels))
	file[0], file[1] = 'B', 'M'
	le.PutUint32(file[2:6], uint32(offset+len(pixels)))
	le.PutUint32(file[10:14], uint32(offset))
	copy(file[fileHeaderLen:], info)
	copy(file[fileHeaderLen+len(info):], palette)
	return append(file, pixels...)
}
