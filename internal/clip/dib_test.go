package clip

import (
	"encoding/binary"
	"image/color"
	"testing"
)

// infoHeader builds a BITMAPINFOHEADER for a bottom-up bitmap.
func infoHeader(width, height int32, bitCount uint16, compression, clrUsed uint32) []byte {
	le := binary.LittleEndian
	h := make([]byte, infoHeaderLen)
	le.PutUint32(h[0:4], infoHeaderLen)
	le.PutUint32(h[4:8], uint32(width))
	le.PutUint32(h[8:12], uint32(height))
	le.PutUint16(h[12:14], 1)
	le.PutUint16(h[14:16], bitCount)
	le.PutUint32(h[16:20], compression)
	le.PutUint32(h[32:36], clrUsed)
	return h
}

func TestDecodeDIB24(t *testing.T) {
	// 2x1, BGR, row padded to 8 bytes.
	dib := infoHeader(2, 1, 24, biRGB, 0)
	dib = append(dib,
		0x00, 0x00, 0xff, // red
		0xff, 0x00, 0x00, // blue
		0x00, 0x00,
	)

	img, err := DecodeDIB(dib)
	if err != nil {
		t.Fatalf("DecodeDIB: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
		t.Fatalf("bounds = %v, want 2x1", b)
	}
	tests := []struct {
		x    int
		want color.RGBA
	}{
		{0, color.RGBA{R: 0xff, A: 0xff}},
		{1, color.RGBA{B: 0xff, A: 0xff}},
	}
	for _, tt := range tests {
		got := color.RGBAModel.Convert(img.At(tt.x, 0)).(color.RGBA)
		if got != tt.want {
			t.Errorf("pixel %d = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestDIBToBMPFoldsStandardBitfields(t *testing.T) {
	le := binary.LittleEndian
	dib := infoHeader(1, 1, 32, biBitfields, 0)
	masks := make([]byte, 12)
	le.PutUint32(masks[0:4], 0x00ff0000)
	le.PutUint32(masks[4:8], 0x0000ff00)
	le.PutUint32(masks[8:12], 0x000000ff)
	dib = append(dib, masks...)
	dib = append(dib, 0x10, 0x20, 0x30, 0x00)

	file, err := dibToBMP(dib)
	if err != nil {
		t.Fatalf("dibToBMP: %v", err)
	}
	if string(file[0:2]) != "BM" {
		t.Fatalf("magic = %q", file[0:2])
	}
	if got := le.Uint32(file[10:14]); got != fileHeaderLen+infoHeaderLen {
		t.Errorf("pixel offset = %d, want %d", got, fileHeaderLen+infoHeaderLen)
	}
	if got := le.Uint32(file[fileHeaderLen+16:]); got != biRGB {
		t.Errorf("compression = %d, want BI_RGB", got)
	}
	if len(file) != fileHeaderLen+infoHeaderLen+4 {
		t.Errorf("len = %d, masks should be dropped", len(file))
	}
	if got := file[len(file)-4:]; got[0] != 0x10 || got[2] != 0x30 {
		t.Errorf("pixel bytes = %v", got)
	}
}

func TestDIBToBMPPadsPalette(t *testing.T) {
	le := binary.LittleEndian
	dib := infoHeader(4, 1, 8, biRGB, 2)
	dib = append(dib, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0) // two palette entries
	dib = append(dib, 0, 1, 0, 1)

	file, err := dibToBMP(dib)
	if err != nil {
		t.Fatalf("dibToBMP: %v", err)
	}
	want := uint32(fileHeaderLen + infoHeaderLen + 256*4)
	if got := le.Uint32(file[10:14]); got != want {
		t.Errorf("pixel offset = %d, want %d", got, want)
	}
	if got := le.Uint32(file[fileHeaderLen+32:]); got != 256 {
		t.Errorf("clrUsed = %d, want 256", got)
	}
	if len(file) != int(want)+4 {
		t.Errorf("len = %d, want %d", len(file), want+4)
	}
}

func TestDecodeDIBRejectsTruncated(t *testing.T) {
	tests := []struct {
		name string
		dib  []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 20)},
		{"header larger than payload", func() []byte {
			h := infoHeader(1, 1, 24, biRGB, 0)
			binary.LittleEndian.PutUint32(h[0:4], 124)
			return h
		}()},
		{"missing masks", infoHeader(1, 1, 32, biBitfields, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDIB(tt.dib); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// v5Header builds a BITMAPV5HEADER with inline red, green, blue and alpha
// masks.
func v5Header(width, height int32, bitCount uint16, compression uint32, masks [4]uint32) []byte {
	le := binary.LittleEndian
	h := make([]byte, 124)
	copy(h, infoHeader(width, height, bitCount, compression, 0))
	le.PutUint32(h[0:4], 124)
	for i, m := range masks {
		le.PutUint32(h[infoHeaderLen+4*i:], m)
	}
	return h
}

var bgrx = [4]uint32{0x00ff0000, 0x0000ff00, 0x000000ff, 0}

func TestDecodeDIB32(t *testing.T) {
	pixel := []byte{0x10, 0x20, 0x30, 0x00}
	tests := []struct {
		name string
		dib  []byte
		want color.NRGBA
	}{
		{
			name: "info header",
			dib:  infoHeader(1, 1, 32, biRGB, 0),
			want: color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff},
		},
		{
			name: "v5 bitfields without alpha mask",
			dib:  v5Header(1, 1, 32, biBitfields, bgrx),
			want: color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff},
		},
		{
			name: "v5 rgb with zero padding",
			dib:  v5Header(1, 1, 32, biRGB, [4]uint32{}),
			want: color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff},
		},
		{
			name: "v4 rgb with zero padding",
			dib: func() []byte {
				h := v5Header(1, 1, 32, biRGB, [4]uint32{})[:108]
				binary.LittleEndian.PutUint32(h[0:4], 108)
				return h
			}(),
			want: color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeDIB(append(tt.dib, pixel...))
			if err != nil {
				t.Fatalf("DecodeDIB: %v", err)
			}
			if got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA); got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeDIBKeepsDeclaredAlpha(t *testing.T) {
	masks := bgrx
	masks[3] = 0xff000000
	dib := append(v5Header(1, 1, 32, biBitfields, masks), 0x10, 0x20, 0x30, 0x80)

	img, err := DecodeDIB(dib)
	if err != nil {
		t.Fatalf("DecodeDIB: %v", err)
	}
	want := color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0x80}
	if got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA); got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestDecodeDIBExpandsToRGB(t *testing.T) {
	le := binary.LittleEndian
	bw := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0} // black, white
	u16 := func(vs ...uint16) []byte {
		b := make([]byte, 2*len(vs))
		for i, v := range vs {
			le.PutUint16(b[2*i:], v)
		}
		return b
	}
	masks := func(ms ...uint32) []byte {
		b := make([]byte, 4*len(ms))
		for i, m := range ms {
			le.PutUint32(b[4*i:], m)
		}
		return b
	}
	join := func(parts ...[]byte) []byte {
		var b []byte
		for _, p := range parts {
			b = append(b, p...)
		}
		return b
	}
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black := color.RGBA{A: 0xff}
	red := color.RGBA{R: 0xff, A: 0xff}
	blue := color.RGBA{B: 0xff, A: 0xff}

	tests := []struct {
		name string
		dib  []byte
		want []color.RGBA // row 0, left to right
	}{
		{
			name: "1-bit",
			dib:  join(infoHeader(3, 1, 1, biRGB, 2), bw, []byte{0b01000000, 0, 0, 0}),
			want: []color.RGBA{black, white, black},
		},
		{
			name: "4-bit",
			dib: join(infoHeader(2, 1, 4, biRGB, 3),
				bw, []byte{0, 0, 0xff, 0}, // third entry red
				[]byte{0x21, 0, 0, 0}),
			want: []color.RGBA{red, white},
		},
		{
			name: "16-bit 555",
			dib:  join(infoHeader(2, 1, 16, biRGB, 0), u16(0x7c00, 0x001f)),
			want: []color.RGBA{red, blue},
		},
		{
			name: "16-bit 565 bitfields",
			dib: join(infoHeader(2, 1, 16, biBitfields, 0),
				masks(0xf800, 0x07e0, 0x001f), u16(0xf800, 0xffff)),
			want: []color.RGBA{red, white},
		},
		{
			name: "32-bit rgbx bitfields",
			dib: join(infoHeader(1, 1, 32, biBitfields, 0),
				masks(0x000000ff, 0x0000ff00, 0x00ff0000), []byte{0xff, 0, 0, 0}),
			want: []color.RGBA{red},
		},
		{
			name: "16-bit top-down",
			dib:  join(infoHeader(1, -2, 16, biRGB, 0), u16(0x7c00, 0), u16(0x001f, 0)),
			want: []color.RGBA{red},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeDIB(tt.dib)
			if err != nil {
				t.Fatalf("DecodeDIB: %v", err)
			}
			if got := img.Bounds().Dx(); got != len(tt.want) {
				t.Fatalf("width = %d, want %d", got, len(tt.want))
			}
			for x, want := range tt.want {
				if got := color.RGBAModel.Convert(img.At(x, 0)).(color.RGBA); got != want {
					t.Errorf("pixel %d = %v, want %v", x, got, want)
				}
			}
		})
	}
}

func TestDecodeDIBRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		dib  []byte
	}{
		{"rle8", append(infoHeader(1, 1, 8, 1, 1), 0, 0, 0, 0, 0, 0)},
		{"short 1-bit rows", append(infoHeader(1, 4, 1, biRGB, 2), make([]byte, 8+4)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDIB(tt.dib); err == nil {
				t.Error("expected error")
			}
		})
	}
}
