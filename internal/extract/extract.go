// Package extract turns the clipboard's bitmap into PNG bytes.
package extract

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"go.klb.dev/clipshot/internal/fault"
)

// EncodedImage is a complete PNG file. It is never modified after Extract
// returns it.
type EncodedImage []byte

// Source yields the clipboard bitmap; guard.Handle satisfies it.
type Source interface {
	Bitmap() (image.Image, error)
}

var (
	sinks = sync.Pool{New: func() any { return new(bytes.Buffer) }}

	encoder = png.Encoder{BufferPool: &bufferPool{}}
)

type bufferPool struct{ p sync.Pool }

func (bp *bufferPool) Get() *png.EncoderBuffer {
	b, _ := bp.p.Get().(*png.EncoderBuffer)
	return b
}

func (bp *bufferPool) Put(b *png.EncoderBuffer) { bp.p.Put(b) }

// PNG reads the bitmap from src and encodes it. The caller must hold
// exclusive clipboard access and have checked that an image is present.
func PNG(src Source) (EncodedImage, error) {
	img, err := src.Bitmap()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fault.New(fault.Extract, fault.System, "Bitmap()", 0)
	}
	return Encode(img)
}

// Encode PNG-encodes img into a pooled sink and returns an owned copy.
func Encode(img image.Image) (EncodedImage, error) {
	sink := sinks.Get().(*bytes.Buffer)
	sink.Reset()
	defer sinks.Put(sink)

	if err := encoder.Encode(sink, img); err != nil {
		return nil, &fault.Error{Kind: fault.Extract, Origin: fault.Encoder, Method: "png.Encode()", Code: fault.GenericError, Err: err}
	}
	return EncodedImage(bytes.Clone(sink.Bytes())), nil
}
