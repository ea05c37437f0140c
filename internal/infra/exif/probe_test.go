package exif

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProbe_NoExif(t *testing.T) {
	meta := NewProbe().Probe(pngBytes(t))

	assert.False(t, meta.HasExif)
	assert.Nil(t, meta.GPS)
	assert.Nil(t, meta.TakenAt)
}

func TestProbe_Garbage(t *testing.T) {
	meta := NewProbe().Probe([]byte("not an image"))
	assert.False(t, meta.HasExif)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMimeType(pngBytes(t), "image/jpeg"))
	assert.Equal(t, "image/jpeg", DetectMimeType([]byte("plain text"), "image/jpeg"))
}
