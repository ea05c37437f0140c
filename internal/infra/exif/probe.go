// Package exif inspects captured images before they are classified.
package exif

import (
	"bytes"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
)

type Probe struct{}

func NewProbe() *Probe {
	return &Probe{}
}

// Probe reads EXIF presence, GPS and capture time. Files without EXIF, or that
// fail to decode, yield an empty result.
func (p *Probe) Probe(data []byte) usecase.ImageMetadata {
	var meta usecase.ImageMetadata

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}
	meta.HasExif = true

	if lat, lng, err := x.LatLong(); err == nil {
		meta.GPS = &domain.Coordinate{Lat: lat, Lng: lng}
	}
	if taken, err := x.DateTime(); err == nil {
		meta.TakenAt = &taken
	}
	return meta
}

// DetectMimeType sniffs the content type of an image payload. Anything that is
// not an image falls back to the given default.
func DetectMimeType(data []byte, fallback string) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("image/jpeg") || m.Is("image/png") || m.Is("image/webp") || m.Is("image/gif") || m.Is("image/heic") {
			return mt.String()
		}
	}
	return fallback
}
