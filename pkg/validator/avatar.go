package validator

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

var (
	ErrImageEncoding   = errors.New("image is not valid base64")
	ErrImageFormat     = errors.New("image must be JPEG or PNG")
	ErrImageDimensions = errors.New("image must be between 500x500 and 1000x1000 pixels")
	ErrImageTooLarge   = errors.New("image must be at most 1MB")
)

// AvatarRules bounds an uploaded profile image.
type AvatarRules struct {
	MinSide  int
	MaxSide  int
	MaxBytes int
}

var DefaultAvatarRules = AvatarRules{MinSide: 500, MaxSide: 1000, MaxBytes: 1 << 20}

// Validate checks size, format and dimensions and returns the MIME type.
func (r AvatarRules) Validate(data []byte) (string, error) {
	if len(data) > r.MaxBytes {
		return "", ErrImageTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrImageFormat
	}

	var contentType string
	switch format {
	case "jpeg":
		contentType = "image/jpeg"
	case "png":
		contentType = "image/png"
	default:
		return "", ErrImageFormat
	}

	if cfg.Width < r.MinSide || cfg.Height < r.MinSide || cfg.Width > r.MaxSide || cfg.Height > r.MaxSide {
		return "", ErrImageDimensions
	}

	return contentType, nil
}

// DecodeImage decodes standard base64 strictly.
func DecodeImage(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return nil, ErrImageEncoding
	}
	return data, nil
}
