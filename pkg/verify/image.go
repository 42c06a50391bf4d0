package verify

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type image struct {
	mime string
	data string // base64
}

func loadImage(path string) (image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return image{}, fmt.Errorf("failed to read screenshot: %w", err)
	}
	return encodeImage(b, mimeFor(path)), nil
}

func encodeImage(b []byte, mime string) image {
	return image{mime: mime, data: base64.StdEncoding.EncodeToString(b)}
}

func mimeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

func (i image) dataURL() string {
	return "data:" + i.mime + ";base64," + i.data
}
