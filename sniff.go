package imagepick

import (
	"bytes"
)

// Format is an image format detected from leading bytes.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatSVG     Format = "svg"
	FormatPDF     Format = "pdf"
)

var formatExtensions = map[Format]string{
	FormatJPEG: ".jpg",
	FormatPNG:  ".png",
	FormatGIF:  ".gif",
	FormatWebP: ".webp",
	FormatBMP:  ".bmp",
	FormatTIFF: ".tif",
	FormatSVG:  ".svg",
	FormatPDF:  ".pdf",
}

// Extension returns the canonical file extension, including the dot.
func (f Format) Extension() string {
	return formatExtensions[f]
}

// IsRaster reports whether the format is a supported raster format.
func (f Format) IsRaster() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWebP, FormatBMP, FormatTIFF:
		return true
	}
	return false
}

// IsVector reports whether the format is vector or markup based.
func (f Format) IsVector() bool {
	return f == FormatSVG || f == FormatPDF
}

var (
	magicJPEG  = []byte{0xFF, 0xD8, 0xFF}
	magicPNG   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	magicGIF87 = []byte("GIF87a")
	magicGIF89 = []byte("GIF89a")
	magicRIFF  = []byte("RIFF")
	magicWEBP  = []byte("WEBP")
	magicBMP   = []byte("BM")
	magicTIFFI = []byte{'I', 'I', 0x2A, 0x00}
	magicTIFFM = []byte{'M', 'M', 0x00, 0x2A}
	magicPDF   = []byte("%PDF-")
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
)

// markupPrefixes are lower-cased prefixes of vector/markup payloads.
var markupPrefixes = [][]byte{
	[]byte("<svg"),
	[]byte("<?xml"),
	[]byte("<!doctype svg"),
}

// minBMPHeader is the size of the BMP file header; shorter "BM" payloads are text.
const minBMPHeader = 14

// Sniff detects the image format from the leading bytes of data.
// File names and claimed content types are never consulted.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG
	case bytes.HasPrefix(data, magicGIF87), bytes.HasPrefix(data, magicGIF89):
		return FormatGIF
	case len(data) >= 12 && bytes.Equal(data[:4], magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return FormatWebP
	case bytes.HasPrefix(data, magicTIFFI), bytes.HasPrefix(data, magicTIFFM):
		return FormatTIFF
	case len(data) >= minBMPHeader && bytes.HasPrefix(data, magicBMP):
		return FormatBMP
	case bytes.HasPrefix(data, magicPDF):
		return FormatPDF
	}

	head := bytes.TrimPrefix(data, utf8BOM)
	head = bytes.TrimLeft(head, " \t\r\n")
	const markupProbe = 32
	if len(head) > markupProbe {
		head = head[:markupProbe]
	}
	head = bytes.ToLower(head)
	for _, p := range markupPrefixes {
		if bytes.HasPrefix(head, p) {
			return FormatSVG
		}
	}
	return FormatUnknown
}
