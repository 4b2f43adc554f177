package imagepick

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the textual EXIF, IPTC and XMP fields embedded in an
// image. The safety filter scans them next to the provider description and
// author; the stock check looks for agency fingerprints.
type ImageMetadata struct {
	EXIFCopyright   string
	EXIFArtist      string
	EXIFDescription string
	IPTCCopyright   string
	IPTCCredit      string
	IPTCSource      string
	IPTCByline      string
	IPTCCaption     string
	XMPUsageTerms   string
	DCRights        string
	DCCreator       string
	DCDescription   string
}

// Text returns all non-empty fields joined by spaces.
func (m *ImageMetadata) Text() string {
	if m == nil {
		return ""
	}
	var parts []string
	for _, f := range m.fields() {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

func (m *ImageMetadata) fields() []string {
	return []string{
		m.EXIFCopyright,
		m.EXIFArtist,
		m.EXIFDescription,
		m.IPTCCopyright,
		m.IPTCCredit,
		m.IPTCSource,
		m.IPTCByline,
		m.IPTCCaption,
		m.XMPUsageTerms,
		m.DCRights,
		m.DCCreator,
		m.DCDescription,
	}
}

// stockMetadataKeywords are substrings that indicate a stock-photo agency when
// found (case-insensitive) in any metadata field.
var stockMetadataKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istockphoto",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobestock",
	"adobe stock",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"masterfile",
	"superstock",
	"agefotostock",
	"age fotostock",
	"colourbox",
	"vectorstock",
	"canstockphoto",
}

// StockAgencyInMetadata returns the first stock agency keyword found in the
// metadata, or "" when none matches.
func StockAgencyInMetadata(meta *ImageMetadata) string {
	if meta == nil {
		return ""
	}
	for _, f := range meta.fields() {
		if f == "" {
			continue
		}
		lower := strings.ToLower(f)
		for _, kw := range stockMetadataKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	}
	return ""
}

type tagKey struct {
	source imagemeta.Source
	name   string
}

// metadataTags routes every decoded tag to the field it fills.
var metadataTags = map[tagKey]func(*ImageMetadata) *string{
	{imagemeta.EXIF, "Copyright"}:        func(m *ImageMetadata) *string { return &m.EXIFCopyright },
	{imagemeta.EXIF, "Artist"}:           func(m *ImageMetadata) *string { return &m.EXIFArtist },
	{imagemeta.EXIF, "ImageDescription"}: func(m *ImageMetadata) *string { return &m.EXIFDescription },
	{imagemeta.IPTC, "CopyrightNotice"}:  func(m *ImageMetadata) *string { return &m.IPTCCopyright },
	{imagemeta.IPTC, "Credit"}:           func(m *ImageMetadata) *string { return &m.IPTCCredit },
	{imagemeta.IPTC, "Source"}:           func(m *ImageMetadata) *string { return &m.IPTCSource },
	{imagemeta.IPTC, "Byline"}:           func(m *ImageMetadata) *string { return &m.IPTCByline },
	{imagemeta.IPTC, "Caption-Abstract"}: func(m *ImageMetadata) *string { return &m.IPTCCaption },
	{imagemeta.XMP, "UsageTerms"}:        func(m *ImageMetadata) *string { return &m.XMPUsageTerms },
	{imagemeta.XMP, "Rights"}:            func(m *ImageMetadata) *string { return &m.DCRights },
	{imagemeta.XMP, "Creator"}:           func(m *ImageMetadata) *string { return &m.DCCreator },
	{imagemeta.XMP, "Description"}:       func(m *ImageMetadata) *string { return &m.DCDescription },
}

// ExtractImageMetadata reads the textual EXIF, IPTC and XMP fields of an
// image. It returns nil for empty or unparsable data and when no known tag
// carries text. A decoder panic counts as no metadata.
func ExtractImageMetadata(data []byte) (meta *ImageMetadata) {
	if len(data) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			meta = nil
		}
	}()

	m := &ImageMetadata{}
	found := false
	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			_, ok := metadataTags[tagKey{ti.Source, ti.Tag}]
			return ok
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			field, ok := metadataTags[tagKey{ti.Source, ti.Tag}]
			if s := firstString(ti.Value); ok && s != "" {
				*field(m) = s
				found = true
			}
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}
	return m
}

// firstString returns the trimmed text of a tag value. XMP lists yield
// their first item.
func firstString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	case []any:
		if len(val) > 0 {
			s, _ := val[0].(string)
			return strings.TrimSpace(s)
		}
	}
	return ""
}
