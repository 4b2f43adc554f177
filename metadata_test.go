package imagepick

import (
	"strings"
	"testing"
)

func TestStockAgencyInMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta *ImageMetadata
		want string
	}{
		{"nil", nil, ""},
		{"empty", &ImageMetadata{}, ""},
		{"photographer only", &ImageMetadata{IPTCCopyright: "(c) 2024 John Smith", EXIFArtist: "John Smith"}, ""},
		{"shutterstock upper case", &ImageMetadata{IPTCCopyright: "SHUTTERSTOCK, INC."}, "shutterstock"},
		{"getty with space", &ImageMetadata{IPTCCredit: "Getty Images"}, "getty images"},
		{"getty domain", &ImageMetadata{IPTCSource: "gettyimages.com"}, "gettyimages"},
		{"istockphoto", &ImageMetadata{EXIFCopyright: "iStockPhoto.com/photographer"}, "istockphoto"},
		{"bare istock", &ImageMetadata{DCCreator: "iStock contributor"}, "istock"},
		{"alamy", &ImageMetadata{IPTCSource: "Alamy Stock Photo"}, "alamy"},
		{"depositphotos byline", &ImageMetadata{IPTCByline: "Depositphotos user"}, "depositphotos"},
		{"adobe stock rights", &ImageMetadata{DCRights: "Licensed via Adobe Stock"}, "adobe stock"},
		{"adobestock id", &ImageMetadata{IPTCCopyright: "AdobeStock_123456"}, "adobestock"},
		{"dreamstime artist", &ImageMetadata{EXIFArtist: "Dreamstime.com"}, "dreamstime"},
		{"123rf", &ImageMetadata{IPTCCredit: "123RF Stock Photos"}, "123rf"},
		{"age fotostock", &ImageMetadata{IPTCCredit: "Age Fotostock"}, "age fotostock"},
		{"usage terms", &ImageMetadata{XMPUsageTerms: "Royalty free via Pond5"}, "pond5"},
		{"caption", &ImageMetadata{IPTCCaption: "A canstockphoto preview"}, "canstockphoto"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := StockAgencyInMetadata(tc.meta); got != tc.want {
				t.Errorf("StockAgencyInMetadata() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFirstString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{" Jane ", "Jane"},
		{[]string{"first", "second"}, "first"},
		{[]string{}, ""},
		{[]any{"  alt  "}, "alt"},
		{[]any{42}, ""},
		{3.5, ""},
		{nil, ""},
	}
	for _, tc := range tests {
		if got := firstString(tc.in); got != tc.want {
			t.Errorf("firstString(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractImageMetadata_NilAndEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "nil data returns nil",
			data: nil,
		},
		{
			name: "empty data returns nil",
			data: []byte{},
		},
		{
			name: "garbage data returns nil",
			data: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractImageMetadata(tc.data)
			if got != nil {
				t.Errorf("ExtractImageMetadata(%v) = %+v, want nil", tc.data, got)
			}
		})
	}
}

func TestImageMetadataText(t *testing.T) {
	t.Parallel()

	var nilMeta *ImageMetadata
	if got := nilMeta.Text(); got != "" {
		t.Errorf("nil Text() = %q, want empty", got)
	}

	m := &ImageMetadata{EXIFArtist: "Jane Doe", IPTCCaption: "Close-up of an eye"}
	got := m.Text()
	if !strings.Contains(got, "Jane Doe") || !strings.Contains(got, "Close-up of an eye") {
		t.Errorf("Text() = %q, want both fields", got)
	}
}

func TestExtractImageMetadata_GeneratedImagesCarryNone(t *testing.T) {
	t.Parallel()

	if got := ExtractImageMetadata(makePNG(20, 20)); got != nil {
		t.Errorf("ExtractImageMetadata(png) = %+v, want nil", got)
	}
	if got := ExtractImageMetadata(makeJPEG(20, 20)); got != nil {
		t.Errorf("ExtractImageMetadata(jpeg) = %+v, want nil", got)
	}
}
