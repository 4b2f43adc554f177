package imagepick

import (
	"bytes"
	"image"

	"github.com/corona10/goimagehash"
)

// maxDupDistance is the dHash Hamming distance under which two images count
// as the same picture.
const maxDupDistance = 10

// dedupFilter remembers the difference hashes of one term's validated
// candidates. It is fed sequentially in discovery order.
type dedupFilter struct {
	seen []*goimagehash.ImageHash
}

// isDuplicate reports whether data looks like an image already seen and
// records it otherwise. Undecodable or unhashable data is never a duplicate.
func (d *dedupFilter) isDuplicate(data []byte) bool {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false
	}

	for _, prev := range d.seen {
		if dist, err := hash.Distance(prev); err == nil && dist < maxDupDistance {
			return true
		}
	}
	d.seen = append(d.seen, hash)
	return false
}
