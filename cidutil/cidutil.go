// Package cidutil derives blob identifiers from content.
//
// Every blob id in this module is a CIDv1 using the "raw" multicodec and a
// sha2-256 multihash, so identical bytes always map to the same id.
package cidutil

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// BlobID returns the CIDv1 (raw + sha2-256) derived from data.
func BlobID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// BlobIDString is BlobID in its canonical string form.
func BlobIDString(data []byte) string {
	id, err := BlobID(data)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return id.String()
}

// ParseBlobID decodes s and checks it uses the raw + sha2-256 layout.
func ParseBlobID(s string) (cid.Cid, error) {
	id, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return cid.Undef, err
	}
	if id.Version() != 1 || id.Type() != cid.Raw {
		return cid.Undef, fmt.Errorf("cidutil: %s is not a CIDv1 raw blob id", s)
	}
	if id.Prefix().MhType != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("cidutil: %s does not use sha2-256", s)
	}
	return id, nil
}

// Verify reports whether data hashes to id.
func Verify(id cid.Cid, data []byte) bool {
	got, err := BlobID(data)
	if err != nil {
		return false
	}
	return got.Equals(id)
}
