package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// chunkIDContentLen is how many leading characters of a chunk's
// content participate in its identity. Together with the positional
// fields this disambiguates realistic inputs.
const chunkIDContentLen = 120

// hashID derives a stable 160-bit hex identifier from identity fields.
// Identical inputs always produce identical IDs, which is what makes
// re-upserting on rerun safe.
func hashID(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "||")))
	return hex.EncodeToString(sum[:])
}

// DocID addresses one source object at one content version. A new
// version yields a new DocID and forces full reprocessing.
func DocID(sourceKey, sourceVersion string) string {
	return hashID(sourceKey, sourceVersion)
}

// ChunkID addresses one chunk by document, page, heading, position and
// the first 120 characters of its content.
func ChunkID(docID string, page int, heading string, chunkIndex int, content string) string {
	runes := []rune(content)
	if len(runes) > chunkIDContentLen {
		content = string(runes[:chunkIDContentLen])
	}
	return hashID(docID, strconv.Itoa(page), heading, strconv.Itoa(chunkIndex), content)
}
