package ingest

// SplitChunks bounds a paragraph to maxChars characters per chunk with
// overlap characters shared between consecutive chunks. Lengths are
// measured in runes so CJK text never splits mid code point. Text at
// or under the limit is returned unchanged as a single chunk; the
// final chunk always ends exactly at the end of the text.
func SplitChunks(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= maxChars {
		// progress must stay positive
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}
