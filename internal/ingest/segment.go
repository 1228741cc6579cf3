package ingest

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// UnnamedSection is the heading assigned to text that appears before
// the first detected heading on a page.
const UnnamedSection = "unnamed section"

// DefaultHeadingRuleName identifies the built-in heading heuristic in
// manifests, so a rule change invalidates prior runs.
const DefaultHeadingRuleName = "default-v1"

// Segment is one heading-scoped paragraph of a page.
type Segment struct {
	Heading string
	Text    string
}

// HeadingFunc decides whether a single cleaned line starts a new
// section. It is a pure predicate so locale-specific heuristics can be
// swapped without touching the segmenter.
type HeadingFunc func(line string) bool

var (
	// "1) ...", "2.3 ...", "1.2.4) ..."
	numberedSection = regexp.MustCompile(`^\d+(\.\d+)*[.)]\s+\S`)

	// Chapter/part markers, including the CJK variants annual reports
	// from the CNInfo corpus use.
	chapterMarker = regexp.MustCompile(`(?i)^(第\s*[0-9０-９一二三四五六七八九十百千]+\s*[章节編编篇部]|chapter\s+\d+|part\s+[ivxlcdm\d]+|section\s+\d+)`)
)

// sentence-ending punctuation that disqualifies a line as a heading
const trailingPunct = ".!?;:。！？；：…"

// DefaultHeadingRule matches numbered section prefixes, chapter/part
// markers, or short fully upper-cased lines (≤ 40 chars, ≤ 10 words,
// no trailing sentence punctuation).
func DefaultHeadingRule(line string) bool {
	if line == "" {
		return false
	}
	if numberedSection.MatchString(line) {
		return true
	}
	if chapterMarker.MatchString(line) {
		return true
	}
	if utf8.RuneCountInString(line) > 40 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(trailingPunct, last) {
		return false
	}
	if len(strings.Fields(line)) > 10 {
		return false
	}
	hasUpper := strings.IndexFunc(line, unicode.IsUpper) >= 0
	return hasUpper && line == strings.ToUpper(line)
}

var (
	nbsp        = strings.NewReplacer(" ", " ", "　", " ", "\r\n", "\n", "\r", "\n")
	manyNewline = regexp.MustCompile(`\n{3,}`)
	anySpace    = regexp.MustCompile(`\s+`)
)

// NormalizePage prepares raw extracted text for line walking:
// non-breaking spaces become regular spaces and runs of three or more
// newlines collapse to two.
func NormalizePage(text string) string {
	text = nbsp.Replace(text)
	return manyNewline.ReplaceAllString(text, "\n\n")
}

// cleanParagraph collapses internal whitespace and trims the result.
func cleanParagraph(lines []string) string {
	joined := strings.Join(lines, " ")
	return strings.TrimSpace(anySpace.ReplaceAllString(joined, " "))
}

// SegmentPage splits one page of raw text into ordered
// (heading, paragraph) segments. Blank lines flush the buffered
// paragraph under the current heading; lines matching isHeading start
// a new section; everything else accumulates into the paragraph
// buffer. The end of the page flushes whatever remains.
func SegmentPage(page string, isHeading HeadingFunc) []Segment {
	if isHeading == nil {
		isHeading = DefaultHeadingRule
	}

	var (
		segments []Segment
		buf      []string
		heading  = UnnamedSection
	)

	flush := func() {
		text := cleanParagraph(buf)
		if text != "" {
			segments = append(segments, Segment{Heading: heading, Text: text})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(NormalizePage(page), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case isHeading(line):
			flush()
			heading = line
		default:
			buf = append(buf, line)
		}
	}
	flush()

	return segments
}
