package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeadingRule(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		heading bool
	}{
		{"numbered section", "1.2) Business overview", true},
		{"single number", "3. Risk factors", true},
		{"chapter marker", "Chapter 4 Governance", true},
		{"part marker roman", "Part IV", true},
		{"cjk chapter", "第三章 经营情况讨论与分析", true},
		{"cjk section", "第1节 释义", true},
		{"upper short line", "FINANCIAL HIGHLIGHTS", true},
		{"upper with sentence punct", "FINANCIAL HIGHLIGHTS.", false},
		{"mixed case line", "Financial highlights", false},
		{"long upper line", "THIS LINE IS WAY TOO LONG TO QUALIFY AS A SECTION HEADING IN ANY REPORT", false},
		{"plain sentence", "Revenue grew by 12% year over year.", false},
		{"empty", "", false},
		{"number without text", "2024", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.heading, DefaultHeadingRule(tt.line))
		})
	}
}

func TestSegmentPage_HeadingsAndParagraphs(t *testing.T) {
	page := "Some preamble text\n" +
		"continued on a second line\n" +
		"\n" +
		"1) RESULTS\n" +
		"Revenue was strong.\n" +
		"\n" +
		"Margins improved.\n"

	segs := SegmentPage(page, DefaultHeadingRule)
	require.Len(t, segs, 3)

	assert.Equal(t, UnnamedSection, segs[0].Heading)
	assert.Equal(t, "Some preamble text continued on a second line", segs[0].Text)

	assert.Equal(t, "1) RESULTS", segs[1].Heading)
	assert.Equal(t, "Revenue was strong.", segs[1].Text)

	assert.Equal(t, "1) RESULTS", segs[2].Heading)
	assert.Equal(t, "Margins improved.", segs[2].Text)
}

func TestSegmentPage_HeadingFlushesBuffer(t *testing.T) {
	// no blank line before the heading; the buffered paragraph must
	// still be flushed under the previous heading
	page := "intro text\nOVERVIEW\nbody text"

	segs := SegmentPage(page, DefaultHeadingRule)
	require.Len(t, segs, 2)
	assert.Equal(t, UnnamedSection, segs[0].Heading)
	assert.Equal(t, "intro text", segs[0].Text)
	assert.Equal(t, "OVERVIEW", segs[1].Heading)
	assert.Equal(t, "body text", segs[1].Text)
}

func TestSegmentPage_CleansWhitespace(t *testing.T) {
	page := "some text   with\t\tmessy\n\n\n\n\nspacing"

	segs := SegmentPage(page, DefaultHeadingRule)
	require.Len(t, segs, 2)
	assert.Equal(t, "some text with messy", segs[0].Text)
	assert.Equal(t, "spacing", segs[1].Text)
}

func TestSegmentPage_Empty(t *testing.T) {
	assert.Empty(t, SegmentPage("", DefaultHeadingRule))
	assert.Empty(t, SegmentPage("\n\n  \n", DefaultHeadingRule))
}

func TestSegmentPage_CustomRule(t *testing.T) {
	// swap in a strategy that treats any line starting with "## " as
	// a heading; control flow must not change
	rule := func(line string) bool { return len(line) > 3 && line[:3] == "## " }

	segs := SegmentPage("## Intro\nhello world", rule)
	require.Len(t, segs, 1)
	assert.Equal(t, "## Intro", segs[0].Heading)
	assert.Equal(t, "hello world", segs[0].Text)
}

func TestNormalizePage_CollapsesNewlines(t *testing.T) {
	assert.Equal(t, "a\n\nb", NormalizePage("a\n\n\n\nb"))
	assert.Equal(t, "a\n\nb", NormalizePage("a\n\nb"))
}
