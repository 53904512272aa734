package chunker

// #region imports
import (
	"regexp"
	"strings"
)

// #endregion

// #region types

// ChunkType distinguishes prose blocks from preserved table blocks.
type ChunkType string

const (
	TypeText  ChunkType = "text"
	TypeTable ChunkType = "table"
)

// Draft is a chunk before the index assigns its identity. IDs, the
// owning doc, and the chunk ordinal are set at commit time.
type Draft struct {
	Type         ChunkType
	PageStart    int
	PageEnd      int
	SectionTitle string
	Content      string
}

// #endregion types

// #region config

// blocksPerPage drives the heuristic page assignment. Raw markdown has
// no real pagination, so pages are derived from block ordering and are
// non-decreasing across the chunk sequence.
const blocksPerPage = 3

var (
	headingPattern  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	tableSepPattern = regexp.MustCompile(`^\|[\s\-:|]+\|$`)
)

// #endregion config

// #region split

// Split segments raw text/markdown into ordered chunk drafts. Blocks
// are delimited by blank lines; markdown tables are kept whole as a
// single table-typed chunk, never split across rows. Empty content
// yields zero drafts.
func Split(content string) []Draft {
	blocks := splitBlocks(content)

	var drafts []Draft
	section := ""
	for _, b := range blocks {
		lines := strings.Split(b, "\n")
		if m := headingPattern.FindStringSubmatch(lines[0]); m != nil {
			section = strings.TrimSpace(m[2])
		}

		page := len(drafts)/blocksPerPage + 1
		d := Draft{
			Type:      TypeText,
			PageStart: page,
			PageEnd:   page,
			Content:   b,
		}
		if section != "" {
			d.SectionTitle = section
		}
		if isTableBlock(lines) {
			d.Type = TypeTable
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// #endregion split

// #region blocks

// splitBlocks breaks content into blank-line-delimited blocks,
// normalizing line endings and dropping whitespace-only blocks.
func splitBlocks(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	flush()
	return blocks
}

// isTableBlock detects a markdown table: a pipe-delimited header row
// followed by a separator row like |---|---|.
func isTableBlock(lines []string) bool {
	if len(lines) < 2 {
		return false
	}
	first := strings.TrimSpace(lines[0])
	second := strings.TrimSpace(lines[1])
	if !strings.HasPrefix(first, "|") || !strings.HasSuffix(first, "|") {
		return false
	}
	return tableSepPattern.MatchString(second)
}

// #endregion blocks
