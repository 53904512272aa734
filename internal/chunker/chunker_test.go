package chunker

import (
	"strings"
	"testing"
)

func TestSplitParagraphs(t *testing.T) {
	content := "First paragraph about travel.\n\nSecond paragraph about meals.\n\nThird paragraph about hotels."
	drafts := Split(content)

	if len(drafts) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(drafts))
	}
	for i, d := range drafts {
		if d.Type != TypeText {
			t.Errorf("draft %d: expected text type, got %s", i, d.Type)
		}
	}
	if drafts[0].Content != "First paragraph about travel." {
		t.Errorf("unexpected first content: %q", drafts[0].Content)
	}
}

func TestSplitEmptyContent(t *testing.T) {
	for _, content := range []string{"", "   \n\n\t\n"} {
		if drafts := Split(content); len(drafts) != 0 {
			t.Fatalf("Split(%q) = %d drafts, want 0", content, len(drafts))
		}
	}
}

func TestSplitPreservesTable(t *testing.T) {
	content := "## Expense Limits\n\n| Category | Limit |\n|---|---|\n| Meals | $70/day |\n| Hotel | $220/night |\n\nReceipts are required above $25."
	drafts := Split(content)

	if len(drafts) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(drafts))
	}
	table := drafts[1]
	if table.Type != TypeTable {
		t.Fatalf("expected table type, got %s", table.Type)
	}
	// Table rows stay in one chunk
	if !strings.Contains(table.Content, "Meals | $70/day") || !strings.Contains(table.Content, "Hotel | $220/night") {
		t.Errorf("table rows were split: %q", table.Content)
	}
	if drafts[2].Type != TypeText {
		t.Errorf("trailing paragraph misclassified as %s", drafts[2].Type)
	}
}

func TestSplitSectionTitles(t *testing.T) {
	content := "# Travel Policy\n\nFlights must be economy class.\n\n## Meals\n\nMeals are capped per day."
	drafts := Split(content)

	if len(drafts) != 4 {
		t.Fatalf("expected 4 drafts, got %d", len(drafts))
	}
	if drafts[1].SectionTitle != "Travel Policy" {
		t.Errorf("draft 1 section = %q, want Travel Policy", drafts[1].SectionTitle)
	}
	if drafts[3].SectionTitle != "Meals" {
		t.Errorf("draft 3 section = %q, want Meals", drafts[3].SectionTitle)
	}
}

func TestSplitPagesMonotonic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("Paragraph number ")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString(".\n\n")
	}
	drafts := Split(b.String())

	if len(drafts) != 10 {
		t.Fatalf("expected 10 drafts, got %d", len(drafts))
	}
	prev := 0
	for i, d := range drafts {
		if d.PageStart > d.PageEnd {
			t.Errorf("draft %d: pageStart %d > pageEnd %d", i, d.PageStart, d.PageEnd)
		}
		if d.PageStart < prev {
			t.Errorf("draft %d: page %d decreased below %d", i, d.PageStart, prev)
		}
		prev = d.PageStart
	}
	if drafts[0].PageStart != 1 {
		t.Errorf("first page = %d, want 1", drafts[0].PageStart)
	}
	if drafts[9].PageStart != 4 {
		t.Errorf("tenth block page = %d, want 4", drafts[9].PageStart)
	}
}

func TestSplitWindowsLineEndings(t *testing.T) {
	drafts := Split("One.\r\n\r\nTwo.")
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[1].Content != "Two." {
		t.Errorf("unexpected content: %q", drafts[1].Content)
	}
}
