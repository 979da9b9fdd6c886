package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/nfrund/livechat/internal/view"
	"github.com/rivo/tview"
)

// formatRows renders message rows as tview colour-tagged text. Own rows are
// right-aligned to width; a non-positive width leaves them unpadded.
func formatRows(screen view.Screen, width int) string {
	if screen.Empty {
		return "[grey]" + view.EmptyHint + "[-]"
	}
	if screen.SignedOut && len(screen.Rows) == 0 {
		return "[grey]" + view.SignedOutHint + " Type /signin.[-]"
	}

	var b strings.Builder
	for i, row := range screen.Rows {
		if i > 0 {
			b.WriteString("\n")
		}
		writeLine(&b, width, row.Align, metaLine(row), metaColor(row))
		for _, line := range strings.Split(row.Text, "\n") {
			writeLine(&b, width, row.Align, line, textColor(row))
		}
	}
	return b.String()
}

func metaLine(row view.Row) string {
	if row.Time == "" {
		return row.Label
	}
	return row.Label + " " + row.Time
}

func metaColor(row view.Row) string {
	switch {
	case row.Pending:
		return "[grey::b]"
	case row.Own:
		return "[blue::b]"
	default:
		return "[green::b]"
	}
}

func textColor(row view.Row) string {
	if row.Pending {
		return "[grey]"
	}
	return "[white]"
}

func writeLine(b *strings.Builder, width int, align view.Align, plain, color string) {
	if align == view.AlignRight {
		if pad := width - runewidth.StringWidth(plain); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	b.WriteString(color)
	b.WriteString(tview.Escape(plain))
	b.WriteString("[-:-:-]\n")
}
