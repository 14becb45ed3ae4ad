package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
)

const passageWidth = 88

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	rankStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	citationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	passageStyle = lipgloss.NewStyle().
			Width(passageWidth).
			PaddingLeft(2).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("238"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)
)

// renderPassages writes ranked passages for a terminal.
func renderPassages(w io.Writer, category string, corpusVersion uint64, passages []pipeline.PassageSummary) error {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · corpus v%d", category, corpusVersion)))
	b.WriteString("\n\n")

	if len(passages) == 0 {
		b.WriteString(emptyStyle.Render("No passages found"))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, p := range passages {
		source := p.Citation
		if source == "" {
			source = p.ID
		}
		b.WriteString(rankStyle.Render(fmt.Sprintf("#%d", p.Rank)))
		b.WriteString(" ")
		b.WriteString(citationStyle.Render(source))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("distance %.4f", p.Distance)))
		if len(p.Tags) > 0 {
			b.WriteString("  ")
			b.WriteString(tagStyle.Render(strings.Join(p.Tags, ", ")))
		}
		b.WriteString("\n")
		b.WriteString(passageStyle.Render(strings.TrimSpace(p.Text)))
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
