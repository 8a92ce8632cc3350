package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/dispatch/internal/storage"
)

var logoLines = []string{
	"█▀▄ █ █▀ █▀█ ▄▀█ ▀█▀ █▀▀ █ █",
	"█▄▀ █ ▄█ █▀▀ █▀█  █  █▄▄ █▀█",
}

var bannerColors = []lipgloss.Color{
	lipgloss.Color("#FF6B6B"),
	lipgloss.Color("#4ECDC4"),
}

var (
	mutedColor   = lipgloss.Color("#94A3B8")
	featuredMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D")).Render("★")
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EAEAEA")).MarginTop(1)
)

func showBanner(w io.Writer) {
	lines := make([]string, 0, len(logoLines)+2)
	for i, line := range logoLines {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(bannerColors[i%len(bannerColors)]).
			Bold(true).
			Render(line))
	}
	lines = append(lines, "", mutedStyle.Render("headlines, cached"))

	border := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("#4ECDC4")).
		Padding(0, 2)

	fmt.Fprintln(w, border.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)))
}

// renderList writes one line per article: tag in its accent color, id,
// title and source.
func renderList(w io.Writer, heading string, articles []storage.Article) {
	if heading != "" {
		fmt.Fprintln(w, headerStyle.Render(heading))
	}
	if len(articles) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  (none)"))
		return
	}
	for _, a := range articles {
		fmt.Fprintln(w, articleLine(a))
	}
}

func articleLine(a storage.Article) string {
	tag := lipgloss.NewStyle().Bold(true)
	if a.AccentColor != "" {
		tag = tag.Foreground(lipgloss.Color(a.AccentColor))
	}
	mark := " "
	if a.IsFeatured {
		mark = featuredMark
	}
	line := fmt.Sprintf("%s %s %s %s", mark, tag.Render(fmt.Sprintf("%-13s", a.Tag)), mutedStyle.Render(fmt.Sprint(a.ID)), a.Title)
	if a.Source != "" {
		line += mutedStyle.Render(" · " + a.Source)
	}
	return line
}

// articleMarkdown lays an article out as markdown for glamour.
func articleMarkdown(a *storage.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)

	var meta []string
	for _, s := range []string{a.Tag, a.Source, a.PublishedAt} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if a.Summary != "" && (len(a.Content) == 0 || a.Content[0] != a.Summary) {
		fmt.Fprintf(&b, "> %s\n\n", a.Summary)
	}
	for _, p := range a.Content {
		fmt.Fprintf(&b, "%s\n\n", p)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "[Read the full article](%s)\n", a.URL)
	}
	return b.String()
}

func renderArticle(w io.Writer, a *storage.Article, width int) error {
	if width < 40 {
		width = 40
	}
	if width > 120 {
		width = 120
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(articleMarkdown(a))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
