// Package render turns conversation and knowledge base state into terminal
// text. It only reads state; nothing here talks to the backend.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/internal/upload"
)

const excerptLimit = 160

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#818CF8"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A78BFA"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#94A3B8"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#818CF8"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FACC15"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
)

type Renderer struct {
	width    int
	markdown *glamour.TermRenderer
}

// New builds a renderer wrapping at width columns. If glamour cannot be
// set up, markdown is printed as plain text.
func New(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r := &Renderer{width: width}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.markdown = md
	}
	return r
}

func (r *Renderer) Markdown(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if r.markdown == nil {
		return content + "\n"
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func (r *Renderer) Message(w io.Writer, msg models.ChatMessage) {
	switch msg.Role {
	case models.RoleUser:
		fmt.Fprintln(w, userStyle.Render("You"))
		fmt.Fprintln(w, msg.Content)
	default:
		fmt.Fprintln(w, assistantStyle.Render("Assistant"))
		fmt.Fprint(w, r.Markdown(msg.Content))
	}

	if len(msg.Sources) > 0 {
		fmt.Fprintln(w, headingStyle.Render("SOURCES"))
		for _, s := range msg.Sources {
			fmt.Fprintln(w, Citation(s))
		}
	}
	fmt.Fprintln(w)
}

// Citation is one source line: label, match percentage, then an excerpt.
func Citation(s models.SourceCitation) string {
	head := fmt.Sprintf("  • %s  %s", s.Label(), dimStyle.Render(fmt.Sprintf("%d%% Match", s.MatchPercent())))
	excerpt := Excerpt(s.Content, excerptLimit)
	if excerpt == "" {
		return head
	}
	return head + "\n    " + dimStyle.Render(excerpt)
}

// Excerpt flattens whitespace and cuts text to at most limit runes.
func Excerpt(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if limit <= 0 || len(runes) <= limit {
		return flat
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func FileRow(f models.UploadedFile) string {
	date := "-"
	if !f.CreatedAt.IsZero() {
		date = f.CreatedAt.Local().Format("2006-01-02")
	}
	return fmt.Sprintf("%-36s  %-40s  %10s  %s  %s",
		f.ID, f.Filename, f.SizeKB(), date, StatusBadge(f.Status))
}

func StatusBadge(s models.FileStatus) string {
	switch s {
	case models.FileStatusCompleted:
		return successStyle.Render(string(s))
	case models.FileStatusProcessing:
		return activeStyle.Render(string(s))
	case models.FileStatusPending:
		return pendingStyle.Render(string(s))
	default:
		return dimStyle.Render(string(s))
	}
}

func Files(w io.Writer, files []models.UploadedFile) {
	if len(files) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No documents in the knowledge base yet."))
		return
	}
	for _, f := range files {
		fmt.Fprintln(w, FileRow(f))
	}
}

func UploadStatus(st upload.Status) string {
	switch st.State {
	case models.UploadUploading:
		return activeStyle.Render("Uploading " + st.Filename + "…")
	case models.UploadSuccess:
		return successStyle.Render("Upload complete: " + st.Filename + " is queued for ingestion.")
	case models.UploadError:
		return errorStyle.Render("Upload failed.")
	default:
		return dimStyle.Render("Ready for upload (PDF, Markdown, Text).")
	}
}

func Strategies(w io.Writer, selected strategy.ID) {
	for _, s := range strategy.Catalog() {
		marker := "  "
		if s.ID == selected {
			marker = activeStyle.Render("▸ ")
		}
		fmt.Fprintf(w, "%s%-24s %-20s %s\n", marker, s.ID, s.Label, dimStyle.Render(s.Description))
	}
}

func Error(msg string) string {
	return errorStyle.Render(msg)
}

func Dim(msg string) string {
	return dimStyle.Render(msg)
}
