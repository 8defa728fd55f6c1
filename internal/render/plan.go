// Package render formats stage plans for terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/oriumgames/pipeline"
)

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	stageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	exclusiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	plainStyle     = lipgloss.NewStyle()
)

// Renderer turns a pipeline into text. The zero value renders without styling.
type Renderer struct {
	title     lipgloss.Style
	stage     lipgloss.Style
	system    lipgloss.Style
	exclusive lipgloss.Style
	detail    lipgloss.Style
}

// New returns a renderer; color enables lipgloss styling.
func New(color bool) *Renderer {
	if !color {
		return &Renderer{
			title:     plainStyle,
			stage:     plainStyle,
			system:    plainStyle,
			exclusive: plainStyle,
			detail:    plainStyle,
		}
	}
	return &Renderer{
		title:     titleStyle,
		stage:     stageStyle,
		system:    systemStyle,
		exclusive: exclusiveStyle,
		detail:    detailStyle,
	}
}

// Plan renders a header followed by one line per stage, in the same
// "stage N: A, B" form as Pipeline.Plan. Systems that must run alone are
// drawn with the exclusive style.
func Plan[B any](r *Renderer, name string, p *pipeline.Pipeline[B]) string {
	lines := make([]string, 0, p.Len()+2)

	header := "pipeline"
	if name != "" {
		header += " " + name
	}
	lines = append(lines, r.title.Render(header)+" "+r.detail.Render(p.ID().String()))

	systems := 0
	for _, st := range p.Stages() {
		ids := st.Systems()
		systems += len(ids)
		names := make([]string, len(ids))
		for i, id := range ids {
			style := r.system
			if spec, ok := p.Spec(id); ok && !spec.AllowParallel() {
				style = r.exclusive
			}
			names[i] = style.Render(string(id))
		}
		lines = append(lines, r.stage.Render(fmt.Sprintf("stage %d:", st.Index()))+" "+strings.Join(names, ", "))
	}

	lines = append(lines, r.detail.Render(fmt.Sprintf("%d stages, %d systems", p.Len(), systems)))
	return strings.Join(lines, "\n")
}
