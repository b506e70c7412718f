// Package status renders a handshake status report for terminals.
package status

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/k8s"
)

// IsInteractiveTTY reports whether stdout is a terminal.
func IsInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Render formats st. With styled set, lipgloss colors are applied.
func Render(st handshake.Status, styled bool) string {
	var b strings.Builder
	r := renderer{styled: styled}

	r.header(&b, st)
	r.store(&b, st)
	r.membership(&b, st)

	return b.String()
}

type renderer struct {
	styled bool
}

func (r renderer) style(s styleFunc) styleFunc {
	if !r.styled {
		return plain
	}
	return s
}

func (r renderer) header(b *strings.Builder, st handshake.Status) {
	b.WriteString(r.style(sf(titleStyle))(fmt.Sprintf("clusterjoin: %s", st.Cluster)))

	status := " "
	switch {
	case st.Complete():
		status += r.style(sf(readyStyle))("Complete")
	case st.Published():
		status += r.style(sf(warningStyle))("Waiting for nodes")
	default:
		status += r.style(sf(dimStyle))("Not published")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func (r renderer) store(b *strings.Builder, st handshake.Status) {
	r.section(b, "Join material")

	if st.RecordError != "" {
		fmt.Fprintf(b, "    %s %s\n", r.style(sf(failedStyle))(crossMark), r.style(sf(failedStyle))(st.RecordError))
	}
	r.row(b, "Endpoint", st.Endpoint)
	r.row(b, "Secret", st.SecretFingerprint)
	r.row(b, "Generation", st.Generation)
	if st.PublishedAt != nil {
		r.row(b, "Published", st.PublishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(b, "    %s %-12s %s\n", r.style(sf(dimStyle))(pending), "Layout", st.Layout)
}

func (r renderer) membership(b *strings.Builder, st handshake.Status) {
	r.section(b, "Membership")

	if st.MembershipError != "" {
		fmt.Fprintf(b, "    %s %s\n", r.style(sf(warningStyle))(warnMark), r.style(sf(warningStyle))(st.MembershipError))
		return
	}

	fmt.Fprintf(b, "    %s %d/%d ready\n", r.progressBar(st.Ready, st.Expected), st.Ready, st.Expected)
	for _, node := range st.Nodes {
		icon, style := checkMark, r.style(sf(readyStyle))
		if !k8s.DefaultReadyPolicy().IsReady(node.Status) {
			icon, style = crossMark, r.style(sf(failedStyle))
		}
		fmt.Fprintf(b, "    %s %-30s %s\n", style(icon), node.ID, style(node.Status))
	}
}

func (r renderer) section(b *strings.Builder, title string) {
	b.WriteString(r.style(sf(sectionStyle))("  " + title))
	b.WriteString("\n")
}

func (r renderer) row(b *strings.Builder, name, value string) {
	if value == "" {
		fmt.Fprintf(b, "    %s %-12s %s\n", r.style(sf(dimStyle))(pending), name, r.style(sf(dimStyle))("-"))
		return
	}
	fmt.Fprintf(b, "    %s %-12s %s\n", r.style(sf(readyStyle))(checkMark), name, value)
}

func (r renderer) progressBar(ready, expected int) string {
	const width = 20
	if expected <= 0 {
		return ""
	}
	filled := width * ready / expected
	if filled > width {
		filled = width
	}
	return r.style(sf(progressBarFull))(strings.Repeat("█", filled)) +
		r.style(sf(progressBarEmpty))(strings.Repeat("░", width-filled))
}
