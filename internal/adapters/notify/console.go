// Package notify renders surgery engine notifications for people.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
)

// Palette (Catppuccin Mocha inspired).
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

// Namer turns identities into display names.
type Namer interface {
	Name(id surgery.EntityID) string
}

type idNamer struct{}

func (idNamer) Name(id surgery.EntityID) string { return id.String() }

// Styles holds one style per notification tone.
type Styles struct {
	Lifecycle lipgloss.Style
	Success   lipgloss.Style
	Pending   lipgloss.Style
	Failure   lipgloss.Style
	Muted     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Lifecycle: r.NewStyle().Bold(true).Foreground(colorPrimary),
		Success:   r.NewStyle().Foreground(colorSuccess),
		Pending:   r.NewStyle().Foreground(colorWarning),
		Failure:   r.NewStyle().Foreground(colorError),
		Muted:     r.NewStyle().Foreground(colorMuted),
	}
}

// Console writes one styled line per notification. Colour is decided by the
// renderer from the writer, so buffers and pipes get plain text.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	names  Namer
	styles Styles
}

// NewConsole creates a console sink. A nil namer prints raw identifiers.
func NewConsole(w io.Writer, names Namer) *Console {
	if names == nil {
		names = idNamer{}
	}
	return &Console{
		out:    w,
		names:  names,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Notify implements surgery.Notifier.
func (c *Console) Notify(n surgery.Notification) {
	line := c.Render(n)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

// Render formats a notification without writing it.
func (c *Console) Render(n surgery.Notification) string {
	actor := c.names.Name(n.Actor)
	target := c.names.Name(n.Target)
	if n.SelfTarget {
		target += " (self)"
	}

	switch n.Kind {
	case surgery.KindOperationStarted:
		return c.styles.Lifecycle.Render(fmt.Sprintf("%s begins %s on %s", actor, n.Operation, target))
	case surgery.KindOperationCompleted:
		return c.styles.Lifecycle.Render(fmt.Sprintf("%s completes %s on %s", actor, n.Operation, target))
	case surgery.KindOperationStopped:
		return c.styles.Muted.Render(fmt.Sprintf("%s stops operating on %s", actor, target))
	case surgery.KindStepDelayBegin:
		return c.styles.Pending.Render(fmt.Sprintf("%s starts %s on %s with the %s", actor, n.Step, target, n.Tool))
	case surgery.KindStepSucceeded:
		return c.styles.Success.Render(fmt.Sprintf("%s finishes %s on %s", actor, n.Step, target))
	case surgery.KindStepFailed:
		return c.styles.Failure.Render(fmt.Sprintf("%s cannot use the %s on %s now", actor, n.Tool, target))
	case surgery.KindStepInterrupted:
		return c.styles.Failure.Render(fmt.Sprintf("%s is interrupted during %s (%s)", actor, n.Step, n.Reason))
	case surgery.KindSelectionRequested:
		return c.styles.Pending.Render(fmt.Sprintf("%s must choose an organ in %s", actor, target))
	case surgery.KindSelectionMade:
		return c.styles.Success.Render(fmt.Sprintf("%s selects %s", actor, c.names.Name(n.Selection)))
	default:
		return ""
	}
}

var _ surgery.Notifier = (*Console)(nil)
