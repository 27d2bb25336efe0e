// Package styles contains Lip Gloss style definitions shared across the
// UI components.
package styles

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	PrimaryColor   = lipgloss.Color("#25D366")
	AccentColor    = lipgloss.Color("#34B7F1")
	MutedColor     = lipgloss.Color("240")
	FaintColor     = lipgloss.Color("238")
	ErrorColor     = lipgloss.Color("#FF5F5F")
	WarnColor      = lipgloss.Color("#FFAF00")
	BadgeColor     = lipgloss.Color("#25D366")
	SelectionColor = lipgloss.Color("237")
)

// Toast border colors.
var (
	ToastBorderSuccessColor = PrimaryColor
	ToastBorderErrorColor   = ErrorColor
	ToastBorderInfoColor    = AccentColor
	ToastBorderWarnColor    = WarnColor
)

// Chat list row styles.
var (
	RowStyle         = lipgloss.NewStyle()
	RowSelectedStyle = lipgloss.NewStyle().Background(SelectionColor).Bold(true)
	RowNameStyle     = lipgloss.NewStyle().Bold(true)
	RowTimeStyle     = lipgloss.NewStyle().Foreground(MutedColor)
	RowBadgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("232")).Background(BadgeColor).Padding(0, 1)
	RowStageStyle    = lipgloss.NewStyle().Foreground(AccentColor)
	RowGhostStyle    = lipgloss.NewStyle().Foreground(FaintColor).Italic(true)
	PinMarkerStyle   = lipgloss.NewStyle().Foreground(WarnColor)
)

// Filter bar styles.
var (
	TabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(MutedColor)
	TabActiveStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(PrimaryColor).Bold(true).Underline(true)
	TabCountStyle  = lipgloss.NewStyle().Foreground(FaintColor)
)

// Status bar styles.
var (
	StatusBarStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	StatusErrStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	StatusStaleStyle = lipgloss.NewStyle().Foreground(WarnColor)
)
