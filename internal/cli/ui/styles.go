package ui

import "github.com/charmbracelet/lipgloss"

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("30")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("23")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("23")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSuccess    = lipgloss.Color("40")
	ColorStatusFailed     = lipgloss.Color("196")
	ColorStatusSkipped    = lipgloss.Color("214")
	ColorStatusCached     = lipgloss.Color("39")
	ColorStatusPending    = lipgloss.Color("244")
	ColorStatusProcessing = lipgloss.Color("44")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSuccess    = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed     = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleSkipped    = lipgloss.NewStyle().Foreground(ColorStatusSkipped)
	StatusStyleCached     = lipgloss.NewStyle().Foreground(ColorStatusCached)
	StatusStylePending    = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleProcessing = lipgloss.NewStyle().Foreground(ColorStatusProcessing)
)
