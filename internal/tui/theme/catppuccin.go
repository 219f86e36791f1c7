package theme

import "github.com/charmbracelet/lipgloss"

// Mocha returns the Catppuccin Mocha palette (dark).
func Mocha() *Theme {
	return &Theme{
		Name:   "Catppuccin Mocha",
		IsDark: true,

		Mauve:  lipgloss.Color("#cba6f7"),
		Blue:   lipgloss.Color("#89b4fa"),
		Green:  lipgloss.Color("#a6e3a1"),
		Teal:   lipgloss.Color("#94e2d5"),
		Yellow: lipgloss.Color("#f9e2af"),
		Peach:  lipgloss.Color("#fab387"),
		Red:    lipgloss.Color("#f38ba8"),
		Pink:   lipgloss.Color("#f5c2e7"),

		Text:    lipgloss.Color("#cdd6f4"),
		Subtext: lipgloss.Color("#a6adc8"),

		Surface:  lipgloss.Color("#313244"),
		Base:     lipgloss.Color("#1e1e2e"),
		Mantle:   lipgloss.Color("#181825"),
		Overlay0: lipgloss.Color("#6c7086"),
	}
}

// Latte returns the Catppuccin Latte palette (light).
func Latte() *Theme {
	return &Theme{
		Name:   "Catppuccin Latte",
		IsDark: false,

		Mauve:  lipgloss.Color("#8839ef"),
		Blue:   lipgloss.Color("#1e66f5"),
		Green:  lipgloss.Color("#40a02b"),
		Teal:   lipgloss.Color("#179299"),
		Yellow: lipgloss.Color("#df8e1d"),
		Peach:  lipgloss.Color("#fe640b"),
		Red:    lipgloss.Color("#d20f39"),
		Pink:   lipgloss.Color("#ea76cb"),

		Text:    lipgloss.Color("#4c4f69"),
		Subtext: lipgloss.Color("#6c6f85"),

		Surface:  lipgloss.Color("#ccd0da"),
		Base:     lipgloss.Color("#eff1f5"),
		Mantle:   lipgloss.Color("#e6e9ef"),
		Overlay0: lipgloss.Color("#9ca0b0"),
	}
}
