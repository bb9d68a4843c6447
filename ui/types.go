// Package ui draws the tracer's on-screen controls and readouts.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	ActiveColor    rl.Color
	BarBg          rl.Color
	BarFill        rl.Color
	Padding        int32
	LineHeight     int32
	LabelWidth     int32
	BarHeight      int32
	ButtonHeight   int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 12, G: 14, B: 20, A: 220},
		PanelBorder:    rl.Color{R: 50, G: 60, B: 75, A: 255},
		SectionHeader:  rl.Color{R: 140, G: 190, B: 255, A: 255},
		LabelColor:     rl.LightGray,
		ValueColor:     rl.RayWhite,
		ActiveColor:    rl.Color{R: 100, G: 200, B: 140, A: 255},
		BarBg:          rl.Color{R: 40, G: 40, B: 48, A: 255},
		BarFill:        rl.Color{R: 100, G: 150, B: 220, A: 255},
		Padding:        10,
		LineHeight:     16,
		LabelWidth:     80,
		BarHeight:      10,
		ButtonHeight:   24,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}
