// Package ui draws the settings panel, HUD and key legend on top of the
// trail view. Panels read from and write to the simulation's parameter
// store; they never touch device state.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// FieldRange defines the value range of a slider or bar.
type FieldRange struct {
	Min float32
	Max float32
}

// DefaultRange returns a [0, 1] range.
func DefaultRange() FieldRange {
	return FieldRange{Min: 0, Max: 1}
}

// Clamp limits v to the range.
func (fr FieldRange) Clamp(v float32) float32 {
	if v < fr.Min {
		return fr.Min
	}
	if v > fr.Max {
		return fr.Max
	}
	return v
}

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	PendingColor   rl.Color
	BarBg          rl.Color
	BarFill        rl.Color
	Padding        int32
	LineHeight     int32
	RowHeight      int32 // slider rows
	LabelWidth     int32
	BarHeight      int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 20, G: 25, B: 30, A: 230},
		PanelBorder:    rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:  rl.Yellow,
		LabelColor:     rl.LightGray,
		ValueColor:     rl.LightGray,
		PendingColor:   rl.Orange,
		BarBg:          rl.Color{R: 40, G: 40, B: 40, A: 255},
		BarFill:        rl.Color{R: 100, G: 150, B: 200, A: 255},
		Padding:        10,
		LineHeight:     16,
		RowHeight:      22,
		LabelWidth:     96,
		BarHeight:      12,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}
