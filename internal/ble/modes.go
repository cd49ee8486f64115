package ble

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownName is returned when a name is not present in a mode table.
var ErrUnknownName = errors.New("unknown name")

// NamedValue pairs a human readable name with the byte the device expects.
type NamedValue struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Table is an ordered name -> value catalog with a clamping range for raw values.
type Table struct {
	Kind    string
	Entries []NamedValue
	Min     int
	Max     int
}

// Lookup resolves name to its value. Exact matches win over case-insensitive ones.
func (t Table) Lookup(name string) (int, error) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e.Value, nil
		}
	}
	for _, e := range t.Entries {
		if strings.EqualFold(e.Name, name) {
			return e.Value, nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", t.Kind, name, ErrUnknownName)
}

// NameOf returns the name for value, or "" if the table has none.
func (t Table) NameOf(value int) string {
	for _, e := range t.Entries {
		if e.Value == value {
			return e.Name
		}
	}
	return ""
}

// Names lists the table's names in device order.
func (t Table) Names() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

// Clamp forces a raw value into the table's range.
func (t Table) Clamp(v int) byte {
	return clampByte(v, t.Min, t.Max)
}

func sequence(kind string, first int, names ...string) Table {
	entries := make([]NamedValue, len(names))
	for i, n := range names {
		entries[i] = NamedValue{Name: n, Value: first + i}
	}
	return Table{Kind: kind, Entries: entries, Min: first, Max: first + len(names) - 1}
}

var (
	rgbModeNames = []string{
		"Static red",
		"Static blue",
		"Static green",
		"Static cyan",
		"Static yellow",
		"Static purple",
		"Static white",
		"Tricolor jump",
		"Seven-color jump",
		"Tricolor gradient",
		"Seven-color gradient",
		"Red gradient",
		"Green gradient",
		"Blue gradient",
		"Yellow gradient",
		"Cyan gradient",
		"Purple gradient",
		"White gradient",
		"Red-Green gradient",
		"Red-Blue gradient",
		"Green-Blue gradient",
		"Seven-color flash",
		"Red flash",
		"Green flash",
		"Blue flash",
		"Yellow flash",
		"Cyan flash",
		"Purple flash",
		"White flash",
	}

	colorTempNames = []string{
		"Warm 0% Cool 100%",
		"Warm 10% Cool 90%",
		"Warm 20% Cool 80%",
		"Warm 30% Cool 70%",
		"Warm 40% Cool 60%",
		"Warm 50% Cool 50%",
		"Warm 60% Cool 40%",
		"Warm 70% Cool 30%",
		"Warm 80% Cool 20%",
		"Warm 90% Cool 10%",
		"Warm 100% Cool 0%",
	}
)

// Mode tables understood by the LEDBLE firmware.
var (
	// RGBModes are the preprogrammed animations selected with SetRGBMode.
	RGBModes = sequence("rgb mode", 128, rgbModeNames...)

	// DynamicModes are selected with SetDynamic.
	DynamicModes = sequence("dynamic mode", 128, "Breathe", "Gradient", "Jump", "Strobe")

	// ColorTempModes are selected with SetColorWarmModel.
	ColorTempModes = sequence("color temperature mode", 128, colorTempNames...)

	// TimerModels pick what the strip shows when an on-timer fires: the first
	// eleven RGB modes followed by the color temperature presets.
	TimerModels = sequence("timer model", 0, append(append([]string{}, rgbModeNames[:11]...), colorTempNames...)...)

	// DimModes are selected with SetDimModel.
	DimModes = sequence("dim mode", 128, "0%", "10%", "20%", "30%", "40%", "50%", "60%", "70%", "80%", "90%", "100%")

	// RGBSorts fix strips whose channels are wired in a different order.
	RGBSorts = sequence("rgb sort", 1, "RGB", "RBG", "GRB", "GBR", "BRG", "BGR")

	// DIYStyles control how an uploaded DIY sequence is played.
	DIYStyles = sequence("diy style", 0, "Jump", "Breathe", "Flash", "Gradient")
)
