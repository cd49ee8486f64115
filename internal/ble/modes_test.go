package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSizes(t *testing.T) {
	assert.Len(t, RGBModes.Entries, 29)
	assert.Equal(t, 128, RGBModes.Min)
	assert.Equal(t, 156, RGBModes.Max)

	assert.Len(t, DynamicModes.Entries, 4)
	assert.Len(t, ColorTempModes.Entries, 11)
	assert.Len(t, DimModes.Entries, 11)
	assert.Len(t, RGBSorts.Entries, 6)
	assert.Len(t, DIYStyles.Entries, 4)

	assert.Len(t, TimerModels.Entries, 22)
	assert.Equal(t, 0, TimerModels.Min)
	assert.Equal(t, 21, TimerModels.Max)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		table Table
		name  string
		want  int
	}{
		{RGBModes, "Static red", 128},
		{RGBModes, "Tricolor jump", 135},
		{RGBModes, "Seven-color flash", 149},
		{RGBModes, "White flash", 156},
		{DynamicModes, "Strobe", 131},
		{ColorTempModes, "Warm 50% Cool 50%", 133},
		{TimerModels, "Seven-color gradient", 10},
		{TimerModels, "Warm 0% Cool 100%", 11},
		{TimerModels, "Warm 100% Cool 0%", 21},
		{DimModes, "100%", 138},
		{RGBSorts, "GRB", 3},
		{RGBSorts, "bgr", 6},
		{DIYStyles, "Gradient", 3},
	}

	for _, tt := range tests {
		t.Run(tt.table.Kind+"/"+tt.name, func(t *testing.T) {
			got, err := tt.table.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := RGBModes.Lookup("Disco")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownName)
	assert.Contains(t, err.Error(), "rgb mode")
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "Strobe", DynamicModes.NameOf(131))
	assert.Equal(t, "", DynamicModes.NameOf(1))
	assert.Equal(t, "Static red", RGBModes.Names()[0])
}

func TestCompatibleName(t *testing.T) {
	assert.True(t, CompatibleName("LEDBLE-0237"))
	assert.True(t, CompatibleName("ledble"))
	assert.False(t, CompatibleName("ELK-BLEDOM"))
	assert.False(t, CompatibleName(""))
}
