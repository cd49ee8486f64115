package scheduler

import (
	"path/filepath"
	"testing"

	"ledble-controller/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		typ     core.CommandType
		payload map[string]interface{}
	}{
		{"power on", core.CmdSetPower, map[string]interface{}{"isOn": true}},
		{"power off", core.CmdSetPower, map[string]interface{}{"isOn": false}},
		{"color 255 10 0", core.CmdSetColor, map[string]interface{}{"r": 255, "g": 10, "b": 0}},
		{"brightness 40", core.CmdSetBrightness, map[string]interface{}{"value": 40}},
		{"speed 90", core.CmdSetSpeed, map[string]interface{}{"value": 90}},
		{"mode Seven-color jump", core.CmdSetRgbMode, map[string]interface{}{"mode": "Seven-color jump"}},
		{"mode 140", core.CmdSetRgbMode, map[string]interface{}{"mode": "140"}},
		{"pattern sunrise.lua", core.CmdRunPattern, map[string]interface{}{"name": "sunrise.lua"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, cmd.Type)
			assert.Equal(t, tt.payload, cmd.Payload)
		})
	}

	stop, err := ParseCommand("stop")
	require.NoError(t, err)
	assert.Equal(t, core.CmdStopPattern, stop.Type)
}

func TestParseCommandErrors(t *testing.T) {
	for _, in := range []string{"", "power", "power maybe", "color 1 2", "color a b c", "brightness", "mode", "pattern", "dance"} {
		_, err := ParseCommand(in)
		assert.ErrorIs(t, err, ErrBadCommand, in)
	}
}

func TestAddRemovePersist(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	cmds := make(core.CommandChannel, 1)

	s := NewScheduler(cmds, file)
	id, err := s.Add("0 7 * * *", "power on")
	require.NoError(t, err)
	_, err = s.Add("30 22 * * *", "power off")
	require.NoError(t, err)

	_, err = s.Add("not a spec", "power on")
	assert.Error(t, err)
	_, err = s.Add("* * * * *", "explode")
	assert.ErrorIs(t, err, ErrBadCommand)

	assert.Len(t, s.GetAll(), 2)

	reloaded := NewScheduler(cmds, file)
	entries := reloaded.GetAll()
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{"power on", "power off"}, []string{entries[0].Command, entries[1].Command})

	s.Remove(id)
	assert.Len(t, s.GetAll(), 1)
	assert.Len(t, NewScheduler(cmds, file).GetAll(), 1)
}

func TestExecuteSendsCommand(t *testing.T) {
	cmds := make(core.CommandChannel, 1)
	s := NewScheduler(cmds, filepath.Join(t.TempDir(), "schedules.json"))

	s.execute("color 1 2 3")
	cmd := <-cmds
	assert.Equal(t, core.CmdSetColor, cmd.Type)
	assert.Equal(t, 2, cmd.Int("g", 0))

	s.execute("nonsense")
	assert.Len(t, cmds, 0)
}
