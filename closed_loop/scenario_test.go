package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	control "drone-nav-core/closed_loop/lateral_control"
	"drone-nav-core/gridmap"
	"drone-nav-core/sensors"
)

func TestParseScenarioKeepsDefaults(t *testing.T) {
	t.Parallel()

	scen, err := ParseScenario([]byte(`{
		"map_path": "x.txt",
		"timing": {"duration_s": 5},
		"navigation": {"start_side": "left", "desired_wall_distance": 15}
	}`))
	require.NoError(t, err)

	def := DefaultScenario()
	assert.Equal(t, def.Timing.DtS, scen.Timing.DtS)
	assert.Equal(t, 5.0, scen.Timing.DurationS)
	assert.Equal(t, 50, scen.Ticks())
	assert.Equal(t, control.SideLeft, scen.Navigation.StartSide)
	assert.Equal(t, 15.0, scen.Navigation.DesiredWallDistance)
	assert.Equal(t, def.Navigation.Lateral, scen.Navigation.Lateral)
	assert.Equal(t, sensors.DefaultDroneConfig(), scen.DroneConfig())
	assert.Nil(t, scen.Vehicle.Start)
}

func TestParseScenarioRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad json":      `{`,
		"no map":        `{}`,
		"zero dt":       `{"map_path": "m", "timing": {"dt_s": 0}}`,
		"zero duration": `{"map_path": "m", "timing": {"duration_s": 0}}`,
		"zero radius":   `{"map_path": "m", "vehicle": {"radius": 0}}`,
		"bad side":      `{"map_path": "m", "navigation": {"start_side": "up"}}`,
		"bad pid":       `{"map_path": "m", "navigation": {"front_pid": {"output_limit": 0}}}`,
		"bad speed":     `{"map_path": "m", "speed": {"min": 7}}`,
		"bad range":     `{"map_path": "m", "range": {"step": 0}}`,
		"slow vs loop":  `{"map_path": "m", "speed": {"base": 0.4, "min": 0.4}}`,
		"no narrow":     `{"map_path": "m", "navigation": {"narrow_passage_distance": 0}}`,
		"no open space": `{"map_path": "m", "navigation": {"open_space_distance": -1}}`,
		"no turn":       `{"map_path": "m", "navigation": {"recovery_turn_deg": 0}}`,
	}
	for name, src := range cases {
		_, err := ParseScenario([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestLoadScenarioResolvesMapPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "s.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"map_path": "maps/a.txt"}`), 0o644))

	scen, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "maps", "a.txt"), scen.MapPath)

	_, err = LoadScenario(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestShippedScenariosLoad(t *testing.T) {
	t.Parallel()

	paths, err := filepath.Glob("../config/scenarios/*.json")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scen, err := LoadScenario(path)
		require.NoError(t, err, path)
		grid, err := gridmap.Load(scen.MapPath)
		require.NoError(t, err, path)
		r := testRunner(t, scen, grid, nil)
		assert.True(t, r.Legal(r.pos), path)
	}
}
