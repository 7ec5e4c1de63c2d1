package projector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/parser"
)

const plantLine = `{
	"device_id": "methanol_plant_main",
	"timestamp": 1735732800,
	"energy_consumption": {
		"realtime_power_kw": 5120.5,
		"today_energy_mwh": 40.96,
		"unit_energy_consumption": 56.89
	},
	"operational_status": {
		"operating_rate": 0.9,
		"oee": 0.85
	},
	"equipment_status": {
		"water_tank_1": {"temperature_c": 72.4, "temperature_threshold_c": 90.0}
	},
	"main_workshop": {
		"reaction_area": {"reactor_model": "R-301", "pressure_mpa": 5.1, "temperature_c": 251.3}
	}
}`

func mustParse(t *testing.T, line string) *parser.Envelope {
	t.Helper()
	env, err := parser.ParseLine([]byte(line))
	require.NoError(t, err)
	return env
}

func TestGenericProjector(t *testing.T) {
	env := mustParse(t, `{"device_id":"dev01","value":12.3,"timestamp":"2025-01-01T12:00:00Z"}`)

	record, err := (&GenericProjector{}).Project(env)
	require.NoError(t, err)

	assert.Equal(t, "dev01", record.DeviceID)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), record.Timestamp)
	assert.Equal(t, env.Raw, record.Payload)
	assert.Nil(t, record.Plant)
}

func TestPlantProjectorExtractsColumns(t *testing.T) {
	env := mustParse(t, plantLine)

	record, err := NewPlantProjector().Project(env)
	require.NoError(t, err)
	require.NotNil(t, record.Plant)

	assert.Equal(t, "methanol_plant_main", record.DeviceID)
	assert.Equal(t, 5120.5, record.Plant.RealtimePowerKW)
	assert.Equal(t, 40.96, record.Plant.TodayEnergyMWH)
	assert.Equal(t, 56.89, record.Plant.UnitEnergy)
	assert.Equal(t, 0.9, record.Plant.OperatingRate)
	assert.Equal(t, 0.85, record.Plant.OEE)

	var workshop map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Plant.WorkshopData, &workshop))
	assert.Contains(t, workshop, "equipment_status")
	assert.Contains(t, workshop, "main_workshop")
	assert.NotContains(t, workshop, "energy_consumption")
}

func TestPlantProjectorMissingSections(t *testing.T) {
	env := mustParse(t, `{"device_id":"methanol_plant_main","timestamp":1735732800}`)

	record, err := NewPlantProjector().Project(env)
	require.NoError(t, err)
	require.NotNil(t, record.Plant)

	assert.Zero(t, record.Plant.RealtimePowerKW)
	assert.Zero(t, record.Plant.OEE)
	assert.JSONEq(t, `{}`, string(record.Plant.WorkshopData))
}

func TestScriptProjector(t *testing.T) {
	script := `
	function project(payload) {
		var obj = parseJSON(payload);
		return {
			plant: {
				realtime_power_kw: obj.power * 1.0,
				oee: obj.efficiency
			},
			workshop_data: {source: "script"}
		};
	}`

	p, err := NewScriptProjector(config.Projector{Type: "script", ScriptCode: script})
	require.NoError(t, err)

	env := mustParse(t, `{"device_id":"dev03","power":4800,"efficiency":0.82}`)
	record, err := p.Project(env)
	require.NoError(t, err)
	require.NotNil(t, record.Plant)

	assert.Equal(t, 4800.0, record.Plant.RealtimePowerKW)
	assert.Equal(t, 0.82, record.Plant.OEE)
	assert.JSONEq(t, `{"source":"script"}`, string(record.Plant.WorkshopData))
}

func TestScriptProjectorWithoutPlantResult(t *testing.T) {
	script := `function project(payload) { return {}; }`

	p, err := NewScriptProjector(config.Projector{Type: "script", ScriptCode: script})
	require.NoError(t, err)

	env := mustParse(t, `{"device_id":"dev04","value":1}`)
	record, err := p.Project(env)
	require.NoError(t, err)
	assert.Nil(t, record.Plant)
	assert.Equal(t, env.Raw, record.Payload)
}

func TestScriptProjectorRejectsBadScript(t *testing.T) {
	_, err := NewScriptProjector(config.Projector{Type: "script", ScriptCode: `var x = 1;`})
	assert.Error(t, err)

	_, err = NewScriptProjector(config.Projector{Type: "script"})
	assert.Error(t, err)
}

func TestManagerSelectsPerDeviceProjector(t *testing.T) {
	manager, err := NewManager(config.ProjectorsConfig{
		Default: "generic",
		Devices: map[string]config.Projector{
			"methanol_plant_main": {Type: "plant"},
		},
	})
	require.NoError(t, err)

	receivedAt := time.Now().UTC()

	plantRecord, err := manager.Project(mustParse(t, plantLine), receivedAt)
	require.NoError(t, err)
	assert.NotNil(t, plantRecord.Plant)
	assert.Equal(t, receivedAt, plantRecord.ReceivedAt)

	genericRecord, err := manager.Project(mustParse(t, `{"device_id":"other","value":1}`), receivedAt)
	require.NoError(t, err)
	assert.Nil(t, genericRecord.Plant)
}

func TestManagerReload(t *testing.T) {
	manager, err := NewManager(config.ProjectorsConfig{Default: "generic"})
	require.NoError(t, err)

	env := mustParse(t, plantLine)

	record, err := manager.Project(env, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, record.Plant)

	err = manager.Reload(config.ProjectorsConfig{
		Default: "generic",
		Devices: map[string]config.Projector{
			"methanol_plant_main": {Type: "plant"},
		},
	})
	require.NoError(t, err)

	record, err = manager.Project(env, time.Now().UTC())
	require.NoError(t, err)
	assert.NotNil(t, record.Plant)
}

func TestManagerRejectsUnknownType(t *testing.T) {
	_, err := NewManager(config.ProjectorsConfig{
		Default: "generic",
		Devices: map[string]config.Projector{
			"dev": {Type: "bogus"},
		},
	})
	assert.Error(t, err)
}
