package projector

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/parser"
	"github.com/kanromiku/Industrial-Internet/validator"
)

// PlantProjector projects the methanol plant payload shape: park-level
// energy and operational figures become dedicated numeric columns, the
// equipment and workshop sub-documents are kept as a JSON remainder.
type PlantProjector struct {
	checks map[string]validator.Validator
}

// NewPlantProjector creates a plant projector with warn-only sanity
// checks on the projected readings.
func NewPlantProjector() *PlantProjector {
	return &PlantProjector{
		checks: map[string]validator.Validator{
			"realtime_power_kw": &validator.RangeValidator{Field: "realtime_power_kw", Min: 0, Max: 100000},
			"operating_rate":    &validator.RangeValidator{Field: "operating_rate", Min: 0, Max: 1},
			"oee":               &validator.RangeValidator{Field: "oee", Min: 0, Max: 1},
		},
	}
}

// Name implements Projector
func (p *PlantProjector) Name() string { return "plant" }

// Project implements Projector
func (p *PlantProjector) Project(env *parser.Envelope) (*Record, error) {
	metrics := &PlantMetrics{}

	if energy, ok := env.Object["energy_consumption"].(map[string]interface{}); ok {
		metrics.RealtimePowerKW = numberField(energy, "realtime_power_kw")
		metrics.TodayEnergyMWH = numberField(energy, "today_energy_mwh")
		metrics.UnitEnergy = numberField(energy, "unit_energy_consumption")
	}
	if status, ok := env.Object["operational_status"].(map[string]interface{}); ok {
		metrics.OperatingRate = numberField(status, "operating_rate")
		metrics.OEE = numberField(status, "oee")
	}

	workshop := make(map[string]interface{})
	for _, key := range []string{"equipment_status", "main_workshop"} {
		if value, ok := env.Object[key]; ok {
			workshop[key] = value
		}
	}

	workshopData, err := encodeJSON(workshop)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workshop data: %v", err)
	}
	metrics.WorkshopData = workshopData

	p.sanityCheck(env.DeviceID, metrics)

	return &Record{
		DeviceID:  env.DeviceID,
		Timestamp: env.Timestamp,
		Payload:   env.Raw,
		Plant:     metrics,
	}, nil
}

// sanityCheck logs out-of-range readings at warning level. Readings are
// never rejected: the row is stored as received.
func (p *PlantProjector) sanityCheck(deviceID string, metrics *PlantMetrics) {
	values := map[string]float64{
		"realtime_power_kw": metrics.RealtimePowerKW,
		"operating_rate":    metrics.OperatingRate,
		"oee":               metrics.OEE,
	}
	for field, check := range p.checks {
		if err := check.Validate(values[field]); err != nil {
			logger.Warn("suspicious reading from device %s: %v", deviceID, err)
		}
	}
}

// numberField reads a numeric field from a decoded JSON object, returning
// zero when the field is absent or not a number.
func numberField(obj map[string]interface{}, key string) float64 {
	switch v := obj[key].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	default:
		return 0
	}
}

// encodeJSON serializes a value without escaping non-ASCII content
func encodeJSON(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
