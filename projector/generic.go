package projector

import (
	"github.com/kanromiku/Industrial-Internet/parser"
)

// GenericProjector maps an envelope straight onto the generic sensor_data
// row shape: identity, timestamp and the full payload, no projected
// columns.
type GenericProjector struct{}

// Name implements Projector
func (g *GenericProjector) Name() string { return "generic" }

// Project implements Projector
func (g *GenericProjector) Project(env *parser.Envelope) (*Record, error) {
	return &Record{
		DeviceID:  env.DeviceID,
		Timestamp: env.Timestamp,
		Payload:   env.Raw,
	}, nil
}
