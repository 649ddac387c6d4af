package trafficlight

import (
	"time"

	"github.com/osa030/trafficlight/internal/domain/phase"
)

// Event represents a published phase change.
type Event struct {
	Seq     uint64      // Increases by one per transition of the light
	LightID int         // Identity of the light that changed
	Phase   phase.Phase // Phase after the change
	At      time.Time   // When the change was applied
}

// Status is a point-in-time snapshot of a light.
type Status struct {
	ID            int
	Label         string
	Phase         phase.Phase
	Running       bool
	Transitions   uint64
	LastChange    time.Time     // Zero until the first transition
	CycleDuration time.Duration // Duration drawn for the current cycle
	Watchers      int
}
