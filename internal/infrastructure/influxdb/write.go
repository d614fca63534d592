package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sim8085-launcher/internal/events"
)

// Measurement names.
const (
	MeasurementStartup  = "launcher_startup"
	MeasurementShutdown = "launcher_shutdown"
)

// pointWriter is the part of Client the Recorder needs.
type pointWriter interface {
	WritePoint(p *write.Point)
}

// Recorder turns lifecycle events into timing points.
//
// Only StartupCompleted and BackendStopped produce points; every other
// event is ignored.
type Recorder struct {
	w pointWriter
}

// NewRecorder returns a Recorder writing through c.
func NewRecorder(c *Client) *Recorder {
	return &Recorder{w: c}
}

// OnEvent implements events.Observer.
func (r *Recorder) OnEvent(e events.Event) {
	if p := pointForEvent(e); p != nil {
		r.w.WritePoint(p)
	}
}

func pointForEvent(e events.Event) *write.Point {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	switch e.Type {
	case events.StartupCompleted:
		fields := make(map[string]interface{}, len(e.Timings)+2)
		for phase, d := range e.Timings {
			fields[phase+"_ms"] = millis(d)
		}
		fields["port"] = int64(e.Port)
		fields["healthy"] = e.Healthy
		return write.NewPoint(MeasurementStartup,
			map[string]string{"session": e.Session},
			fields, ts)

	case events.BackendStopped:
		fields := map[string]interface{}{
			"duration_ms": millis(e.Duration),
			"pid":         int64(e.PID),
		}
		if e.ExitCode != nil {
			fields["exit_code"] = int64(*e.ExitCode)
		}
		return write.NewPoint(MeasurementShutdown,
			map[string]string{"session": e.Session, "outcome": e.Outcome},
			fields, ts)
	}

	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
