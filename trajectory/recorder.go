package trajectory

import (
	"time"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/sim"
)

// Recorder captures engine frames into a Trajectory. The host calls
// Capture after each Tick; every stride-th call stores a frame until
// maxFrames are held.
type Recorder struct {
	sim       *sim.Sim
	stride    int
	maxFrames int
	calls     int
	traj      Trajectory
}

// NewRecorder creates a recorder over s. stride < 1 records every tick;
// maxFrames < 1 means unbounded.
func NewRecorder(s *sim.Sim, stride, maxFrames int) *Recorder {
	if stride < 1 {
		stride = 1
	}
	// Recordings always use the extended layout so playback sees the
	// QP diagnostics.
	fields := components.FieldNames(true)
	groups := append([]uint32(nil), s.Groups()...)
	return &Recorder{
		sim:       s,
		stride:    stride,
		maxFrames: maxFrames,
		traj: Trajectory{
			Meta: Meta{
				Version:     Version,
				CreatedAt:   time.Now().UTC().Format(time.RFC3339),
				DT:          s.DT(),
				Stride:      uint32(stride),
				MaxFrames:   uint32(max(maxFrames, 0)),
				ModelID:     s.ModelID(),
				AlgorithmID: s.AlgorithmID(),
				Plane2D:     s.Plane2D(),
				AgentCount:  uint32(s.Len()),
				Fields:      fields,
				Groups:      groups,
			},
		},
	}
}

// SetParams stores the active algorithm parameter record for the meta
// block as flat key/value pairs.
func (r *Recorder) SetParams(params []Param) {
	r.traj.Meta.Params = params
}

// SetGroupColors stores the render palette for playback.
func (r *Recorder) SetGroupColors(colors []GroupColor) {
	r.traj.Meta.GroupColors = colors
}

// Capture samples the engine's debug state. It returns true when a
// frame was stored.
func (r *Recorder) Capture() bool {
	if r.maxFrames > 0 && int(r.traj.FrameCount) >= r.maxFrames {
		return false
	}
	take := r.calls%r.stride == 0
	r.calls++
	if !take {
		return false
	}
	r.traj.States = append(r.traj.States, r.sim.DebugStates()...)
	r.traj.FrameCount++
	return true
}

// Frames returns the number of stored frames.
func (r *Recorder) Frames() int {
	return int(r.traj.FrameCount)
}

// Trajectory returns the recording built so far.
func (r *Recorder) Trajectory() *Trajectory {
	return &r.traj
}

// Encode serializes the recording.
func (r *Recorder) Encode() []byte {
	return r.traj.Encode()
}
