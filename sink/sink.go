// Package sink implements the two single-writer/single-reader latest-value
// boxes the fusion driver publishes into (spec sec. 5): a NavState box and
// a GNSS-pose box. Each is a mutex-guarded slot, not a queue — a slow
// reader simply misses intermediate values, it never blocks the writer.
// Grounded on the Valkyrie fusion engine's RWMutex-guarded GetState
// (copy-out, never hand out internal pointers) and mission.go's histChan
// fan-out (kept only as the reasoning for *why* a box beats a queue here:
// the renderer is a single reader of only the latest value).
package sink

import (
	"sync"

	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// Pose is the SE(3) snapshot published alongside NavState (spec sec. 6).
type Pose struct {
	T float64
	R navstate.Rotation
	P [3]float64
}

// Sink is the interface the fusion driver publishes snapshots through
// (spec sec. 6): update_nav_state / update_gps_pose, both non-blocking.
type Sink interface {
	UpdateNavState(navstate.NavState)
	UpdateGPSPose(Pose)
}

// NavStateBox is a single-writer/single-reader latest-value slot for a
// NavState.
type NavStateBox struct {
	mu  sync.Mutex
	val navstate.NavState
	set bool
}

// Store replaces the held value. Never blocks.
func (b *NavStateBox) Store(v navstate.NavState) {
	b.mu.Lock()
	b.val = v
	b.set = true
	b.mu.Unlock()
}

// Load returns the most recently stored value and whether one exists.
func (b *NavStateBox) Load() (navstate.NavState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.val, b.set
}

// PoseBox is a single-writer/single-reader latest-value slot for a Pose.
type PoseBox struct {
	mu  sync.Mutex
	val Pose
	set bool
}

// Store replaces the held value. Never blocks.
func (b *PoseBox) Store(v Pose) {
	b.mu.Lock()
	b.val = v
	b.set = true
	b.mu.Unlock()
}

// Load returns the most recently stored value and whether one exists.
func (b *PoseBox) Load() (Pose, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.val, b.set
}

// BoxSink is the concrete, box-backed Sink implementation the core drives.
// It is the seam an external viewer collaborator reads from; the viewer
// itself stays out of scope (spec sec. 1 non-goals).
type BoxSink struct {
	NavState NavStateBox
	GPSPose  PoseBox
}

// NewBoxSink constructs an empty BoxSink.
func NewBoxSink() *BoxSink {
	return &BoxSink{}
}

func (s *BoxSink) UpdateNavState(n navstate.NavState) {
	s.NavState.Store(n)
}

func (s *BoxSink) UpdateGPSPose(p Pose) {
	s.GPSPose.Store(p)
}
