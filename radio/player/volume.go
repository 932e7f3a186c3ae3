package player

// Volume is a bounded volume range with a fixed step.
type Volume struct {
	Min  int
	Max  int
	Step int
}

// DefaultVolume matches mpv's 0-100 scale in steps of 5.
var DefaultVolume = Volume{Min: 0, Max: 100, Step: 5}

// Clamp limits v to [Min, Max].
func (r Volume) Clamp(v int) int {
	if v > r.Max {
		return r.Max
	}
	if v < r.Min {
		return r.Min
	}
	return v
}

// Up returns the volume one step above v, clamped.
func (r Volume) Up(v int) int { return r.Clamp(v + r.Step) }

// Down returns the volume one step below v, clamped.
func (r Volume) Down(v int) int { return r.Clamp(v - r.Step) }
