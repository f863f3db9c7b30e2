package plan

import "time"

type TrajectoryPoint struct {
	Time time.Time `json:"time"`
	Pose Pose      `json:"pose"`
}

type Trajectory []TrajectoryPoint

// Duration is the time between the first and last point.
func (t Trajectory) Duration() time.Duration {
	if len(t) < 2 {
		return 0
	}
	return t[len(t)-1].Time.Sub(t[0].Time)
}

// Interpolate time-parameterises poses at the traits' nominal speeds,
// starting at start. Consecutive poses that take no time to reach are
// merged, so the result may hold fewer points than poses.
func Interpolate(traits VehicleTraits, start time.Time, poses []Pose) Trajectory {
	if len(poses) == 0 {
		return nil
	}
	out := Trajectory{{Time: start, Pose: poses[0]}}
	t := start
	for _, p := range poses[1:] {
		last := out[len(out)-1].Pose
		d := traits.SegmentDuration(last, p)
		if d <= 0 {
			continue
		}
		t = t.Add(d)
		out = append(out, TrajectoryPoint{Time: t, Pose: p})
	}
	return out
}
