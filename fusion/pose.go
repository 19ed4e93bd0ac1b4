package fusion

import (
	"github.com/KaranBalakumar/Imu-GNSS/gnssprep"
	"github.com/KaranBalakumar/Imu-GNSS/sink"
)

// sinkPose adapts a gnssprep.PreparedGNSS into the sink.Pose the viewer
// collaborator's GPS-pose box expects (spec sec. 6).
func sinkPose(p gnssprep.PreparedGNSS) sink.Pose {
	return sink.Pose{T: p.T, R: p.R, P: p.P}
}
