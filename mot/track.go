package mot

// Detection is a single vehicle bounding box observed on a frame.
type Detection struct {
	Box   Box
	Score float64
}

// Frame is an ordered set of detections. Index is the position of the frame in the
// processed sequence; wall time of the frame is Index / fps.
type Frame struct {
	Index int
	// ID is an external frame identifier (e.g. still image name). Optional
	ID         string
	Detections []Detection
}

// State is an observation of a track at one frame
type State struct {
	FrameIndex int     `json:"frame_index"`
	FrameID    string  `json:"frame,omitempty"`
	Box        Box     `json:"box"`
	Score      float64 `json:"score"`
	Center     Point   `json:"center"`
	Size       Size    `json:"size"`
}

// NewState creates a state for the given frame and derives its center and size
func NewState(frameIndex int, frameID string, detection Detection) State {
	return State{
		FrameIndex: frameIndex,
		FrameID:    frameID,
		Box:        detection.Box,
		Score:      detection.Score,
		Center:     detection.Box.Center(),
		Size:       detection.Box.Size(),
	}
}

// Track is a sequence of states believed to represent one physical object.
// States are strictly increasing by frame index.
type Track struct {
	ID     int     `json:"id"`
	States []State `json:"states"`
	// Mean pixel speed across transitions, pixels per second
	MeanSpeed float64 `json:"mean_speed"`
	// Minimum time-to-collision, seconds. Nil when the object never approached
	MinTTC *float64 `json:"min_ttc"`
}

// FirstFrame returns frame index of the very first state
func (track *Track) FirstFrame() int {
	return track.States[0].FrameIndex
}

// LastFrame returns frame index of the latest state
func (track *Track) LastFrame() int {
	return track.States[len(track.States)-1].FrameIndex
}

// LastBox returns bounding box of the latest state
func (track *Track) LastBox() Box {
	return track.States[len(track.States)-1].Box
}
