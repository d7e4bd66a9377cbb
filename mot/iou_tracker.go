package mot

import (
	"github.com/pkg/errors"
)

// GreedyIoUTracker associates per-frame detections into tracks with greedy frame-local IoU matching.
// Active tracks are visited in ascending ID order and each one takes the not yet assigned
// detection with the strictly greatest IoU against its last box. A track that gets no match
// on a frame is retired for good: there is no re-identification, and an object that
// reappears later starts a brand new track.
// This is not a globally optimal assignment; crossing objects may swap, and the
// tie-break order above must stay as is for reproducible results.
type GreedyIoUTracker struct {
	// IoU threshold for matching
	iouThreshold float64
	// Next unused track identifier
	nextID int
	// Identifiers of active tracks in ascending order
	active []int
	// Index of the last processed frame
	lastFrame int
	started   bool
	// Storage for all tracks (active and retired) in order of creation
	tracks []*Track
}

// NewDefaultGreedyIoUTracker creates a default instance of GreedyIoUTracker.
// Default values: iouThreshold=0.3
func NewDefaultGreedyIoUTracker() *GreedyIoUTracker {
	return NewGreedyIoUTracker(0.3)
}

// NewGreedyIoUTracker creates a new instance of GreedyIoUTracker with specified IoU threshold.
func NewGreedyIoUTracker(iouThreshold float64) *GreedyIoUTracker {
	return &GreedyIoUTracker{
		iouThreshold: iouThreshold,
		nextID:       1,
		active:       make([]int, 0),
		tracks:       make([]*Track, 0),
	}
}

// MatchObjects consumes the next frame. Frames must come in strictly increasing index order.
func (tracker *GreedyIoUTracker) MatchObjects(frame Frame) error {
	if tracker.started && frame.Index <= tracker.lastFrame {
		return errors.Errorf("frame %d is out of order: last processed frame is %d", frame.Index, tracker.lastFrame)
	}
	tracker.started = true
	tracker.lastFrame = frame.Index

	assigned := make([]bool, len(frame.Detections))
	stillActive := make([]int, 0, len(tracker.active))

	for _, trackID := range tracker.active {
		track := tracker.track(trackID)
		lastBox := track.LastBox()
		bestIdx := -1
		bestIoU := 0.0
		for j := range frame.Detections {
			if assigned[j] {
				continue
			}
			iouValue := IoU(lastBox, frame.Detections[j].Box)
			if iouValue > bestIoU {
				bestIoU = iouValue
				bestIdx = j
			}
		}
		if bestIdx < 0 || bestIoU < tracker.iouThreshold {
			// Retire: no way back for this track
			continue
		}
		track.States = append(track.States, NewState(frame.Index, frame.ID, frame.Detections[bestIdx]))
		assigned[bestIdx] = true
		stillActive = append(stillActive, trackID)
	}

	// Unassigned detections spawn new tracks in listed order
	for j := range frame.Detections {
		if assigned[j] {
			continue
		}
		track := &Track{
			ID:     tracker.nextID,
			States: []State{NewState(frame.Index, frame.ID, frame.Detections[j])},
		}
		tracker.tracks = append(tracker.tracks, track)
		stillActive = append(stillActive, track.ID)
		tracker.nextID++
	}

	tracker.active = stillActive
	return nil
}

// ActiveIDs returns identifiers of tracks which are still open for matching
func (tracker *GreedyIoUTracker) ActiveIDs() []int {
	ids := make([]int, len(tracker.active))
	copy(ids, tracker.active)
	return ids
}

// Tracks returns every track created so far, ordered by ID.
// Be careful: tracks are returned by reference
func (tracker *GreedyIoUTracker) Tracks() []*Track {
	return tracker.tracks
}

func (tracker *GreedyIoUTracker) track(id int) *Track {
	// IDs are dense and start from 1
	return tracker.tracks[id-1]
}

// BuildTracks runs the greedy tracker over the whole ordered frame sequence.
func BuildTracks(frames []Frame, iouThreshold float64) ([]*Track, error) {
	tracker := NewGreedyIoUTracker(iouThreshold)
	for i := range frames {
		if err := tracker.MatchObjects(frames[i]); err != nil {
			return nil, errors.Wrapf(err, "Can't match objects on frame %d", frames[i].Index)
		}
	}
	return tracker.Tracks(), nil
}
