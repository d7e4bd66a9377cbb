package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/LdDl/crashtruth-go/mot"
	"github.com/LdDl/crashtruth-go/store"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// approachHeights makes a car standing still in the image and growing by 4px per frame.
// At 5 fps TTC series is 2.0, 2.2, 2.4, ... seconds.
var approachHeights = []float64{40, 44, 48, 52, 56, 60, 64, 68}

// approachingCarJSONL renders detections of an approaching car, plus a pedestrian which
// must be filtered out. Records are written in reverse order to exercise sorting.
func approachingCarJSONL(frames int) string {
	lines := make([]string, 0, frames)
	for i := frames - 1; i >= 0; i-- {
		h := approachHeights[i%len(approachHeights)]
		lines = append(lines, fmt.Sprintf(
			`{"frame": "clip/frame_%04d.jpg", "detections": [`+
				`{"label": "person", "score": 0.6, "box": {"xmin": 0, "ymin": 0, "xmax": 10, "ymax": 30}},`+
				`{"label": "car", "score": 0.9, "box": {"xmin": 190, "ymin": %v, "xmax": 210, "ymax": %v}}]}`,
			i+1, 100-h/2, 100+h/2,
		))
	}
	return strings.Join(lines, "\n") + "\n"
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	return s
}

// fakeStage is a stage with scripted behavior
type fakeStage struct {
	name   string
	input  store.Kind
	output store.Kind
	fn     func(input []byte) ([]byte, error)

	mu    sync.Mutex
	calls int
}

func (s *fakeStage) Name() string       { return s.name }
func (s *fakeStage) Input() store.Kind  { return s.input }
func (s *fakeStage) Output() store.Kind { return s.output }

func (s *fakeStage) Process(ctx context.Context, videoRef string, input []byte) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(input)
}

func (s *fakeStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memoryFrames is an in-memory frame source
type memoryFrames struct {
	frames map[string][]string
}

func (m *memoryFrames) ListFrames(ctx context.Context, videoRef string) ([]string, error) {
	ids, ok := m.frames[videoRef]
	if !ok {
		return nil, errors.Errorf("no frames for %s", videoRef)
	}
	return ids, nil
}

func (m *memoryFrames) LoadFrame(ctx context.Context, videoRef, frameID string) ([]byte, error) {
	return []byte(frameID), nil
}

// scriptedDetector returns the car of approachHeights for frame N encoded in the image bytes
type scriptedDetector struct {
	failOn map[string]bool
}

func (d *scriptedDetector) Detect(ctx context.Context, image []byte) ([]LabeledBox, error) {
	id := string(image)
	if d.failOn[id] {
		return nil, errors.New("endpoint timeout")
	}
	var n int
	if _, err := fmt.Sscanf(id, "frame_%d.jpg", &n); err != nil {
		return nil, err
	}
	h := approachHeights[(n-1)%len(approachHeights)]
	return []LabeledBox{
		{Label: "car", Score: 0.9, Box: boxAround(200, 100, 20, h)},
	}, nil
}

func boxAround(cx, cy, w, h float64) mot.Box {
	return mot.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
}
