package pipeline

import (
	"context"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/store"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FrameSource provides still frames extracted from a video at fixed temporal sampling
type FrameSource interface {
	// ListFrames returns frame identifiers of the video in playback order
	ListFrames(ctx context.Context, videoRef string) ([]string, error)
	LoadFrame(ctx context.Context, videoRef, frameID string) ([]byte, error)
}

// Detector is an object detection service. It returns labeled boxes found on an encoded image
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]LabeledBox, error)
}

// Narrator turns findings into human readable prose
type Narrator interface {
	Narrate(ctx context.Context, findings FindingsDocument) (string, error)
}

// DetectionStage runs the detector over every frame of a video and produces the detections artifact.
// A frame whose detection fails is logged and left out.
type DetectionStage struct {
	frames   FrameSource
	detector Detector
	cfg      config.Config
	logger   logrus.FieldLogger
}

func NewDetectionStage(frames FrameSource, detector Detector, cfg config.Config, logger logrus.FieldLogger) *DetectionStage {
	return &DetectionStage{
		frames:   frames,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *DetectionStage) Name() string       { return "detections" }
func (s *DetectionStage) Input() store.Kind  { return "" }
func (s *DetectionStage) Output() store.Kind { return store.KindDetections }

func (s *DetectionStage) Process(ctx context.Context, videoRef string, _ []byte) ([]byte, error) {
	ids, err := s.frames.ListFrames(ctx, videoRef)
	if err != nil {
		return nil, errors.Wrap(err, "Can't list frames")
	}
	if len(ids) < s.cfg.Thresholds.MinFrames {
		return nil, errors.Wrapf(ErrInsufficientFrames, "%d frames, need %d", len(ids), s.cfg.Thresholds.MinFrames)
	}

	log := s.logger.WithField("video", videoRef)
	records := make([]DetectionRecord, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		boxes, err := s.detect(ctx, videoRef, id)
		if err != nil {
			log.WithError(err).WithField("frame", id).Error("Can't detect objects")
			continue
		}
		records = append(records, DetectionRecord{
			Frame:      StringFrameID(id),
			Detections: boxes,
		})
		if (i+1)%10 == 0 {
			log.Debugf("Processed %d/%d frames", i+1, len(ids))
		}
	}
	return EncodeDetections(records)
}

func (s *DetectionStage) detect(ctx context.Context, videoRef, frameID string) ([]LabeledBox, error) {
	img, err := s.frames.LoadFrame(ctx, videoRef, frameID)
	if err != nil {
		return nil, errors.Wrap(err, "Can't load frame")
	}
	boxes, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "Detector failed")
	}
	if boxes == nil {
		boxes = []LabeledBox{}
	}
	return boxes, nil
}
