// Package pipeline wires the crash analysis stages together.
//
// Each stage consumes one artifact kind of a video and produces another:
//
//	frames     -> DetectionStage -> detections
//	detections -> TracksStage    -> tracks
//	tracks     -> FindingsStage  -> findings
//
// Stages are pure with respect to their input artifact. Runner adds idempotency
// (existing output is never recomputed), outcome classification, logging and
// metrics; Dispatcher chains stages by artifact kind.
package pipeline

import (
	"bytes"
	"context"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/store"

	"github.com/pkg/errors"
)

// ErrInsufficientFrames marks a deliberate skip: the video has fewer frames than configured minimum
var ErrInsufficientFrames = errors.New("insufficient frames")

// Stage transforms an input artifact of a video into an output artifact
type Stage interface {
	Name() string
	// Input is the consumed artifact kind. Empty for stages fed by collaborators only
	Input() store.Kind
	Output() store.Kind
	Process(ctx context.Context, videoRef string, input []byte) ([]byte, error)
}

// TracksStage builds tracks from detections
type TracksStage struct {
	cfg config.Config
}

func NewTracksStage(cfg config.Config) *TracksStage {
	return &TracksStage{cfg: cfg}
}

func (s *TracksStage) Name() string       { return "tracks" }
func (s *TracksStage) Input() store.Kind  { return store.KindDetections }
func (s *TracksStage) Output() store.Kind { return store.KindTracks }

func (s *TracksStage) Process(ctx context.Context, videoRef string, input []byte) ([]byte, error) {
	records, err := ParseDetections(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	if len(records) < s.cfg.Thresholds.MinFrames {
		return nil, errors.Wrapf(ErrInsufficientFrames, "%d frames, need %d", len(records), s.cfg.Thresholds.MinFrames)
	}
	doc, err := BuildTracksDocument(videoRef, records, s.cfg)
	if err != nil {
		return nil, err
	}
	return encodeDocument(doc)
}

// FindingsStage flags tracks and infers risk, causes and fault attribution
type FindingsStage struct {
	cfg config.Config
}

func NewFindingsStage(cfg config.Config) *FindingsStage {
	return &FindingsStage{cfg: cfg}
}

func (s *FindingsStage) Name() string       { return "findings" }
func (s *FindingsStage) Input() store.Kind  { return store.KindTracks }
func (s *FindingsStage) Output() store.Kind { return store.KindFindings }

func (s *FindingsStage) Process(ctx context.Context, videoRef string, input []byte) ([]byte, error) {
	doc, err := DecodeTracks(input)
	if err != nil {
		return nil, err
	}
	if doc.VideoReference == "" {
		doc.VideoReference = videoRef
	}
	return encodeDocument(AssessTracks(doc, s.cfg))
}
