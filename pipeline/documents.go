package pipeline

import (
	"encoding/json"
	"strconv"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/fault"
	"github.com/LdDl/crashtruth-go/mot"

	"github.com/pkg/errors"
)

// TracksDocument is the tracks artifact
type TracksDocument struct {
	VideoReference string      `json:"video_reference"`
	FPS            float64     `json:"fps"`
	Tracks         []mot.Track `json:"tracks"`
	TracksCount    int         `json:"tracks_count"`
}

// FindingsDocument is the findings artifact consumed by the narrative generator
type FindingsDocument struct {
	VideoReference string            `json:"video_reference"`
	FPS            float64           `json:"fps"`
	Summary        fault.Summary     `json:"summary"`
	Causes         []fault.Cause     `json:"causes"`
	Findings       []fault.Finding   `json:"findings"`
	Attribution    fault.Attribution `json:"attribution"`
	Stats          fault.Stats       `json:"stats"`
	Thresholds     config.Thresholds `json:"thresholds"`
}

// BuildTracksDocument turns detection records into tracks.
// Metrics are computed on full state history; persisted states are downsampled afterwards.
func BuildTracksDocument(videoRef string, records []DetectionRecord, cfg config.Config) (TracksDocument, error) {
	frames := ToFrames(records, cfg)
	built, err := mot.BuildTracks(frames, cfg.Thresholds.MatchIoU)
	if err != nil {
		return TracksDocument{}, errors.Wrap(err, "Can't build tracks")
	}
	tracks := make([]mot.Track, 0, len(built))
	for _, t := range built {
		t.ComputeMetrics(cfg.FPS)
		persisted := *t
		persisted.States = mot.Downsample(t.States, cfg.MaxPersistedStates)
		tracks = append(tracks, persisted)
	}
	return TracksDocument{
		VideoReference: videoRef,
		FPS:            cfg.FPS,
		Tracks:         tracks,
		TracksCount:    len(tracks),
	}, nil
}

// AssessTracks runs fault inference over a tracks document.
// FPS of the document wins over configured one unless it is missing.
func AssessTracks(doc TracksDocument, cfg config.Config) FindingsDocument {
	fps := doc.FPS
	if fps <= 0 {
		fps = cfg.FPS
	}
	tracks := doc.Tracks
	if tracks == nil {
		tracks = []mot.Track{}
	}
	assessment := fault.Analyze(tracks, fps, cfg.Thresholds)
	return FindingsDocument{
		VideoReference: doc.VideoReference,
		FPS:            fps,
		Summary:        assessment.Summary,
		Causes:         assessment.Causes,
		Findings:       assessment.Findings,
		Attribution:    assessment.Attribution,
		Stats:          assessment.Stats,
		Thresholds:     cfg.Thresholds,
	}
}

// DecodeTracks parses a tracks artifact
func DecodeTracks(data []byte) (TracksDocument, error) {
	var doc TracksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return TracksDocument{}, &ValidationError{Reason: err.Error()}
	}
	for _, t := range doc.Tracks {
		if len(t.States) == 0 {
			return TracksDocument{}, &ValidationError{Reason: "track " + strconv.Itoa(t.ID) + " has no states"}
		}
	}
	return doc, nil
}

// DecodeFindings parses a findings artifact
func DecodeFindings(data []byte) (FindingsDocument, error) {
	var doc FindingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return FindingsDocument{}, &ValidationError{Reason: err.Error()}
	}
	return doc, nil
}

// encodeDocument renders an artifact as indented JSON
func encodeDocument(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "Can't encode document")
	}
	return append(data, '\n'), nil
}
