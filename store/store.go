// Package store keeps pipeline artifacts per video.
//
// Each (video, kind) pair is written at most once: Put refuses to overwrite an
// existing artifact with ErrExists, which is what makes pipeline runs idempotent.
package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Kind names an artifact type produced or consumed by a pipeline stage
type Kind string

const (
	// KindDetections is newline-delimited per-frame detection records
	KindDetections Kind = "detections"
	// KindTracks is the tracks document
	KindTracks Kind = "tracks"
	// KindFindings is the findings (faults) document
	KindFindings Kind = "findings"
)

var (
	// ErrNotFound is returned when an artifact does not exist
	ErrNotFound = errors.New("artifact not found")
	// ErrExists is returned when an artifact is already written
	ErrExists = errors.New("artifact already exists")
)

// Store is artifact storage shared by pipeline stages
type Store interface {
	Exists(ctx context.Context, videoRef string, kind Kind) (bool, error)
	Get(ctx context.Context, videoRef string, kind Kind) ([]byte, error)
	// Put writes artifact once. Returns ErrExists when it is already there.
	Put(ctx context.Context, videoRef string, kind Kind, body []byte) error
	Close() error
}

// ValidateRef checks that a video reference is usable as a storage key
func ValidateRef(videoRef string) error {
	if strings.TrimSpace(videoRef) == "" {
		return errors.New("empty video reference")
	}
	if videoRef == "." || videoRef == ".." || strings.ContainsAny(videoRef, `/\`) || strings.ContainsRune(videoRef, 0) {
		return errors.Errorf("invalid video reference %q", videoRef)
	}
	return nil
}

// ValidateKind checks that kind is one of known artifact kinds
func ValidateKind(kind Kind) error {
	switch kind {
	case KindDetections, KindTracks, KindFindings:
		return nil
	}
	return errors.Errorf("unknown artifact kind %q", kind)
}

func validate(videoRef string, kind Kind) error {
	if err := ValidateRef(videoRef); err != nil {
		return err
	}
	return ValidateKind(kind)
}
