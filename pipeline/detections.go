package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/mot"

	"github.com/pkg/errors"
)

// maxLineSize bounds a single detections record
const maxLineSize = 16 * 1024 * 1024

// ValidationError is returned for input which can't be parsed.
// Line is 1-based for newline-delimited input and zero otherwise.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return "invalid input at line " + strconv.Itoa(e.Line) + ": " + e.Reason
	}
	return "invalid input: " + e.Reason
}

// FrameID is a frame identifier: either a string (e.g. still image key) or a number
type FrameID struct {
	Text    string
	Number  float64
	Numeric bool
}

// StringFrameID wraps a textual identifier
func StringFrameID(text string) FrameID {
	return FrameID{Text: text}
}

func (id FrameID) String() string {
	return id.Text
}

// Less orders numeric identifiers before textual ones. Numbers compare by value
// (ties by text, so 1 and 1.0 are still ordered), text compares lexically.
func (id FrameID) Less(other FrameID) bool {
	if id.Numeric != other.Numeric {
		return id.Numeric
	}
	if id.Numeric && id.Number != other.Number {
		return id.Number < other.Number
	}
	return id.Text < other.Text
}

func (id FrameID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Text), nil
	}
	return json.Marshal(id.Text)
}

func (id *FrameID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return errors.New("frame identifier is null")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FrameID{Text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("frame identifier must be a string or a number, got %s", data)
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return errors.Errorf("bad numeric frame identifier %s", data)
	}
	*id = FrameID{Text: n.String(), Number: f, Numeric: true}
	return nil
}

// lenientFloat accepts a number, a numeric string or null (zero). NaN and infinities are rejected.
type lenientFloat float64

func finite(v float64, raw string) (lenientFloat, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("not a finite number: %s", raw)
	}
	return lenientFloat(v), nil
}

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return errors.Errorf("not a number: %q", s)
		}
		fv, err := finite(v, strconv.Quote(s))
		if err != nil {
			return err
		}
		*f = fv
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Errorf("not a number: %s", data)
	}
	fv, err := finite(v, string(data))
	if err != nil {
		return err
	}
	*f = fv
	return nil
}

// LabeledBox is a single object found by the detection service
type LabeledBox struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   mot.Box `json:"box"`
}

func (lb *LabeledBox) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label string       `json:"label"`
		Score lenientFloat `json:"score"`
		Box   *struct {
			XMin lenientFloat `json:"xmin"`
			YMin lenientFloat `json:"ymin"`
			XMax lenientFloat `json:"xmax"`
			YMax lenientFloat `json:"ymax"`
		} `json:"box"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*lb = LabeledBox{
		Label: raw.Label,
		Score: float64(raw.Score),
	}
	if raw.Box != nil {
		lb.Box = mot.NewBox(float64(raw.Box.XMin), float64(raw.Box.YMin), float64(raw.Box.XMax), float64(raw.Box.YMax))
	}
	return nil
}

// DetectionRecord is detections of a single frame, one line of the detections artifact
type DetectionRecord struct {
	Frame      FrameID      `json:"frame"`
	Detections []LabeledBox `json:"detections"`
}

func (rec *DetectionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Frame      *FrameID     `json:"frame"`
		Detections []LabeledBox `json:"detections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Frame == nil {
		return errors.New("frame identifier is missing")
	}
	rec.Frame = *raw.Frame
	rec.Detections = raw.Detections
	if rec.Detections == nil {
		rec.Detections = []LabeledBox{}
	}
	return nil
}

// ParseDetections reads newline-delimited detection records. Blank lines are ignored.
// Records are returned sorted by frame identifier; equal identifiers keep input order.
func ParseDetections(r io.Reader) ([]DetectionRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	records := make([]DetectionRecord, 0)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec DetectionRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, &ValidationError{Line: line, Reason: err.Error()}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ValidationError{Line: line + 1, Reason: err.Error()}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Frame.Less(records[j].Frame)
	})
	return records, nil
}

// EncodeDetections writes records as newline-delimited JSON
func EncodeDetections(records []DetectionRecord) ([]byte, error) {
	var buf bytes.Buffer
	for i := range records {
		line, err := json.Marshal(records[i])
		if err != nil {
			return nil, errors.Wrapf(err, "Can't encode detections of frame %s", records[i].Frame)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ToFrames converts sorted records into tracker frames. Frame index is the position of
// the record; detections with labels outside of configured vehicle labels are dropped.
func ToFrames(records []DetectionRecord, cfg config.Config) []mot.Frame {
	frames := make([]mot.Frame, len(records))
	for i, rec := range records {
		frames[i] = mot.Frame{
			Index:      i,
			ID:         rec.Frame.String(),
			Detections: make([]mot.Detection, 0, len(rec.Detections)),
		}
		for _, d := range rec.Detections {
			if !cfg.IsVehicle(d.Label) {
				continue
			}
			frames[i].Detections = append(frames[i].Detections, mot.Detection{Box: d.Box, Score: d.Score})
		}
	}
	return frames
}
