// Package detection defines the detection event produced by the external
// perception process and the JSON wire format the feeds accept.
package detection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ClassPerson is the detector class id for "person" in the default COCO
// label map. The configured person class overrides it at runtime.
const ClassPerson = 0

// Event is a single detection. It is immutable once produced and is consumed
// exactly once by the batcher.
type Event struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// Batch is one delivery from the producer: every detection in one captured
// frame.
type Batch []Event

// ErrEmptyPayload is returned for blank lines or datagrams.
var ErrEmptyPayload = errors.New("empty detection payload")

// wireDetection carries the optional bbox so payloads from the detector
// decode cleanly; the box is cosmetic and dropped after parsing.
type wireDetection struct {
	ClassID    *int      `json:"class_id"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

type wireFrame struct {
	Detections []wireDetection `json:"detections"`
}

// Parse decodes one payload into a Batch. Two shapes are accepted:
//
//	{"detections":[{"class_id":0,"confidence":0.9,"bbox":[...]}]}
//	[{"class_id":0,"confidence":0.9}]
//
// Detections below minConfidence are filtered out. An empty detection list is
// valid and yields an empty batch.
func Parse(payload []byte, minConfidence float64) (Batch, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var raw []wireDetection
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detection list: %w", err)
		}
	case '{':
		var frame wireFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detection frame: %w", err)
		}
		raw = frame.Detections
	default:
		return nil, fmt.Errorf("unrecognised detection payload %q", truncate(payload, 32))
	}

	batch := make(Batch, 0, len(raw))
	for i, d := range raw {
		if d.ClassID == nil {
			return nil, fmt.Errorf("detection %d: missing class_id", i)
		}
		if d.Confidence < 0 {
			return nil, fmt.Errorf("detection %d: negative confidence %f", i, d.Confidence)
		}
		if d.Confidence < minConfidence {
			continue
		}
		batch = append(batch, Event{ClassID: *d.ClassID, Confidence: d.Confidence})
	}
	return batch, nil
}

// Encode renders a batch in the framed wire shape. Used by the synthetic
// producer and tests.
func Encode(b Batch) ([]byte, error) {
	frame := wireFrame{Detections: make([]wireDetection, len(b))}
	for i, e := range b {
		classID := e.ClassID
		frame.Detections[i] = wireDetection{ClassID: &classID, Confidence: e.Confidence}
	}
	return json.Marshal(frame)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
