package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Decode errors.
var (
	ErrNotObject        = errors.New("payload is not a JSON object")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingValue     = errors.New("missing value")
	ErrInvalidTimestamp = errors.New("timestamp is not a string")
	ErrInvalidValue     = errors.New("value is not a number")
)

// Sample is one timestamped reading pushed by the ingestion server.
type Sample struct {
	Timestamp  string    `json:"timestamp"`
	Value      float64   `json:"value"`
	ReceivedAt time.Time `json:"-"`
}

// FrequencyPoint is one bin of the frequency summary served by the
// analysis service.
type FrequencyPoint struct {
	Frequency string  `json:"frequency"`
	Magnitude float64 `json:"magnitude"`
}

// UnmarshalJSON accepts the frequency either as a string label or as a
// bare number.
func (p *FrequencyPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Frequency json.RawMessage `json:"frequency"`
		Magnitude float64         `json:"magnitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Magnitude = raw.Magnitude
	p.Frequency = ""
	if isAbsent(raw.Frequency) {
		return nil
	}

	if raw.Frequency[0] == '"' {
		return json.Unmarshal(raw.Frequency, &p.Frequency)
	}

	var f float64
	if err := json.Unmarshal(raw.Frequency, &f); err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	p.Frequency = strconv.FormatFloat(f, 'f', -1, 64)
	return nil
}

// wireSample keeps the raw fields so presence and type can be checked
// separately.
type wireSample struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
}

// DecodeSample parses an inbound frame. The frame must be a JSON object with
// a string timestamp and a numeric value.
func DecodeSample(data []byte, receivedAt time.Time) (Sample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Sample{}, ErrNotObject
	}

	var raw wireSample
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Sample{}, fmt.Errorf("unmarshal sample: %w", err)
	}

	if isAbsent(raw.Timestamp) {
		return Sample{}, ErrMissingTimestamp
	}
	if isAbsent(raw.Value) {
		return Sample{}, ErrMissingValue
	}

	var ts string
	if err := json.Unmarshal(raw.Timestamp, &ts); err != nil {
		return Sample{}, ErrInvalidTimestamp
	}

	var value float64
	if err := json.Unmarshal(raw.Value, &value); err != nil {
		return Sample{}, ErrInvalidValue
	}

	return Sample{
		Timestamp:  ts,
		Value:      value,
		ReceivedAt: receivedAt,
	}, nil
}

// isAbsent treats a missing key and an explicit null the same way.
func isAbsent(field json.RawMessage) bool {
	return len(field) == 0 || bytes.Equal(field, []byte("null"))
}
