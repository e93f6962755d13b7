package domain

import (
	"encoding/json"
	"time"
)

// SensorReading is one raw data point reported by a city sensor.
// Keys the dashboard does not know about are kept in Extra and written back
// on encode, so readings pass through the service without losing fields.
type SensorReading struct {
	SensorID   string
	SensorType string
	Value      float64
	Location   string
	Timestamp  string

	Extra map[string]json.RawMessage
}

var knownReadingKeys = map[string]struct{}{
	"sensorId":   {},
	"sensorType": {},
	"value":      {},
	"location":   {},
	"timestamp":  {},
	"sensor_id":  {},
	"type":       {},
}

// Time parses Timestamp as RFC 3339.
func (r SensorReading) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Timestamp)
}

// UnmarshalJSON never fails on field content: a missing or non-numeric value
// decodes as 0 and backend aliases (sensor_id, type) fill in the camelCase
// fields when those are absent.
func (r *SensorReading) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SensorReading{
		SensorID:   firstString(raw, "sensorId", "sensor_id"),
		SensorType: firstString(raw, "sensorType", "type"),
		Location:   firstString(raw, "location"),
		Timestamp:  firstString(raw, "timestamp"),
	}
	if v, ok := raw["value"]; ok {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			r.Value = f
		}
	}

	for k, v := range raw {
		if _, known := knownReadingKeys[k]; known {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

func (r SensorReading) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["sensorId"] = r.SensorID
	out["sensorType"] = r.SensorType
	out["value"] = r.Value
	out["timestamp"] = r.Timestamp
	if r.Location != "" {
		out["location"] = r.Location
	}
	return json.Marshal(out)
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}
