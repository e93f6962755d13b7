package domain

import (
	"encoding/json"
	"testing"
)

func TestSensorReadingUnmarshalKeepsExtras(t *testing.T) {
	data := `{"sensorId":"sensor001","sensorType":"temperature","value":25.5,"location":"Building A","timestamp":"2024-05-01T12:00:00Z","unit":"C"}`

	var r SensorReading
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.SensorID != "sensor001" || r.SensorType != "temperature" || r.Value != 25.5 {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if string(r.Extra["unit"]) != `"C"` {
		t.Fatalf("expected unit extra to be kept, got %q", r.Extra["unit"])
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal marshalled: %v", err)
	}
	if back["unit"] != "C" || back["sensorId"] != "sensor001" {
		t.Fatalf("unexpected encoded reading: %s", out)
	}
}

func TestSensorReadingBackendAliases(t *testing.T) {
	var r SensorReading
	if err := json.Unmarshal([]byte(`{"sensor_id":"s9","type":"humidity","value":60}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.SensorID != "s9" || r.SensorType != "humidity" {
		t.Fatalf("expected backend aliases to populate fields, got %+v", r)
	}
	if len(r.Extra) != 0 {
		t.Fatalf("aliases must not leak into Extra: %v", r.Extra)
	}
}

func TestSensorReadingMalformedValueIsZero(t *testing.T) {
	cases := []string{
		`{"sensorId":"a"}`,
		`{"sensorId":"a","value":null}`,
		`{"sensorId":"a","value":"hot"}`,
	}
	for _, c := range cases {
		var r SensorReading
		if err := json.Unmarshal([]byte(c), &r); err != nil {
			t.Fatalf("unmarshal %s: %v", c, err)
		}
		if r.Value != 0 {
			t.Fatalf("expected value 0 for %s, got %v", c, r.Value)
		}
	}
}

func TestSensorReadingTime(t *testing.T) {
	r := SensorReading{Timestamp: "2024-05-01T12:00:00Z"}
	ts, err := r.Time()
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if ts.Hour() != 12 {
		t.Fatalf("unexpected parsed time %s", ts)
	}
	if _, err := (SensorReading{Timestamp: "yesterday"}).Time(); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
}
