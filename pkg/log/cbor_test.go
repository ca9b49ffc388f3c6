package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"
)

// configureExchange is the wire-layer capture of one configure-ap call.
func configureExchange() []Event {
	at := time.Date(2026, 4, 2, 8, 0, 0, 250_000_001, time.UTC)
	ok := 0
	rtt := 340 * time.Millisecond
	return []Event{
		{
			Timestamp: at, ConnectionID: "7d2f", CallID: "c-1", Transport: "tcp",
			RemoteAddr: "192.168.0.1:5609", DeviceID: "0a1b2c",
			Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage,
			Message: &MessageEvent{
				Type: MessageTypeRequest, Command: "configure-ap", BodySize: 212,
				Payload: map[string]any{"ssid": "home", "sec": 4194308, "pwd": "[sealed]"},
			},
		},
		{
			Timestamp: at.Add(rtt), ConnectionID: "7d2f", CallID: "c-1", Transport: "tcp",
			Direction: DirectionIn, Layer: LayerWire, Category: CategoryMessage,
			Message: &MessageEvent{
				Type: MessageTypeResponse, Command: "configure-ap", BodySize: 7,
				ResultCode: &ok, Duration: &rtt, Payload: map[string]any{"r": 0},
			},
		},
	}
}

func TestDecodeCapturedExchange(t *testing.T) {
	want := configureExchange()

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, e := range want {
		if err := enc.Encode(e); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	var got []Event
	for {
		var e Event
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got = append(got, e)
	}

	if len(got) != len(want) {
		t.Fatalf("decoded %d events, want %d", len(got), len(want))
	}
	if !got[0].Timestamp.Equal(want[0].Timestamp) {
		t.Errorf("Timestamp = %v, want %v (nanoseconds must survive)", got[0].Timestamp, want[0].Timestamp)
	}
	if got[0].RemoteAddr != "192.168.0.1:5609" || got[0].DeviceID != "0a1b2c" || got[0].CallID != "c-1" {
		t.Errorf("request header = %+v", got[0])
	}

	resp := got[1].Message
	if resp == nil || resp.Type != MessageTypeResponse || resp.Command != "configure-ap" {
		t.Fatalf("response message = %+v", resp)
	}
	if resp.ResultCode == nil || *resp.ResultCode != 0 {
		t.Errorf("ResultCode = %v, want 0", resp.ResultCode)
	}
	if resp.Duration == nil || *resp.Duration != 340*time.Millisecond {
		t.Errorf("Duration = %v", resp.Duration)
	}
}

func TestDecodedPayloadIsJSONEncodable(t *testing.T) {
	data, err := EncodeEvent(configureExchange()[0])
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	out, err := json.Marshal(event.Message.Payload)
	if err != nil {
		t.Fatalf("payload not JSON-encodable: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(out, &body); err != nil {
		t.Fatalf("payload JSON %s: %v", out, err)
	}
	if body["pwd"] != "[sealed]" || body["ssid"] != "home" {
		t.Errorf("payload JSON = %s", out)
	}
}

func TestErrorEventSurvivesEncoding(t *testing.T) {
	code := -1
	in := ErrorEventData{Layer: LayerWire, Message: "device returned -1", Code: &code, Context: "set", Kind: "result_code"}

	data, err := EncodeEvent(Event{Timestamp: time.Now(), Category: CategoryError, Error: &in})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if out.Error == nil || out.Error.Message != in.Message || out.Error.Kind != in.Kind || out.Error.Context != "set" {
		t.Fatalf("Error = %+v", out.Error)
	}
	if out.Error.Code == nil || *out.Error.Code != -1 {
		t.Errorf("Code = %v, want -1", out.Error.Code)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{Timestamp: time.Now(), ConnectionID: "conn-123", Layer: LayerTransport})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	var byInt map[uint64]any
	if err := captureDec.Unmarshal(data, &byInt); err != nil {
		t.Fatalf("decode as integer-keyed map: %v", err)
	}
	for key := uint64(1); key <= 5; key++ {
		if _, ok := byInt[key]; !ok {
			t.Errorf("integer key %d missing", key)
		}
	}

	var byString map[string]any
	if err := captureDec.Unmarshal(data, &byString); err == nil && len(byString) > 0 {
		t.Error("encoded event has string keys")
	}
}
