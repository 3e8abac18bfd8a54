// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleRecord struct {
	Sequence  uint64 `cbor:"seq"`
	Direction string `cbor:"dir"`
	Payload   []byte `cbor:"payload,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	t.Parallel()
	original := sampleRecord{Sequence: 7, Direction: "in", Payload: []byte(`[{"success":true}]`)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Sequence != original.Sequence || decoded.Direction != original.Direction {
		t.Errorf("got %+v, want %+v", decoded, original)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("payload: got %q, want %q", decoded.Payload, original.Payload)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()
	value := map[string]any{"b": 2, "a": 1, "c": []int{1, 2}}
	first, err := Marshal(value)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	t.Parallel()
	records := []sampleRecord{
		{Sequence: 1, Direction: "out", Payload: []byte("exit")},
		{Sequence: 2, Direction: "in"},
		{Sequence: 3, Direction: "in", Payload: []byte(`{"change":"focus"}`)},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for index, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", index, err)
		}
		if got.Sequence != want.Sequence || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("record %d: got %+v, want %+v", index, got, want)
		}
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	t.Parallel()
	data, err := Marshal(map[string]any{"change": "focus"})
	if err != nil {
		t.Fatal(err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded %T, want map[string]any", decoded)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	t.Parallel()
	var record sampleRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	t.Parallel()
	data, err := Marshal(sampleRecord{Sequence: 1, Direction: "out"})
	if err != nil {
		t.Fatal(err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"dir"`) || !strings.Contains(notation, `"out"`) {
		t.Errorf("notation %q missing dir field", notation)
	}
}
