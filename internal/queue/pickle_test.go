package queue

import (
	"bytes"
	"testing"
)

func TestDumpsProtocolHeader(t *testing.T) {
	b, err := Dumps(nil)
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != opProto || b[1] != 2 {
		t.Fatalf("expected protocol-2 header, got % x", b[:2])
	}
	if b[len(b)-1] != opStop {
		t.Fatalf("expected stream to end with STOP, got %x", b[len(b)-1])
	}
}

func TestDumpsScalarTypes(t *testing.T) {
	cases := []interface{}{nil, true, false, 42, "hello"}
	for _, v := range cases {
		if _, err := Dumps(v); err != nil {
			t.Fatalf("Dumps(%#v) failed: %v", v, err)
		}
	}
}

func TestDumpsCeleryEnvelopeShape(t *testing.T) {
	envelope := Tuple{
		Tuple{map[string]interface{}{"ticketId": "DCU1"}},
		map[string]interface{}{},
		map[string]interface{}{"callbacks": nil, "errbacks": nil, "chain": nil, "chord": nil},
	}
	b, err := Dumps(envelope)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("ticketId")) {
		t.Fatal("expected pickled envelope to contain the ticketId key")
	}
	if !bytes.Contains(b, []byte("DCU1")) {
		t.Fatal("expected pickled envelope to contain the ticketId value")
	}
}

func TestDumpsUnsupportedType(t *testing.T) {
	type notPickleable struct{}
	if _, err := Dumps(notPickleable{}); err == nil {
		t.Fatal("expected an error for an unsupported type")
	}
}
