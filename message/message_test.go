package message

import (
	"encoding/json"
	"errors"
	"testing"
)

type AddArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func TestCallCarriesArgs(t *testing.T) {
	args, err := NewArgs(&AddArgs{A: 1, B: 2}, "label")
	if err != nil {
		t.Fatalf("NewArgs failed: %v", err)
	}

	msg := NewCall(7, "ArithService.Add", args)
	if msg.Type != KindCall || msg.ID != 7 {
		t.Fatalf("unexpected call header: %+v", msg)
	}

	got, err := msg.Args()
	if err != nil {
		t.Fatalf("Args failed: %v", err)
	}

	var add AddArgs
	var label string
	if err := got.Bind(&add, &label); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if add.A != 1 || add.B != 2 || label != "label" {
		t.Fatalf("unexpected bound args: %+v %q", add, label)
	}
}

func TestBindSkipsMissingAndNil(t *testing.T) {
	args, _ := NewArgs(1)
	var a, b int
	b = 9
	if err := args.Bind(nil, &b); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if b != 9 {
		t.Fatalf("missing argument must leave destination untouched, got %d", b)
	}
	if err := args.Bind(&a); err != nil || a != 1 {
		t.Fatalf("expect 1, got %d (%v)", a, err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		msg   *Message
		valid bool
	}{
		{"nil", nil, false},
		{"call", NewCall(0, "ping", nil), true},
		{"call without name", &Message{Type: KindCall}, false},
		{"call with object data", &Message{Type: KindCall, Name: "ping", Data: json.RawMessage(`{}`)}, false},
		{"response", NewResponse(1, "ping", json.RawMessage(`"pong"`)), true},
		{"empty response", &Message{Type: KindResponse, ID: 1}, true},
		{"error", NewError(1, "ping", `{"message":"boom"}`), true},
		{"connect", NewConnect(), true},
		{"unknown", &Message{Type: "hello"}, false},
		{"missing type", &Message{ID: 3}, false},
	}

	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.valid && err != nil {
			t.Errorf("%s: expect valid, got %v", tc.name, err)
		}
		if !tc.valid {
			if err == nil {
				t.Errorf("%s: expect invalid", tc.name)
			} else if !errors.Is(err, ErrInvalid) {
				t.Errorf("%s: expect ErrInvalid, got %v", tc.name, err)
			}
		}
	}
}

func TestWireShape(t *testing.T) {
	b, err := json.Marshal(NewConnect())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"connect"}` {
		t.Fatalf("unexpected connect shape: %s", b)
	}

	b, err = json.Marshal(NewError(3, "ping", `{"message":"boom"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"error","id":3,"name":"ping","errorPayload":"{\"message\":\"boom\"}"}` {
		t.Fatalf("unexpected error shape: %s", b)
	}
}
