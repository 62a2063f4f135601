package features

import (
	"testing"

	"github.com/danielpatrickdp/synapse/internal/event"
)

func TestVectorizeFixedSize(t *testing.T) {
	vec := Vectorize(event.TypedEvent{})
	if len(vec) != VectorSize {
		t.Fatalf("expected %d dimensions, got %d", VectorSize, len(vec))
	}
}

func TestVectorizeMissingFieldsEncodeAsZero(t *testing.T) {
	vec := Vectorize(event.TypedEvent{Type: "user_action.click"})

	// Position, value, and the entire feature bag are absent.
	for _, i := range []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16} {
		if vec[i] != 0 {
			t.Fatalf("dimension %d should be 0 for missing input, got %f", i, vec[i])
		}
	}
	if vec[0] == 0 {
		t.Fatal("type hash should be non-zero for a non-empty type")
	}
}

func TestVectorizeIsDeterministic(t *testing.T) {
	ev := event.TypedEvent{
		Timestamp: 1700000000000,
		Type:      "user_action.click",
		Payload: event.Payload{
			TargetSelector: "#submit",
			Value:          "hello",
			Position:       &event.Position{X: 100, Y: 50, ViewportWidth: 1000, ViewportHeight: 500},
			Features: map[string]any{
				"role": "button", "isButton": true, "pathDepth": 4.0,
				"textLength": 6.0, "visible": true, "tag": "button",
			},
		},
	}

	a := Vectorize(ev)
	b := Vectorize(ev)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("dimension %d not deterministic: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestVectorizePositionAndFlags(t *testing.T) {
	ev := event.TypedEvent{
		Type: "user_action.click",
		Payload: event.Payload{
			Position: &event.Position{X: 250, Y: 100, ViewportWidth: 1000, ViewportHeight: 400},
			Features: map[string]any{"isButton": true, "isLink": false, "visible": true},
		},
	}
	vec := Vectorize(ev)

	if vec[4] != 0.25 {
		t.Fatalf("expected x fraction 0.25, got %f", vec[4])
	}
	if vec[5] != 0.25 {
		t.Fatalf("expected y fraction 0.25, got %f", vec[5])
	}
	if vec[8] != 1 {
		t.Fatalf("isButton should encode as 1, got %f", vec[8])
	}
	if vec[10] != 0 {
		t.Fatalf("isLink false should encode as 0, got %f", vec[10])
	}
	if vec[15] != 1 {
		t.Fatalf("visible should encode as 1, got %f", vec[15])
	}
}

func TestVectorizeValueEncoding(t *testing.T) {
	str := Vectorize(event.TypedEvent{Payload: event.Payload{Value: "abcde"}})
	if str[6] != 5 {
		t.Fatalf("string value should encode as length, got %f", str[6])
	}
	num := Vectorize(event.TypedEvent{Payload: event.Payload{Value: 42.0}})
	if num[6] != 42 {
		t.Fatalf("numeric value should pass through, got %f", num[6])
	}
	b := Vectorize(event.TypedEvent{Payload: event.Payload{Value: true}})
	if b[6] != 1 {
		t.Fatalf("boolean value should encode as 1, got %f", b[6])
	}
}

func TestVectorizeAll(t *testing.T) {
	events := []event.TypedEvent{{Type: "a"}, {Type: "b"}, {Type: "c"}}
	out := VectorizeAll(events)
	if len(out) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(out))
	}
	for i, v := range out {
		if len(v) != VectorSize {
			t.Fatalf("vector %d has %d dims", i, len(v))
		}
	}
}
