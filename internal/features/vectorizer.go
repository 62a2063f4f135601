package features

import (
	"hash/fnv"
	"time"

	"github.com/danielpatrickdp/synapse/internal/event"
)

// #region constants

// VectorSize is the fixed output dimensionality of the vectorizer.
const VectorSize = 20

// hashRange bounds hashed string features before scaling into [0, 1).
const hashRange = 1000

// #endregion constants

// #region vectorize

// Vectorize maps an event to a fixed-length numeric vector. It is a pure
// function of its input: missing fields encode as 0 and the result is always
// exactly VectorSize wide.
//
// Layout:
//
//	0     hashed namespaced type
//	1-3   hour, day-of-week, minute fractions
//	4-5   viewport-normalized position
//	6     value (numeric value, string length, or boolean as 0/1)
//	7     hashed element role
//	8-10  isButton / isInput / isLink flags
//	11    DOM path depth
//	12    text length
//	13-14 scrollX / scrollY
//	15    visible flag
//	16    hashed tag name
func Vectorize(ev event.TypedEvent) []float64 {
	vec := make([]float64, VectorSize)

	vec[0] = hashString(ev.Type)

	t := time.UnixMilli(ev.Timestamp).UTC()
	vec[1] = float64(t.Hour()) / 24
	vec[2] = float64(t.Weekday()) / 7
	vec[3] = float64(t.Minute()) / 60

	if p := ev.Payload.Position; p != nil {
		if p.ViewportWidth > 0 {
			vec[4] = p.X / p.ViewportWidth
		}
		if p.ViewportHeight > 0 {
			vec[5] = p.Y / p.ViewportHeight
		}
	}

	vec[6] = encodeValue(ev.Payload.Value)

	bag := ev.Payload.Features
	vec[7] = hashString(stringField(bag, "role"))
	vec[8] = boolField(bag, "isButton")
	vec[9] = boolField(bag, "isInput")
	vec[10] = boolField(bag, "isLink")
	vec[11] = numField(bag, "pathDepth")
	vec[12] = numField(bag, "textLength")
	vec[13] = numField(bag, "scrollX")
	vec[14] = numField(bag, "scrollY")
	vec[15] = boolField(bag, "visible")
	vec[16] = hashString(stringField(bag, "tag"))

	return vec
}

// VectorizeAll maps a batch of events.
func VectorizeAll(events []event.TypedEvent) [][]float64 {
	out := make([][]float64, len(events))
	for i, ev := range events {
		out[i] = Vectorize(ev)
	}
	return out
}

// #endregion vectorize

// #region encoders

// encodeValue turns the free-typed value payload into a number: numbers pass
// through, strings encode as their length, booleans as 0/1.
func encodeValue(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return float64(len(x))
	default:
		return asFloat(v)
	}
}

func hashString(s string) float64 {
	if s == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(s))
	return float64(h.Sum32()%hashRange) / hashRange
}

func stringField(bag map[string]any, key string) string {
	if bag == nil {
		return ""
	}
	s, _ := bag[key].(string)
	return s
}

func boolField(bag map[string]any, key string) float64 {
	if bag == nil {
		return 0
	}
	if b, ok := bag[key].(bool); ok && b {
		return 1
	}
	return 0
}

func numField(bag map[string]any, key string) float64 {
	if bag == nil {
		return 0
	}
	return asFloat(bag[key])
}

// asFloat coerces the numeric types JSON decoding can produce; anything else
// is 0.
func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

// #endregion encoders
