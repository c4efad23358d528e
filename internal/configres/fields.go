package configres

import "math"

// fieldKind distinguishes how a known field merges across scopes.
type fieldKind int

const (
	kindScalar fieldKind = iota
	kindMap
	kindArray
)

// fieldSpec declares the merge kind and validation rule for one known field.
// A nil validate accepts any value of the right shape.
type fieldSpec struct {
	kind     fieldKind
	required bool
	validate func(any) bool
}

// knownFields is the closed schema for effective configuration. Fields present
// in a scope but absent here are dropped during resolution.
var knownFields = map[string]fieldSpec{
	"route":           {kind: kindScalar, required: true, validate: nonEmptyString},
	"ttlSec":          {kind: kindScalar, validate: positiveInt},
	"maxBidMicros":    {kind: kindScalar, validate: nonNegativeInt},
	"trafficPercent":  {kind: kindScalar, validate: percent},
	"allowFallback":   {kind: kindScalar, validate: isBool},
	"adapterVersions": {kind: kindMap, validate: nonEmptyString},
	"experimentTags":  {kind: kindArray},
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

// asInteger accepts the numeric shapes JSON decoding can produce.
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func positiveInt(v any) bool {
	n, ok := asInteger(v)
	return ok && n > 0
}

func nonNegativeInt(v any) bool {
	n, ok := asInteger(v)
	return ok && n >= 0
}

func percent(v any) bool {
	n, ok := asInteger(v)
	return ok && n >= 0 && n <= 100
}
