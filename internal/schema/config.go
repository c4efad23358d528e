package schema

// ScopeName identifies one of the three configuration layers.
type ScopeName string

const (
	// ScopeGlobal is the lowest-precedence layer.
	ScopeGlobal ScopeName = "global"
	// ScopeApp overrides global.
	ScopeApp ScopeName = "app"
	// ScopePlacement overrides app and global.
	ScopePlacement ScopeName = "placement"
)

// ConfigScope is one immutable configuration layer supplied per resolution call.
type ConfigScope struct {
	ConfigVersion string         `json:"configVersion"`
	SchemaVersion string         `json:"schemaVersion"`
	Config        map[string]any `json:"config"`
}

// FieldProvenance records which scope and version contributed one effective
// field value. Map-typed fields carry per-key entries ("map.key").
type FieldProvenance struct {
	FieldPath     string    `json:"fieldPath"`
	WinnerScope   ScopeName `json:"winnerScope"`
	WinnerVersion string    `json:"winnerVersion"`
}

// ConfigSnapshot is the provenance-annotated result of one resolution.
// Identical inputs always produce a structurally identical snapshot.
type ConfigSnapshot struct {
	ResolutionStatus ResolutionStatus  `json:"resolutionStatus"`
	EffectiveConfig  map[string]any    `json:"effectiveConfig"`
	FieldProvenance  []FieldProvenance `json:"fieldProvenance"`
	ReasonCodes      []ReasonCode      `json:"reasonCodes"`
}
