// Package configres merges the three configuration scopes into one effective,
// provenance-annotated snapshot. Resolution is a pure function of its inputs:
// identical scopes and context always produce a structurally identical
// snapshot, which is what lets downstream stages pin a version anchor to it.
package configres

import (
	"sort"
	"time"

	"github.com/adverge/pipeline/internal/schema"
)

// Context carries the caller-supplied resolution inputs. ResolveAt is the only
// clock the resolver ever sees.
type Context struct {
	AppID                  string    `json:"appId,omitempty"`
	PlacementID            string    `json:"placementId,omitempty"`
	Environment            string    `json:"environment,omitempty"`
	SchemaVersion          string    `json:"schemaVersion,omitempty"`
	ResolveAt              time.Time `json:"resolveAt"`
	ContractVersion        string    `json:"configResolutionContractVersion,omitempty"`
	RoutingStrategyVersion string    `json:"routingStrategyVersion,omitempty"`
}

// layer pairs a scope with its precedence position, highest first.
type layer struct {
	name  schema.ScopeName
	scope *schema.ConfigScope
}

// Resolve merges global, app, and placement scopes with precedence
// placement > app > global. A missing global scope fails closed.
func Resolve(global, app, placement *schema.ConfigScope, _ Context) schema.ConfigSnapshot {
	if global == nil {
		return schema.ConfigSnapshot{
			ResolutionStatus: schema.StatusRejected,
			EffectiveConfig:  map[string]any{},
			FieldProvenance:  []schema.FieldProvenance{},
			ReasonCodes:      []schema.ReasonCode{schema.ReasonGlobalUnavailableFailClosed},
		}
	}

	layers := []layer{
		{schema.ScopePlacement, placement},
		{schema.ScopeApp, app},
		{schema.ScopeGlobal, global},
	}

	reasons := newReasonSet()
	status := schema.StatusResolved
	effective := make(map[string]any)
	provenance := make([]schema.FieldProvenance, 0, len(knownFields))

	for _, l := range layers {
		if l.scope == nil {
			continue
		}
		for key := range l.scope.Config {
			if _, known := knownFields[key]; !known {
				reasons.add(schema.ReasonUnknownFieldDropped)
			}
		}
	}

	for _, name := range sortedFieldNames() {
		spec := knownFields[name]
		var fieldStatus schema.ResolutionStatus
		switch spec.kind {
		case kindMap:
			fieldStatus = mergeMapField(name, spec, layers, effective, &provenance, reasons)
		default:
			fieldStatus = mergeWholeField(name, spec, layers, effective, &provenance, reasons)
		}
		status = status.Downgrade(fieldStatus)

		if spec.required {
			if _, present := effective[name]; !present {
				reasons.add(schema.ReasonMissingRequiredAfterMerge)
				status = schema.StatusRejected
			}
		}
	}

	sort.Slice(provenance, func(i, j int) bool {
		return provenance[i].FieldPath < provenance[j].FieldPath
	})

	if status == schema.StatusRejected {
		effective = map[string]any{}
		provenance = []schema.FieldProvenance{}
	}

	return schema.ConfigSnapshot{
		ResolutionStatus: status,
		EffectiveConfig:  effective,
		FieldProvenance:  provenance,
		ReasonCodes:      reasons.sorted(),
	}
}

// mergeWholeField resolves a scalar or array field: the highest-priority scope
// defining the field wins outright. An explicit null forces the field absent.
// An invalid winning value falls through to the next-lower scope and degrades
// the resolution.
func mergeWholeField(name string, spec fieldSpec, layers []layer, effective map[string]any, provenance *[]schema.FieldProvenance, reasons *reasonSet) schema.ResolutionStatus {
	status := schema.StatusResolved
	for _, l := range layers {
		if l.scope == nil {
			continue
		}
		value, defined := l.scope.Config[name]
		if !defined {
			continue
		}
		if value == nil {
			return status
		}
		if !validWhole(spec, value) {
			reasons.add(schema.ReasonInvalidRange)
			status = schema.StatusDegraded
			continue
		}
		effective[name] = value
		*provenance = append(*provenance, schema.FieldProvenance{
			FieldPath:     name,
			WinnerScope:   l.name,
			WinnerVersion: l.scope.ConfigVersion,
		})
		return status
	}
	return status
}

// mergeMapField resolves a map-typed field as a per-key union: each key's
// value comes from the highest-priority scope defining that key, with
// provenance recorded per key.
func mergeMapField(name string, spec fieldSpec, layers []layer, effective map[string]any, provenance *[]schema.FieldProvenance, reasons *reasonSet) schema.ResolutionStatus {
	status := schema.StatusResolved
	merged := make(map[string]any)
	keys := make(map[string]struct{})

	for _, l := range layers {
		if l.scope == nil {
			continue
		}
		value, defined := l.scope.Config[name]
		if !defined {
			continue
		}
		if value == nil {
			// Explicit null masks every lower scope. Keys already collected
			// from higher scopes survive; when the null sits on the highest
			// defining scope the field comes out absent.
			break
		}
		m, ok := value.(map[string]any)
		if !ok {
			reasons.add(schema.ReasonInvalidRange)
			status = schema.StatusDegraded
			continue
		}
		for k := range m {
			keys[k] = struct{}{}
		}
	}

	for key := range keys {
		for _, l := range layers {
			if l.scope == nil {
				continue
			}
			value, defined := l.scope.Config[name]
			if !defined {
				continue
			}
			if value == nil {
				// The null layer hides everything below it from the descent.
				break
			}
			m, ok := value.(map[string]any)
			if !ok {
				continue
			}
			entry, present := m[key]
			if !present {
				continue
			}
			if entry == nil {
				// Per-key null removes the key from the union.
				break
			}
			if spec.validate != nil && !spec.validate(entry) {
				reasons.add(schema.ReasonInvalidRange)
				status = schema.StatusDegraded
				continue
			}
			merged[key] = entry
			*provenance = append(*provenance, schema.FieldProvenance{
				FieldPath:     name + "." + key,
				WinnerScope:   l.name,
				WinnerVersion: l.scope.ConfigVersion,
			})
			break
		}
	}

	if len(merged) > 0 {
		effective[name] = merged
	}
	return status
}

// validWhole checks shape and, for scalars, the field's range rule.
func validWhole(spec fieldSpec, value any) bool {
	switch spec.kind {
	case kindArray:
		_, ok := value.([]any)
		if !ok {
			// Typed slices also count as arrays when callers build scopes in Go.
			if _, typed := value.([]string); typed {
				return true
			}
			return false
		}
		return true
	default:
		if spec.validate == nil {
			return true
		}
		return spec.validate(value)
	}
}

func sortedFieldNames() []string {
	names := make([]string, 0, len(knownFields))
	for name := range knownFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reasonSet accumulates unique reason codes with deterministic output order.
type reasonSet struct {
	seen map[schema.ReasonCode]struct{}
}

func newReasonSet() *reasonSet {
	return &reasonSet{seen: make(map[schema.ReasonCode]struct{})}
}

func (r *reasonSet) add(code schema.ReasonCode) {
	r.seen[code] = struct{}{}
}

func (r *reasonSet) sorted() []schema.ReasonCode {
	out := make([]schema.ReasonCode, 0, len(r.seen))
	for code := range r.seen {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
