package profile

// Confidence grades how sure the extractor is about a value.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Update is one extracted field change proposal.
type Update struct {
	Field      Field
	Value      string
	Confidence Confidence
}

// Apply merges one update into the profile and reports whether a mutation
// occurred. The write rules form a small decision table:
//
//	collection, value new        → append, true
//	collection, value duplicate  → false
//	scalar, unset                → write, true
//	scalar, set, high confidence → overwrite, true
//	scalar, set, medium/low      → false
//	unknown field or empty value → false
//
// Completeness and missing priority are recomputed before Apply returns
// whenever a write happened, so derived state is never read stale.
func Apply(p *Profile, u Update) bool {
	if u.Field == "" || u.Value == "" {
		return false
	}
	spec, ok := registry[u.Field]
	if !ok {
		return false
	}

	if !spec.collection && spec.isSet(p) && u.Confidence != ConfidenceHigh {
		return false
	}

	if !spec.set(p, u.Value) {
		return false
	}

	p.touch()
	p.recompute()
	return true
}
