// Package overrides merges same-key data contributions from multiple mods
// using load-order precedence: scalar keys are replaced by the latest
// contributor, append keys are concatenated across contributors.
package overrides

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Contribution is one mod's data contribution, split by merge semantics.
type Contribution struct {
	// Overrides replace earlier values for the same key.
	Overrides map[string]cty.Value
	// Appends concatenate onto earlier values for the same key.
	Appends map[string]cty.Value
}

// Values is the merged, read-only result of a resolution pass.
type Values struct {
	values map[string]cty.Value
}

// Merge folds per-mod contributions in load order. For scalar keys the
// contribution from the latest mod wins; for append keys contributions from
// all mods are concatenated in load order. contributions is keyed by mod id
// and may omit mods with no data.
func Merge(loadOrder []string, contributions map[string]Contribution) *Values {
	merged := make(map[string]cty.Value)
	appended := make(map[string][]cty.Value)

	for _, id := range loadOrder {
		contrib, ok := contributions[id]
		if !ok {
			continue
		}
		for _, key := range sortedKeys(contrib.Overrides) {
			merged[key] = contrib.Overrides[key]
		}
		for _, key := range sortedKeys(contrib.Appends) {
			appended[key] = append(appended[key], elementsOf(contrib.Appends[key])...)
		}
	}

	for key, elems := range appended {
		merged[key] = cty.TupleVal(elems)
	}
	return &Values{values: merged}
}

// elementsOf flattens a contribution value for appending: collections
// contribute their elements, scalars contribute themselves.
func elementsOf(v cty.Value) []cty.Value {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		var elems []cty.Value
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elems = append(elems, ev)
		}
		return elems
	}
	return []cty.Value{v}
}

// Get returns the merged value for key.
func (v *Values) Get(key string) (cty.Value, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Keys returns every merged key in deterministic order.
func (v *Values) Keys() []string {
	return sortedKeys(v.values)
}

// Len returns the number of merged keys.
func (v *Values) Len() int {
	return len(v.values)
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
