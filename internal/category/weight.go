package category

// Neutral is the weight used when category weighting is disabled
const Neutral = 1.0

// Weight returns the multiplier for a candidate whose canonical category is
// candidate ("" when unknown), given the categories inferred from the query.
// Rules are applied in order and the first match wins:
//
//	candidate in inferred                   -> exact
//	candidate related to any inferred       -> related
//	inferred empty and candidate unknown    -> related
//	otherwise                               -> mismatch
//
// The third rule lets an uncategorized record keep a mild boost for queries
// that carry no category signal.
func (t *Table) Weight(inferred Set, candidate string) float64 {
	if candidate != "" {
		if inferred.Has(candidate) {
			return t.tiers.Exact
		}
		for _, n := range inferred.names {
			if t.Related(candidate, n) {
				return t.tiers.Related
			}
		}
	}
	if inferred.Empty() && candidate == "" {
		return t.tiers.Related
	}
	return t.tiers.Mismatch
}
