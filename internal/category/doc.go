// Package category holds the category map: keyword lists per category,
// aliases for catalog labels, related-category adjacency and weight tiers.
//
// A Table is loaded once (the built-in default or a YAML file) and is then
// only read. Infer maps a query to the set of categories whose keywords it
// mentions. Weight turns that set and a candidate's category into one of
// three multipliers:
//
//	t := category.Default()
//	inferred := t.Infer("waterproof speaker")   // [audio]
//	w := t.Weight(inferred, t.Canonical("音響")) // 2.0
package category
