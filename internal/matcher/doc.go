// Package matcher proposes which source column feeds each target field.
//
// Key functions:
//   - Suggest: deterministic auto-mapping of fields onto headers
//   - Merge: combine an auto-suggestion with the user's manual choices
//   - Unmapped: list fields still lacking a column
//
// Matching is case-insensitive (Unicode case folding). For each field, in
// declaration order:
//  1. a header equal to the field name wins;
//  2. otherwise the first header (in header order) that contains the field
//     name, or is contained in it;
//  3. otherwise the first header containing one of the field's keywords;
//  4. otherwise the field stays unmapped.
//
// Ties always go to the earliest header. This is deterministic, not optimal.
package matcher
