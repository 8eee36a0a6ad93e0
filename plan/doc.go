// Package plan is the translation plan shared by the source and
// instruction emitters.
//
// A TypePlan holds the ordered one-time resolution program (Resolve and
// CellInit statics) and, per member, the expression reading the managed
// value and the statement writing it back. Both emitters walk the same
// plan, so the decision tree is taken exactly once.
package plan
