// Package optimize tunes the building-validation decision thresholds
// against a labelled dataset.
//
// The search is multi-objective: automation (groups decided without
// human review), precision, and recall conflict, so the optimizer keeps
// a Pareto front of non-dominated threshold sets instead of a single
// winner. Proposals come from a pluggable Sampler (uniform random or
// evolutionary); evaluation of a proposal replays the group-level
// decision rule over prepared cluster samples.
//
// The workflow is decomposed into four independently resumable phases
// with file-based hand-off: prepare, optimize, evaluate, update. See
// phases.go.
package optimize
