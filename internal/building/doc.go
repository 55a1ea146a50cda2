// Package building implements the decision engine that upgrades a
// rule-based geometric building classification of aerial point clouds
// with per-point deep-learning probabilities and a building-vector
// database overlay.
//
// The pipeline labels every point Confirmed, Refuted, or Unsure:
//
//  1. PointClassifier: tentative per-point decision from probability,
//     overlay flag, and thresholds (classifier.go).
//  2. ClusterEngine: connected-component clustering of candidate points
//     under an adjacency policy (spatial.go, cluster.go).
//  3. GroupDecisionEngine: one decision per cluster, propagated back to
//     every member (groups.go).
//  4. CompletionEngine: rescues isolated high-probability points into
//     neighbouring confirmed groups under a relaxed policy (completion.go).
//  5. IdentificationEngine: clusters confirmed points outside the
//     candidate mask as review-only discoveries (identification.go).
//
// Threshold tuning against a labelled dataset lives in the optimize
// subpackage. Persistence of runs, trials, and threshold records lives
// in storage/sqlite.
package building
