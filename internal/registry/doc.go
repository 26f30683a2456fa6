// Package registry implements the key registry: the model of principals,
// groups, and path-based access rules, plus the policy mutator that
// applies onboard/offboard changes transactionally.
//
// The registry is persisted as a single TOML artifact with a
// deterministic, diff-friendly layout (stable key ordering, one principal
// per line). Mutations are staged to a temporary file and atomically
// renamed into place while an advisory lock file is held, so unrelated
// readers see either the pre- or post-mutation state and never an
// intermediate one.
package registry
