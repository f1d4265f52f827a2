// Package permission provides the static role/permission table and the
// stateless evaluator used for client-side gating.
//
// # Hierarchy
//
// Roles are ranked viewer < editor < admin and permissions are cumulative up
// the hierarchy: every permission granted to a role is granted to every
// higher-ranked role. [Table.VerifyHierarchy] asserts this as a checkable
// property rather than trusting construction.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Client-side
// checks are advisory UX gating only — the server re-evaluates every
// operation and is the authority.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import api, session, or the root package.
//   - Mutate a table after [Table.Freeze].
package permission
