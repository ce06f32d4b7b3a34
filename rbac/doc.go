// Package rbac evaluates role-based authorization decisions.
//
// Two roles exist, [RoleMember] and [RoleAdmin]. The policy table is static:
// a small set of account-administration actions is reserved to admins and
// every other action is open to any authenticated role. Restricted actions
// are mapped to bit positions and each role carries a fixed 64-bit grant
// mask, so [Authorize] is a map lookup plus a bit test.
//
// # What this package must NOT do
//
//   - Perform I/O or consult account state.
//   - Enforce the self-action guard; that lives in the account store.
//   - Import any other warden package.
package rbac
