// Package auth provides authentication and authorisation for Customo Core.
//
// Accounts are identified by e-mail address and carry one of three roles
// (CUSTOMER → TECHNICIAN → ADMIN, each a superset of the one before).
//
//   - bcrypt password hashing
//   - stateless HS256 bearer tokens carrying sub, email and role, bound to a
//     configured issuer and audience
//   - a static permission table keyed by minimum role
//
// Tokens are not persisted; an inactive account is rejected on every
// request by Service.Authenticate, which re-reads the user row.
package auth
