// Package identity derives the portable claims embedded in issued tokens and
// provisions the baseline identity records a fresh deployment needs.
//
// Claims derivation:
//   - DefaultPrincipalFactory builds the base claims for a user straight from the
//     store (user id, user name and any stored user claims).
//   - ClaimsDeriver augments a base ClaimsSet: it guarantees a subject claim,
//     swaps the store's user name claim for preferred_username, defaults the
//     name claim, adds paired email/phone claims and fans out role memberships
//     into role claims plus every claim attached to each role.
//   - ComposedPrincipalFactory chains both so callers get the canonical claims
//     for a user in one call.
//
// Bootstrap:
//   - Seeder migrates the schema and then creates any missing roles, role claims,
//     users, user claims and role memberships declared in a SeedConfig. Existing
//     entities are never edited, so running it repeatedly converges to the same
//     state. The first store failure aborts the run.
//
// EnsureSeedDataHandler and DeriveClaimsQuery expose both flows as go-command
// handlers. Seed progress is reported to an ActivitySink; the activitymap
// sub-package flattens those events into actor/verb/object records.
//
// The repository sub-package provides the Bun backed IdentityStore and
// cmd/identity-seed wires everything into a command line bootstrapper.
package identity
