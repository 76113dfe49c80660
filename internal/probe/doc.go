// Package probe reports which external packaging tools are resolvable and
// which Linux distribution the host runs.
//
// All host access goes through the Platform interface so tests can describe
// an arbitrary machine with an in-memory filesystem. Probing never fails: a
// missing tool or an unidentified distribution is a normal result.
package probe
