// Package bench wires configuration, engines and relay chains together for
// an external benchmark driver such as testing.B. It owns no timing or
// statistics: a driver asks a Session for the chain of a Case once, then
// calls Chain.Relay per iteration.
package bench
