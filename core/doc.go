// Package core implements the engine-agnostic actor abstraction used by the
// relay benchmarks.
//
// The boundary between the workload and a concurrency engine is the triple
// Message, Address.Send and Handler.Handle. Chain building and the relay
// workload only talk to those, so any Engine that can spawn actors behind an
// Address can be measured with the same code.
package core
