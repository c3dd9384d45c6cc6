// Package filelock provides the exclusive lock that guards every
// read-modify-write of a shared JSON document.
//
// A Lock pairs an in-process mutex with an OS advisory lock (flock) on a
// dedicated marker file. The mutex serializes goroutines that share the Lock
// value; the flock serializes separate processes. Callers hold the lock for
// exactly one read, mutate, write cycle via With.
package filelock
