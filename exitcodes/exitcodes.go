// Package exitcodes defines the standard exit codes used by kecc-acceptor.
package exitcodes

// Exit code constants used by kecc-acceptor
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every (test, target) pair passes
// * TestFailure (1): Used when one or more pairs fail, or the environment is
//   unusable (compiler or toolchain missing, no tests discovered)
// * RuntimeErr (2): Used for internal errors such as panics
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures or fatal environment errors
	RuntimeErr  = 2 // Internal runtime errors
)
