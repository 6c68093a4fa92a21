// Package registry is the central "glue" for the procedure system.
//
// A procedure is data plus one function: a Definition declares the tunable
// arguments (name, primitive type, documentation, optional restriction), the
// hardware capabilities the execution routine needs, and the Go function
// implementing the calibration logic. Register validates all of it up front,
// so a malformed procedure can never enter the registry and surface its
// problem mid-calibration.
package registry
