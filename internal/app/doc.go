// Package app contains the application wiring. It defines the main App
// struct, its configuration, and the run lifecycle (registry population,
// session open/create, hardware binding and plan execution), decoupled from
// any specific entrypoint like the CLI or a GUI.
package app
