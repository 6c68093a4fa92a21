// Package cli translates command-line arguments into an app.Config. It owns
// flag parsing, usage text and exit-code policy, and nothing else.
package cli
