// Package app contains the application wiring. It defines the main App
// struct, its configuration, and the load-construct-render lifecycle,
// decoupled from any specific entrypoint like a CLI.
package app
