// Package app assembles the auth service and runs its HTTP server.
package app
