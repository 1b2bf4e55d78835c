// Package session manages server-side login sessions.
package session
