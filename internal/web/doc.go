// Package web exposes the auth service over HTTP with JSON bodies.
package web
