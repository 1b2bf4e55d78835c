// Package service orchestrates passkey registration, login, and sessions.
package service
