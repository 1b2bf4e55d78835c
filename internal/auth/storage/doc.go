// Package storage defines the persistence contracts for auth data.
package storage
