// Package user provides auth user management.
package user
