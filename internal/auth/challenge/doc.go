// Package challenge issues and consumes single-use ceremony challenges.
package challenge
