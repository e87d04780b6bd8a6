//go:build race

package identity

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Lower cost under the race detector.
	return bcrypt.DefaultCost
}
