package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

// Tokens scoring below this zxcvbn score (0..4) are refused at startup.
const weakTokenScoreThreshold = 3

// IsWeakToken reports whether the admin token is too guessable to protect
// the API. An empty token means auth is disabled outright, which is a
// deliberate deployment choice rather than a weak secret.
func IsWeakToken(token string) bool {
	if token == "" {
		return false
	}
	return zxcvbn.PasswordStrength(token, nil).Score < weakTokenScoreThreshold
}
