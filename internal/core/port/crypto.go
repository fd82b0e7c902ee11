package port

// PasswordPolicyValidator enforces password composition requirements.
type PasswordPolicyValidator interface {
	Validate(password string) error
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
// It covers both passwords and security-question answers.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
}
