package security

const (
	// MinPasswordLength and MaxPasswordLength bound every stored password.
	MinPasswordLength = 8
	MaxPasswordLength = 50

	// SpecialCharacterSet is the accepted special-character alphabet.
	SpecialCharacterSet = "!@#$%^&*"
)

// DefaultPasswordValidator returns the built-in validator enforcing the service
// composition policy: length bounds plus one uppercase, one lowercase, one digit
// and one special character.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		LengthRule(MinPasswordLength, MaxPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSpecialRule(SpecialCharacterSet),
	)
}

// PasswordValidatorWithStrength extends the composition policy with a zxcvbn
// minimum-score check seeded with contextual user inputs.
func PasswordValidatorWithStrength(minScore int, userInputs ...string) *PasswordValidator {
	return NewPasswordValidator(
		LengthRule(MinPasswordLength, MaxPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSpecialRule(SpecialCharacterSet),
		RequirePasswordStrengthRule(minScore, userInputs...),
	)
}
