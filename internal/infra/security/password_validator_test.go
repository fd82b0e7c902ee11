package security

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultPasswordValidatorAccepts(t *testing.T) {
	validator := DefaultPasswordValidator()

	for _, password := range []string{
		"Abcdef1!",
		"Str0ngPassw0rd#",
		"xY9$" + "aaaa",
	} {
		if err := validator.Validate(password); err != nil {
			t.Fatalf("expected %q to pass: %v", password, err)
		}
	}
}

func TestDefaultPasswordValidatorRejects(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
	}{
		{name: "too short", password: "Ab1!x"},
		{name: "too long", password: "Aa1!" + strings.Repeat("x", 60)},
		{name: "no uppercase", password: "abcdef1!"},
		{name: "no lowercase", password: "ABCDEF1!"},
		{name: "no digit", password: "Abcdefg!"},
		{name: "no special", password: "Abcdefg1"},
		{name: "special outside set", password: "Abcdef1?"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validator.Validate(tc.password); err == nil {
				t.Fatalf("expected %q to be rejected", tc.password)
			}
		})
	}
}

func TestValidationErrorCarriesCode(t *testing.T) {
	validator := NewPasswordValidator(LengthRule(8, 50))

	err := validator.Validate("short")
	if err == nil {
		t.Fatal("expected length violation")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected PasswordValidationError, got %T", err)
	}
	if verr.Code == "" {
		t.Fatal("expected a non-empty violation code")
	}
}

func TestStrengthRuleDisabledAtZero(t *testing.T) {
	validator := PasswordValidatorWithStrength(0)

	// Weak but policy-conforming; the zxcvbn gate is off.
	if err := validator.Validate("Password1!"); err != nil {
		t.Fatalf("expected strength rule to be disabled: %v", err)
	}
}
