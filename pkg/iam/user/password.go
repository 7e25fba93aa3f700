package user

import (
	"fmt"
	"unicode"
)

// PasswordRule checks one requirement and returns a short violation message.
type PasswordRule func(password string) (violation string, ok bool)

// PasswordPolicy is the fixed ruleset every new password must satisfy.
var PasswordPolicy = []PasswordRule{
	minLength(8),
	requireClass("one uppercase letter", unicode.IsUpper),
	requireClass("one lowercase letter", unicode.IsLower),
	requireClass("one number", unicode.IsDigit),
	requireClass("one special character", func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}),
}

// ValidatePassword applies PasswordPolicy and reports every violation at once.
func ValidatePassword(password string) error {
	var violations []string
	for _, rule := range PasswordPolicy {
		if msg, ok := rule(password); !ok {
			violations = append(violations, msg)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return ErrRegistry.New(CodeWeakPassword).WithDetail("password", violations)
}

func minLength(n int) PasswordRule {
	return func(password string) (string, bool) {
		return fmt.Sprintf("must be at least %d characters", n), len([]rune(password)) >= n
	}
}

func requireClass(name string, match func(rune) bool) PasswordRule {
	return func(password string) (string, bool) {
		for _, r := range password {
			if match(r) {
				return "", true
			}
		}
		return "must contain at least " + name, false
	}
}
