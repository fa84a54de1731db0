package domain

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Password rule names, in evaluation order.
const (
	RuleMinLength = "min"
	RuleMaxLength = "max"
	RuleLowercase = "lowercase"
	RuleUppercase = "uppercase"
	RuleSpecial   = "special"
)

// PasswordPolicy is a set of named password rules. A zero count disables the
// corresponding character-class rule.
//
// The lowercase and uppercase rules are off by default. Whether the service
// should require them is unresolved, so they stay opt-in.
type PasswordPolicy struct {
	MinLength    int
	MaxLength    int
	MinLowercase int
	MinUppercase int
	MinSpecial   int
}

// DefaultPasswordPolicy: 5-24 characters, at least one special character.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:  5,
		MaxLength:  24,
		MinSpecial: 1,
	}
}

// PasswordRuleError names the first rule a password violated.
type PasswordRuleError struct {
	Rule    string
	Message string
}

func (e *PasswordRuleError) Error() string { return e.Message }

// Check evaluates the enabled rules in order and returns the first violation,
// or nil when the password satisfies the policy.
func (p PasswordPolicy) Check(password string) *PasswordRuleError {
	length := utf8.RuneCountInString(password)
	if p.MinLength > 0 && length < p.MinLength {
		return &PasswordRuleError{RuleMinLength, fmt.Sprintf("password should contain at least %d characters", p.MinLength)}
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return &PasswordRuleError{RuleMaxLength, fmt.Sprintf("password should contain at most %d characters", p.MaxLength)}
	}

	var lower, upper, special int
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower++
		case unicode.IsUpper(r):
			upper++
		}
		if !isAlphanumeric(r) {
			special++
		}
	}

	if p.MinLowercase > 0 && lower < p.MinLowercase {
		return &PasswordRuleError{RuleLowercase, fmt.Sprintf("password should contain at least %d lowercase character", p.MinLowercase)}
	}
	if p.MinUppercase > 0 && upper < p.MinUppercase {
		return &PasswordRuleError{RuleUppercase, fmt.Sprintf("password should contain at least %d uppercase character", p.MinUppercase)}
	}
	if p.MinSpecial > 0 && special < p.MinSpecial {
		return &PasswordRuleError{RuleSpecial, fmt.Sprintf("password should contain at least %d special character", p.MinSpecial)}
	}
	return nil
}

// isAlphanumeric matches [a-zA-Z0-9]; everything else counts as special.
func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
