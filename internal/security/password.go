package security

import (
	"strings"
	"unicode"
)

// MaxPasswordScore is the top of the strength scale.
const MaxPasswordScore = 5

// commonPasswords is a small denylist of passwords seen constantly in breach
// corpora. Anything here scores zero regardless of character classes.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"letmein":     {},
	"welcome1":    {},
	"admin123":    {},
	"sunshine":    {},
	"monkey123":   {},
}

// PasswordStrength is the result of a rule-based strength check.
type PasswordStrength struct {
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// CheckPasswordStrength scores password from 0 to 5: one point for length of
// at least 8, one per character class (upper, lower, digit, symbol). Known
// common passwords score 0 outright.
func CheckPasswordStrength(password string) PasswordStrength {
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return PasswordStrength{
			Score:    0,
			Feedback: []string{"This is a commonly used password; choose something unique"},
		}
	}

	var feedback []string
	score := 0

	if len(password) >= 8 {
		score++
	} else {
		feedback = append(feedback, "Use at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if hasUpper {
		score++
	} else {
		feedback = append(feedback, "Add an uppercase letter")
	}
	if hasLower {
		score++
	} else {
		feedback = append(feedback, "Add a lowercase letter")
	}
	if hasDigit {
		score++
	} else {
		feedback = append(feedback, "Add a digit")
	}
	if hasSymbol {
		score++
	} else {
		feedback = append(feedback, "Add a symbol")
	}

	if score == MaxPasswordScore {
		feedback = []string{"Strong password"}
	}

	return PasswordStrength{Score: score, Feedback: feedback}
}
