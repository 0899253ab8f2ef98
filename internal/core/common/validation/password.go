package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 12
	MaxStrength       = 8
)

var predictableSequences = []string{"123456", "abcdef", "qwerty", "password", "admin"}

// CheckPassword returns every policy violation for password, or nil.
func CheckPassword(password string) []string {
	var problems []string
	n := utf8.RuneCountInString(password)

	if n < MinPasswordLength {
		problems = append(problems, "Password must be at least 12 characters long")
	}
	if n > MaxPasswordLength {
		problems = append(problems, "Password must not exceed 128 characters")
	}

	c := classify(password)
	if !c.lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !c.upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !c.digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if c.special == 0 {
		problems = append(problems, "Password must contain at least one special character")
	}

	if isPredictable(password) {
		problems = append(problems, "Password contains common patterns and is too predictable")
	}
	return problems
}

// Strength scores a password from 0 to MaxStrength.
func Strength(password string) (int, string) {
	score := 0
	n := utf8.RuneCountInString(password)
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}

	c := classify(password)
	for _, ok := range []bool{c.lower, c.upper, c.digit, c.special > 0} {
		if ok {
			score++
		}
	}
	if c.special > 1 {
		score++
	}
	if c.lower && c.upper && c.digit {
		score++
	}

	label := "Very Weak"
	switch {
	case score >= MaxStrength:
		label = "Strong"
	case score >= 6:
		label = "Good"
	case score >= 4:
		label = "Fair"
	case score >= 2:
		label = "Weak"
	}
	return score, label
}

type charClasses struct {
	lower, upper, digit bool
	special             int
}

// classify follows the ASCII classes used by the policy; any other rune
// counts as special.
func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.special++
		}
	}
	return c
}

func isPredictable(password string) bool {
	var prev rune
	run := 0
	for _, r := range password {
		if run > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= 3 {
			return true
		}
		prev = r
	}

	lower := strings.Map(unicode.ToLower, password)
	for _, seq := range predictableSequences {
		if strings.Contains(lower, seq) {
			return true
		}
	}
	return false
}
