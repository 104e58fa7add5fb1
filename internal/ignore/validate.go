package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxPatternValueLen caps stored pattern values.
const MaxPatternValueLen = 5000

// maxQuantifiers is the quantifier-token ceiling for regex patterns.
const maxQuantifiers = 10

// ValidatePatternValue checks length bounds common to all pattern types.
func ValidatePatternValue(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("pattern value must not be empty")
	}
	if len(value) > MaxPatternValueLen {
		return fmt.Errorf("pattern value exceeds %d characters", MaxPatternValueLen)
	}
	return nil
}

// ValidateRegex rejects regex patterns with backtracking-prone shapes before
// they are stored. Go's regexp engine cannot backtrack catastrophically, but
// stored patterns stay portable to engines that can, so the check is
// enforced at creation time regardless.
func ValidateRegex(pattern string) error {
	if err := ValidatePatternValue(pattern); err != nil {
		return err
	}

	if n := countQuantifiers(pattern); n > maxQuantifiers {
		return fmt.Errorf("pattern has %d quantifiers, maximum is %d", n, maxQuantifiers)
	}

	if hasNestedQuantifier(pattern) {
		return fmt.Errorf("pattern contains a quantified group that itself contains a quantifier")
	}

	if strings.Contains(pattern, "*+") || strings.Contains(pattern, "++") ||
		strings.Contains(pattern, "?+") || strings.Contains(pattern, "}+") {
		return fmt.Errorf("pattern contains possessive quantifiers")
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("pattern does not compile: %w", err)
	}
	return nil
}

// countQuantifiers counts unescaped *, +, ? and {m,n} tokens.
func countQuantifiers(pattern string) int {
	count := 0
	escaped := false
	inClass := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '*', '+', '?', '{':
			if !inClass {
				count++
			}
		}
	}
	return count
}

// hasNestedQuantifier detects a quantifier applied to a group whose body
// already contains a quantifier, the classic catastrophic shape (a+)+.
func hasNestedQuantifier(pattern string) bool {
	type group struct{ hasQuantifier bool }
	var stack []group
	escaped := false
	inClass := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '(':
			if !inClass {
				stack = append(stack, group{})
			}
		case ')':
			if inClass || len(stack) == 0 {
				continue
			}
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			quantified := i+1 < len(pattern) && isQuantifierStart(pattern[i+1])
			if quantified && closed.hasQuantifier {
				return true
			}
			// A quantified group counts as a quantifier in its parent.
			if len(stack) > 0 && (quantified || closed.hasQuantifier) {
				stack[len(stack)-1].hasQuantifier = true
			}
		case '*', '+', '?', '{':
			if !inClass && len(stack) > 0 {
				stack[len(stack)-1].hasQuantifier = true
			}
		}
	}
	return false
}

func isQuantifierStart(c byte) bool {
	return c == '*' || c == '+' || c == '?' || c == '{'
}
