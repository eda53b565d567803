package ussd

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

var (
	namePattern    = regexp.MustCompile(`^\p{L}[\p{L} '.-]{1,49}$`)
	accountPattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)
)

func validName(name string) bool {
	return namePattern.MatchString(name)
}

// validEmail accepts a bare address with a dotted domain.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return strings.Contains(email[at+1:], ".")
}

func validAccountID(id string) bool {
	return accountPattern.MatchString(id)
}

// parseAmount accepts a positive whole amount of at most nine digits.
func parseAmount(input string) (int64, bool) {
	if input == "" || len(input) > 9 {
		return 0, false
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(input, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// firstName is used in greetings.
func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
