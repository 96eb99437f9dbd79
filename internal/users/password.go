package users

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// PasswordProblems lists every rule the password breaks; empty means acceptable.
func PasswordProblems(password, email string) []string {
	var out []string
	if len([]rune(password)) < minPasswordLen {
		out = append(out, "This password is too short. It must contain at least 8 characters.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		out = append(out, "This password is entirely numeric.")
	}
	if email != "" {
		local, _, _ := strings.Cut(strings.ToLower(email), "@")
		lp := strings.ToLower(password)
		if lp == strings.ToLower(email) || (len(local) >= 3 && strings.Contains(lp, local)) {
			out = append(out, "The password is too similar to the email address.")
		}
	}
	return out
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
