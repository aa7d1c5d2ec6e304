package password

import "strings"

var commonPasswords = map[string]struct{}{
	"123456":    {},
	"password":  {},
	"123456789": {},
	"12345678":  {},
	"12345":     {},
	"1234567":   {},
	"qwerty":    {},
	"abc123":    {},
	"password1": {},
	"123123":    {},
	"admin":     {},
	"letmein":   {},
	"welcome":   {},
	"iloveyou":  {},
	"monkey":    {},
	"football":  {},
	"sunshine":  {},
	"master":    {},
	"hello":     {},
	"freedom":   {},
}

// IsCommon reports whether password is on the deny-list. The comparison is case-insensitive.
func IsCommon(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}
