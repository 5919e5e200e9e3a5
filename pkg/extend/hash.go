package extend

import (
	"crypto"
	_ "crypto/md5" // registers crypto.MD5
	"encoding/hex"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// loginDigest is fixed by the server; it is not negotiable.
const loginDigest = crypto.MD5

// DeriveToken computes the session.login token from the password and the
// salt returned by session.initiate:
//
//	hex(md5(":" + hex(md5(lower(password))) + ":" + salt))
//
// It panics with a *ConfigurationError if MD5 is not linked into the binary.
func DeriveToken(password, salt string) string {
	// A Caser is stateful, so one is built per call.
	inner := hexDigest(cases.Lower(language.Und).String(password))
	return hexDigest(":" + inner + ":" + salt)
}

func hexDigest(s string) string {
	if !loginDigest.Available() {
		panic(&ConfigurationError{Algorithm: "MD5"})
	}
	h := loginDigest.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
