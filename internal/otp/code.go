package otp

import (
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	issuer = "Primetrade"

	// maxDraws bounds redraws of codes with a leading zero; each draw
	// has a 1 in 10 chance of being rejected.
	maxDraws = 32
)

var errNoCode = errors.New("could not draw a six digit code")

// CodeSource produces a fresh six digit code in [100000, 999999].
type CodeSource func() (string, error)

// HOTPCodes derives each code from a newly generated random HOTP key, so
// consecutive codes are independent. Codes starting with '0' are redrawn.
func HOTPCodes() (string, error) {
	for i := 0; i < maxDraws; i++ {
		key, err := hotp.Generate(hotp.GenerateOpts{
			Issuer:      issuer,
			AccountName: "verification",
		})
		if err != nil {
			return "", fmt.Errorf("generate hotp key: %w", err)
		}
		code, err := hotp.GenerateCodeCustom(key.Secret(), 0, hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return "", fmt.Errorf("generate hotp code: %w", err)
		}
		if code[0] != '0' {
			return code, nil
		}
	}
	return "", errNoCode
}

// ValidFormat reports whether code looks like an issued code.
func ValidFormat(code string) bool {
	if len(code) != otp.DigitsSix.Length() || code[0] == '0' {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
