package ledger

import "crypto/subtle"

// PinVerifier checks a candidate PIN against an account's stored one.
// Callers inject it wherever a gated view needs verification, instead of
// handing out the account itself.
//
// This is display gating only. PINs are stored in plaintext and are not a
// security boundary.
type PinVerifier func(candidate string) bool

// PinVerifier builds a verifier for the account. Accounts without a PIN
// verify everything.
func (a BankAccount) PinVerifier() PinVerifier {
	pin := a.PIN
	return func(candidate string) bool {
		if pin == "" {
			return true
		}
		return subtle.ConstantTimeCompare([]byte(pin), []byte(candidate)) == 1
	}
}
