package secredit

// Rotate re-encrypts token under newPassword with the default KDF profile.
// Use this to move a link to a new key or to upgrade a token written with a
// legacy profile.
//
// A plaintext token is returned re-encrypted when newPassword is set, and
// unchanged otherwise. Returns an error if token cannot be opened with
// oldPassword or newPassword is shorter than MinKeyLength.
func (e *Engine) Rotate(token, oldPassword, newPassword string) (string, error) {
	var text string
	var err error
	if IsPlaintext(token) {
		if newPassword == "" {
			return token, nil
		}
		text, err = e.DecodePlaintext(token)
	} else {
		text, err = e.Decrypt(token, oldPassword)
	}
	if err != nil {
		return "", err
	}

	if newPassword == "" {
		return e.EncodePlaintext(text)
	}
	if !IsStrongEnough(newPassword) {
		return "", ErrWeakKey
	}
	return e.Encrypt(text, newPassword)
}

// NeedsRotation reports whether token was encrypted with a profile other than
// the default, including legacy tokens without a KDF id.
// Returns false for plaintext tokens and for tokens that cannot be parsed.
func (e *Engine) NeedsRotation(token string) bool {
	if token == "" || IsPlaintext(token) {
		return false
	}
	env, err := Unframe(token)
	if err != nil {
		return false
	}
	return !env.Known || env.KDF != e.config.registry.Default()
}

// ExtractKDF returns the KDF id recorded in token without decrypting it.
// ok is false for legacy tokens that carry no id.
func (e *Engine) ExtractKDF(token string) (id KDFID, ok bool, err error) {
	env, err := Unframe(token)
	if err != nil {
		return 0, false, err
	}
	return env.KDF, env.Known, nil
}
