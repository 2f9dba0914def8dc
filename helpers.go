package secredit

// TokenMode classifies a payload token.
type TokenMode string

const (
	ModePlaintext TokenMode = "plaintext"
	ModeEncrypted TokenMode = "encrypted"
	ModeLegacy    TokenMode = "legacy"
)

// TokenInfo describes a fragment or token without decrypting it.
type TokenInfo struct {
	Mode    TokenMode
	KDF     KDFID  // set only for ModeEncrypted
	Profile string // profile recorded by a "pr:" wrapper, if any
	Size    int    // decoded body size in bytes
}

// Inspect decodes the framing of a fragment or token. The body is
// base64-decoded to check its size; nothing is decrypted or inflated.
//
// Returns ErrDecode for empty input, a malformed profile wrapper, bad base64,
// or an encrypted body shorter than salt and IV.
func Inspect(fragment string) (TokenInfo, error) {
	frag, err := ParseFragment(fragment)
	if err != nil {
		return TokenInfo{}, err
	}
	if frag.Token == "" {
		return TokenInfo{}, ErrDecode
	}
	info := TokenInfo{Profile: frag.Profile}

	if IsPlaintext(frag.Token) {
		body, err := DecodeBase64URL(frag.Token[len(PlaintextPrefix):])
		if err != nil {
			return TokenInfo{}, err
		}
		info.Mode = ModePlaintext
		info.Size = len(body)
		return info, nil
	}

	env, err := Unframe(frag.Token)
	if err != nil {
		return TokenInfo{}, err
	}
	salt, iv, ct, err := env.Parts()
	if err != nil {
		return TokenInfo{}, err
	}
	info.Size = len(salt) + len(iv) + len(ct)
	if env.Known {
		info.Mode = ModeEncrypted
		info.KDF = env.KDF
	} else {
		info.Mode = ModeLegacy
	}
	return info, nil
}
