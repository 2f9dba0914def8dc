package secredit

import (
	"strconv"
	"strings"
)

// Encrypted token format:
// <kdfId>.<base64url(salt:16 || iv:12 || AES-GCM(gzip(utf8(text))) || tag:16)>
//
// Tokens from before KDF ids were recorded omit the "<kdfId>." prefix entirely;
// those are resolved by trying the registry's candidates in order.
//
// Fragment wrapper recording which profile produced the token:
// pr:<base64url(profile name)>:<token>

const (
	saltSize = 16
	ivSize   = 12
	tagSize  = 16

	// headerSize is the shortest body that can be decoded at all.
	headerSize = saltSize + ivSize

	// ProfilePrefix marks a fragment that names the profile used to produce it.
	ProfilePrefix = "pr:"
)

// Envelope is an encrypted token split into its KDF id and body.
type Envelope struct {
	KDF   KDFID  // valid only when Known is true
	Known bool   // false for legacy tokens without a "<kdfId>." prefix
	Body  string // base64url(salt || iv || ciphertext)
}

// Frame packs salt, iv and ciphertext into a "<kdfId>.<base64url>" token.
func Frame(id KDFID, salt, iv, ciphertext []byte) string {
	packed := make([]byte, 0, len(salt)+len(iv)+len(ciphertext))
	packed = append(packed, salt...)
	packed = append(packed, iv...)
	packed = append(packed, ciphertext...)
	return strconv.Itoa(int(id)) + "." + EncodeBase64URL(packed)
}

// Unframe splits a token into its KDF id and body.
//
// A token with no '.' or with a non-integer prefix is treated as a legacy bare
// body with an unknown KDF id rather than rejected; base64url never contains '.'
// so this cannot misread a modern token.
func Unframe(token string) (Envelope, error) {
	if token == "" {
		return Envelope{}, ErrDecode
	}

	prefix, body, found := strings.Cut(token, ".")
	if !found {
		return Envelope{Body: token}, nil
	}

	id, err := strconv.Atoi(prefix)
	if err != nil {
		return Envelope{Body: token}, nil
	}
	if body == "" {
		return Envelope{}, ErrDecode
	}
	return Envelope{KDF: KDFID(id), Known: true, Body: body}, nil
}

// Parts decodes the body into salt, iv and ciphertext.
// Returns ErrDecode when the body is not base64url or is shorter than salt+iv.
func (e Envelope) Parts() (salt, iv, ciphertext []byte, err error) {
	buf, err := DecodeBase64URL(e.Body)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(buf) < headerSize {
		return nil, nil, nil, ErrDecode
	}
	return buf[:saltSize], buf[saltSize:headerSize], buf[headerSize:], nil
}

// Fragment is the decoded URL fragment: a token plus the optional profile name
// that produced it.
type Fragment struct {
	Profile string
	Token   string
}

// ParseFragment decodes a URL fragment, with or without its leading '#'.
// An empty fragment yields an empty Fragment and no error.
func ParseFragment(s string) (Fragment, error) {
	s = strings.TrimPrefix(s, "#")
	if !strings.HasPrefix(s, ProfilePrefix) {
		return Fragment{Token: s}, nil
	}

	encodedName, token, found := strings.Cut(strings.TrimPrefix(s, ProfilePrefix), ":")
	if !found || token == "" {
		return Fragment{}, ErrDecode
	}
	name, err := DecodeBase64URL(encodedName)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Profile: Utf8Decode(name), Token: token}, nil
}

// String renders the fragment without the leading '#'.
func (f Fragment) String() string {
	if f.Profile == "" {
		return f.Token
	}
	return ProfilePrefix + EncodeBase64URL(Utf8Encode(f.Profile)) + ":" + f.Token
}
