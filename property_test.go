package secredit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTokenProperties checks the codec invariants over generated input.
func TestTokenProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	engine := newTestEngine(t)

	properties.Property("decrypt inverts encrypt", prop.ForAll(
		func(text, password string) bool {
			token, err := engine.Encrypt(text, password)
			if err != nil {
				return false
			}
			got, err := engine.Decrypt(token, password)
			return err == nil && got == text
		},
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.Property("plaintext tokens round trip", prop.ForAll(
		func(text string) bool {
			token, err := EncodePlaintext(text)
			if err != nil || !IsPlaintext(token) {
				return false
			}
			got, err := DecodePlaintext(token, MaxDecompressedSize)
			return err == nil && got == text
		},
		gen.AnyString(),
	))

	properties.Property("any flipped ciphertext bit is a wrong key", prop.ForAll(
		func(text string, pos int, bit uint8) bool {
			token, err := engine.Encrypt(text, testPassword)
			if err != nil {
				return false
			}
			env, err := Unframe(token)
			if err != nil {
				return false
			}
			salt, iv, ct, err := env.Parts()
			if err != nil {
				return false
			}
			ct[pos%len(ct)] ^= 1 << (bit % 8)
			_, err = engine.Decrypt(Frame(env.KDF, salt, iv, ct), testPassword)
			return errors.Is(err, ErrWrongKey)
		},
		gen.AlphaString(),
		gen.IntRange(0, 1<<16),
		gen.UInt8(),
	))

	properties.Property("base64url round trips", prop.ForAll(
		func(data []byte) bool {
			got, err := DecodeBase64URL(EncodeBase64URL(data))
			return err == nil && bytes.Equal(got, data)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("profile fragments round trip", prop.ForAll(
		func(name string) bool {
			frag := Fragment{Profile: name, Token: "1.abc"}
			got, err := ParseFragment(frag.String())
			return err == nil && got == frag
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
