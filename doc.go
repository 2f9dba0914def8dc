// Package secredit implements the payload protocol and key handling behind a
// client-side encrypted notepad whose whole document lives in the URL fragment.
//
// The fragment never reaches a server, so a link is the document. Text is
// gzip-compressed and either carried as a plaintext token or encrypted with a
// key derived from a user password. Nothing in this package talks to a network.
//
// # Tokens
//
// Three payload shapes are recognized:
//
//	p:<base64url(gzip(text))>                      plaintext, no key
//	<kdfId>.<base64url(salt16 || iv12 || ct+tag)>  encrypted, current format
//	<base64url(salt16 || iv12 || ct+tag)>          encrypted, legacy (no id)
//
// Encryption is AES-256-GCM under a PBKDF2 key. The KDF id names a profile in a
// Registry (hash and iteration count). Legacy tokens carry no id and are opened
// by trying every registered profile in candidate order. A token may be wrapped
// as pr:<base64url(name)>:<token> to record which profile produced it.
//
// # Basic Usage
//
//	engine, err := secredit.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	token, err := engine.Encrypt("meeting at noon", "correct horse battery")
//	text, err := engine.Decrypt(token, "correct horse battery")
//
// Key derivation is deliberately slow. Interactive callers run it on a
// CryptoSession, which moves the work to a background worker with a timeout and
// respawns the worker when it hangs or panics.
//
// # Documents
//
// A Synchronizer owns one document: its text, key and active profile. Edits are
// debounced and written to a Location (usually a ShareURL). Loads and decrypts
// are numbered by generation so a slow attempt can never overwrite the result
// of a newer one. Every outcome is reported as a Status, never as a panic.
//
//	session, _ := secredit.NewCryptoSession()
//	page, _ := secredit.ParseShareURL(link)
//	doc := secredit.NewSynchronizer(session, page, secredit.WithCache(store))
//	doc.SetKey(ctx, "correct horse battery") // decrypts the fragment if any
//
// # Profiles
//
// A Vault keeps named keys ("profiles") sealed under a master password. Names
// are normalized with NormalizeProfileName. The reserved profile
// NoSecretsProfile always resolves to the empty key, which selects plaintext
// mode. Any KeyProvider, including the Vault and StaticKeyProvider, can feed
// Synchronizer.SelectProfile.
//
// # Files
//
// Export and Import move a document through a small JSON file (ExportFile).
// The unencrypted-mode cache uses the same layout. Files from the earlier
// {data, iterations, v: 2} layout are still accepted.
package secredit
