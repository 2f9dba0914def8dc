// Package logging provides the console logger used by the secredit CLI.
//
// Output is gated by two flags:
//
//   - --verbose: info messages
//   - --debug: info and debug messages
//
// Warnings and errors are always written. Logger satisfies secredit.Logger, so
// the same value is handed to the crypto session, synchronizer and vault.
//
//	log := logging.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("loaded %d profiles", n)
package logging
