package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ai8future/secredit"
)

// document is one synchronizer with the session and page it runs on.
type document struct {
	session *secredit.CryptoSession
	doc     *secredit.Synchronizer
	page    *secredit.ShareURL
}

func (d *document) Close() {
	_ = d.doc.Close()
	_ = d.session.Close()
}

func (a *app) reg() *secredit.Registry {
	if a.registry != nil {
		return a.registry
	}
	return secredit.DefaultRegistry()
}

func (a *app) engineOptions() []secredit.Option {
	return append(a.cfg.EngineOptions(), secredit.WithRegistry(a.reg()))
}

func (a *app) store() *secredit.FileStore {
	return secredit.NewFileStore(a.cfg.StorePath)
}

// openDocument prepares a document over link. An empty link starts from the
// configured base URL; a bare fragment is attached to it.
func (a *app) openDocument(link string) (*document, error) {
	switch {
	case link == "":
		link = a.cfg.BaseURL
	case !strings.Contains(link, "://"):
		link = a.cfg.BaseURL + "#" + strings.TrimPrefix(link, "#")
	}
	page, err := secredit.ParseShareURL(link)
	if err != nil {
		return nil, err
	}

	session, err := secredit.NewCryptoSession(
		secredit.WithTimeout(time.Duration(a.cfg.WorkerTimeout)),
		secredit.WithEngineOptions(a.engineOptions()...),
		secredit.WithSessionLogger(a.log),
	)
	if err != nil {
		return nil, err
	}

	doc := secredit.NewSynchronizer(session, page,
		secredit.WithDebounce(time.Duration(a.cfg.Debounce)),
		secredit.WithCache(a.store()),
		secredit.WithSyncRegistry(a.reg()),
		secredit.WithSyncLogger(a.log),
		secredit.WithSyncMaxDecompressedSize(a.cfg.MaxDecompressedBytes),
		secredit.WithObserver(func(st secredit.Status) {
			a.log.Debugf("status: %s", st)
		}),
	)
	return &document{session: session, doc: doc, page: page}, nil
}

func (a *app) openVault() (*secredit.Vault, error) {
	return secredit.NewVault(a.store(),
		secredit.WithVaultRegistry(a.reg()),
		secredit.WithVaultLogger(a.log),
	)
}

// unlockVault opens the vault and unlocks it with the master password.
func (a *app) unlockVault(cmd *cobra.Command) (*secredit.Vault, error) {
	v, err := a.openVault()
	if err != nil {
		return nil, err
	}
	password, err := a.masterPassword(cmd)
	if err != nil {
		return nil, err
	}
	if err := v.Unlock(password); err != nil {
		return nil, err
	}
	return v, nil
}

// masterPassword returns --master, $SECREDIT_MASTER, or the next input line.
func (a *app) masterPassword(cmd *cobra.Command) (string, error) {
	if a.master != "" {
		return a.master, nil
	}
	return a.prompt(cmd, "Master password: ")
}

func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := a.input(cmd).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// input wraps stdin once per command so prompts and document text share it.
func (a *app) input(cmd *cobra.Command) *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	return a.in
}

// readText reads the document from the named file, or the rest of stdin.
func (a *app) readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", args[0], err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(a.input(cmd))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// keyProvider resolves profile names. Only the reserved profile is served
// without unlocking the vault.
func (a *app) keyProvider(cmd *cobra.Command, name string) (secredit.KeyProvider, func(), error) {
	if secredit.IsNoSecrets(name) {
		p := secredit.NewStaticKeyProvider(nil)
		return p, p.Close, nil
	}
	v, err := a.unlockVault(cmd)
	if err != nil {
		return nil, nil, err
	}
	return v, func() { _ = v.Close() }, nil
}

// selectKey applies --key, else --profile, else the profile hint taken from a
// link or file. It reports whether any key source was available.
func (a *app) selectKey(ctx context.Context, cmd *cobra.Command, d *document, hint string) (bool, error) {
	if a.key != "" {
		d.doc.SetKey(ctx, a.key)
		return true, nil
	}
	name := a.profile
	if name == "" {
		name = hint
	}
	if name == "" {
		return false, nil
	}
	keys, done, err := a.keyProvider(cmd, name)
	if err != nil {
		return true, err
	}
	defer done()
	a.log.Infof("using profile %q", secredit.NormalizeProfileName(name))
	return true, d.doc.SelectProfile(ctx, keys, name)
}

// lookupKey returns a key without a document: --key, else the named profile.
func (a *app) lookupKey(cmd *cobra.Command, key, name string) (string, error) {
	if key != "" || name == "" {
		return key, nil
	}
	keys, done, err := a.keyProvider(cmd, name)
	if err != nil {
		return "", err
	}
	defer done()
	return keys.GetEntry(name)
}

// loadDocument opens link (or the cached document when link is empty) and
// decrypts it, asking for a key only when the payload needs one.
func (a *app) loadDocument(ctx context.Context, cmd *cobra.Command, link string) (*document, error) {
	d, err := a.openDocument(link)
	if err != nil {
		return nil, err
	}

	applied, err := d.doc.Load(ctx)
	if link == "" && d.doc.Status() == secredit.StatusLoadFromCache {
		a.log.Infof("restoring cached document")
		applied, err = d.doc.LoadCache(ctx)
	}
	if errors.Is(err, secredit.ErrKeyRequired) {
		ok, kerr := a.selectKey(ctx, cmd, d, d.doc.PendingProfile())
		switch {
		case kerr != nil:
			err = kerr
		case !ok:
			err = fmt.Errorf("%w: pass --key or --profile", secredit.ErrKeyRequired)
		default:
			err = statusError(d.doc.Status())
			applied = err == nil
		}
	}
	if err == nil && !applied {
		err = errors.New("nothing to open")
	}
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// shareLink returns the document link on the configured base URL.
func (a *app) shareLink(d *document) (string, error) {
	return d.page.Canonical(a.cfg.BaseURL)
}

// statusError turns a terminal load status back into its error.
func statusError(st secredit.Status) error {
	switch st {
	case secredit.StatusDecrypted, secredit.StatusLoadedUnencrypted:
		return nil
	case secredit.StatusWrongKey:
		return secredit.ErrWrongKey
	case secredit.StatusInvalidData:
		return secredit.ErrDecode
	case secredit.StatusSecretKeyRequired:
		return secredit.ErrKeyRequired
	case secredit.StatusDecompressionLimit:
		return secredit.ErrDecompressionLimit
	case secredit.StatusTimeout:
		return secredit.ErrTimeout
	case secredit.StatusWeakKey:
		return secredit.ErrWeakKey
	default:
		return fmt.Errorf("secredit: %s", st)
	}
}

func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString("✓")+" "+fmt.Sprintf(format, args...))
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	success(cmd, "wrote %s", path)
	return nil
}
