package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ai8future/secredit"
)

func newSealCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal [file]",
		Short: "Turn a text file (or stdin) into a share link",
		Long: `Reads the document and prints a share link that contains it.

With --key or --profile the document is encrypted; otherwise it is only
compressed and anyone with the link can read it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.openDocument("")
			if err != nil {
				return err
			}
			defer d.Close()

			// Resolve the key first so a master password prompt reads its
			// line before the document takes the rest of stdin.
			if _, err := a.selectKey(ctx, cmd, d, ""); err != nil {
				return err
			}
			text, err := a.readText(cmd, args)
			if err != nil {
				return err
			}
			if text == "" {
				return secredit.ErrEmptyDocument
			}

			d.doc.SetText(text)
			if err := d.doc.Sync(ctx); err != nil {
				return err
			}
			link, err := a.shareLink(d)
			if err != nil {
				return err
			}
			a.log.Infof("sealed %d bytes (%s)", len(text), d.doc.Status())
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	addKeyFlags(a, cmd.Flags())
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [link]",
		Short: "Print the document held in a share link",
		Long: `Decodes a share link and prints its document.

Encrypted links need --key or --profile. A link that names a profile uses it
from the vault when neither flag is given. Without a link the cached
unencrypted document, if any, is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ""
			if len(args) > 0 {
				link = args[0]
			}
			d, err := a.loadDocument(cmd.Context(), cmd, link)
			if err != nil {
				return err
			}
			defer d.Close()

			text := d.doc.Text()
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	addKeyFlags(a, cmd.Flags())
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <link>",
		Short: "Describe a share link without decrypting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := args[0]
			if strings.Contains(fragment, "://") {
				page, err := secredit.ParseShareURL(fragment)
				if err != nil {
					return err
				}
				fragment = page.Fragment()
			}

			info, err := secredit.Inspect(fragment)
			if err != nil {
				return err
			}
			engine, err := secredit.New(a.engineOptions()...)
			if err != nil {
				return err
			}
			frag, err := secredit.ParseFragment(fragment)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode:     %s\n", info.Mode)
			if info.Mode == secredit.ModeEncrypted {
				if p, err := a.reg().Lookup(info.KDF); err == nil {
					fmt.Fprintf(out, "kdf:      %d (PBKDF2-%s, %d iterations)\n", info.KDF, p.Hash, p.Iterations)
				} else {
					fmt.Fprintf(out, "kdf:      %d %s\n", info.KDF, color.RedString("(unknown)"))
				}
			}
			if info.Profile != "" {
				fmt.Fprintf(out, "profile:  %s\n", info.Profile)
			}
			fmt.Fprintf(out, "size:     %d bytes\n", info.Size)
			if info.Mode != secredit.ModePlaintext {
				fmt.Fprintf(out, "rekey:    %t\n", engine.NeedsRotation(frag.Token))
			}
			return nil
		},
	}
}

func newRekeyCmd(a *app) *cobra.Command {
	var newKey, newProfile string
	cmd := &cobra.Command{
		Use:   "rekey <link>",
		Short: "Re-encrypt a share link under a new key or the current KDF profile",
		Long: `Opens the link with the old key (--key, --profile, or the profile the link
names) and prints a link encrypted under the new key with the default KDF
profile. The new key is --new-key, --new-profile, or the old key when neither
is given, which only upgrades the KDF profile. Use --new-profile "no secrets"
to produce an unencrypted link.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDocument(args[0])
			if err != nil {
				return err
			}
			defer d.Close()

			frag, err := secredit.ParseFragment(d.page.Fragment())
			if err != nil {
				return err
			}
			if frag.Token == "" {
				return fmt.Errorf("%w: link has no document", secredit.ErrDecode)
			}

			oldName := a.profile
			if oldName == "" {
				oldName = frag.Profile
			}
			oldKey, err := a.lookupKey(cmd, a.key, oldName)
			if err != nil {
				return err
			}

			profile := secredit.NormalizeProfileName(frag.Profile)
			key := oldKey
			switch {
			case newKey != "":
				key, profile = newKey, ""
			case newProfile != "":
				if key, err = a.lookupKey(cmd, "", newProfile); err != nil {
					return err
				}
				profile = secredit.NormalizeProfileName(newProfile)
			}
			if secredit.IsNoSecrets(profile) {
				profile = ""
			}

			engine, err := secredit.New(a.engineOptions()...)
			if err != nil {
				return err
			}
			token, err := engine.Rotate(frag.Token, oldKey, key)
			if err != nil {
				return err
			}
			if secredit.IsPlaintext(token) {
				profile = ""
			}
			d.page.ReplaceFragment(secredit.Fragment{Profile: profile, Token: token}.String())

			link, err := a.shareLink(d)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	addKeyFlags(a, cmd.Flags())
	cmd.Flags().StringVar(&newKey, "new-key", "", "key for the new link")
	cmd.Flags().StringVar(&newProfile, "new-profile", "", "vault profile for the new link")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [link]",
		Short: "Write the document of a link (or the cache) to an export file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ""
			if len(args) > 0 {
				link = args[0]
			}
			d, err := a.loadDocument(cmd.Context(), cmd, link)
			if err != nil {
				return err
			}
			defer d.Close()

			data, err := d.doc.Export(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, append(data, '\n'))
		},
	}
	addKeyFlags(a, cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var link bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Read an export file and print its document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			d, err := a.openDocument("")
			if err != nil {
				return err
			}
			defer d.Close()

			applied, err := d.doc.Import(ctx, raw)
			if errors.Is(err, secredit.ErrKeyRequired) {
				ok, kerr := a.selectKey(ctx, cmd, d, d.doc.PendingProfile())
				switch {
				case kerr != nil:
					return kerr
				case !ok:
					return fmt.Errorf("%w: pass --key or --profile", secredit.ErrKeyRequired)
				}
				applied, err = d.doc.Import(ctx, raw)
			}
			if err != nil {
				return err
			}
			if !applied {
				return errors.New("nothing imported")
			}

			if link {
				if err := d.doc.Sync(ctx); err != nil {
					return err
				}
				share, err := a.shareLink(d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), share)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d.doc.Text())
			return nil
		},
	}
	addKeyFlags(a, cmd.Flags())
	cmd.Flags().BoolVar(&link, "link", false, "print a share link instead of the text")
	return cmd
}
