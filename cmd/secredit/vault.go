package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ai8future/secredit"
)

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage named keys sealed under a master password",
		Long: `The vault stores profiles: named document keys, sealed under one master
password. The master password is read from --master, $SECREDIT_MASTER, or the
first line of stdin.`,
	}
	addMasterFlag(a, cmd.PersistentFlags())

	cmd.AddCommand(
		newVaultSetupCmd(a),
		newVaultUnlockCmd(a),
		newVaultAddCmd(a),
		newVaultGetCmd(a),
		newVaultListCmd(a),
		newVaultRemoveCmd(a),
		newVaultPasswdCmd(a),
	)
	return cmd
}

func newVaultSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the vault with a master password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			password, err := a.masterPassword(cmd)
			if err != nil {
				return err
			}
			if err := v.Setup(password); err != nil {
				return err
			}
			success(cmd, "vault created in %s", a.cfg.StorePath)
			return nil
		},
	}
}

func newVaultUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Check the master password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.unlockVault(cmd)
			if err != nil {
				return err
			}
			defer v.Close()
			success(cmd, "master password accepted")
			return nil
		},
	}
}

func newVaultAddCmd(a *app) *cobra.Command {
	var secret, profileColor string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store or replace a profile key",
		Long: `Stores the key for a profile, replacing any profile with the same name.
Names are compared case-insensitively with whitespace collapsed. The key is
--secret or the next line of stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.unlockVault(cmd)
			if err != nil {
				return err
			}
			defer v.Close()

			if secret == "" {
				if secret, err = a.prompt(cmd, "Key: "); err != nil {
					return err
				}
			}
			if err := v.SaveEntry(args[0], secret, profileColor); err != nil {
				return err
			}
			success(cmd, "profile %q saved", secredit.NormalizeProfileName(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "profile key (read from stdin when empty)")
	cmd.Flags().StringVar(&profileColor, "color", "", "display color")
	return cmd
}

func newVaultGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a profile key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, done, err := a.keyProvider(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			key, err := keys.GetEntry(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newVaultListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profile names (no master password needed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			state, err := v.State()
			if err != nil {
				return err
			}
			a.log.Infof("vault state: %s", state)

			entries, err := v.ListEntries()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				name := e.Name
				if secredit.IsNoSecrets(name) {
					name = color.New(color.Faint).Sprint(name)
				}
				fmt.Fprintf(w, "%s\t%s\n", name, e.Color)
			}
			return w.Flush()
		},
	}
}

func newVaultRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.unlockVault(cmd)
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.DeleteEntry(args[0]); err != nil {
				return err
			}
			success(cmd, "profile %q removed", secredit.NormalizeProfileName(args[0]))
			return nil
		},
	}
}

func newVaultPasswdCmd(a *app) *cobra.Command {
	var newMaster string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password and re-seal every profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.unlockVault(cmd)
			if err != nil {
				return err
			}
			defer v.Close()

			if newMaster == "" {
				if newMaster, err = a.prompt(cmd, "New master password: "); err != nil {
					return err
				}
			}
			if err := v.ChangeMasterPassword(newMaster); err != nil {
				return err
			}
			success(cmd, "master password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&newMaster, "new-master", "", "new master password (read from stdin when empty)")
	return cmd
}
