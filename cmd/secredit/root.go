package main

import (
	"bufio"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ai8future/secredit"
	"github.com/ai8future/secredit/internal/config"
	logger "github.com/ai8future/secredit/internal/logging"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	verbose    bool
	debug      bool

	// key material flags shared by the document commands
	key     string
	profile string
	master  string

	cfg      *config.Config
	log      logger.Logger
	registry *secredit.Registry // nil means secredit.DefaultRegistry
	in       *bufio.Reader
}

func newApp() *app {
	return &app{}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "secredit",
		Short: "Seal and open notes that live entirely in a link",
		Long: `secredit keeps a whole document in the fragment of a share link.

Without a key the text is only compressed. With a key it is encrypted with
AES-256-GCM under a PBKDF2-derived key. Named keys ("profiles") are kept in a
local vault sealed by a master password.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log = logger.Logger{Verbose: a.verbose, Debug: a.debug, Err: cmd.ErrOrStderr(), Out: cmd.ErrOrStderr()}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.master == "" {
				a.master = cfg.MasterPassword
			}
			a.log.Debugf("config loaded from %q, store %s", cfg.Path, cfg.StorePath)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&a.debug, "debug", "d", false, "enable debug output")

	root.AddCommand(
		newSealCmd(a),
		newOpenCmd(a),
		newInspectCmd(a),
		newRekeyCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newVaultCmd(a),
		newConfigCmd(a),
	)
	return root
}

// addKeyFlags registers the flags that choose a document key.
func addKeyFlags(a *app, fs *pflag.FlagSet) {
	fs.StringVarP(&a.key, "key", "k", "", "document key")
	fs.StringVarP(&a.profile, "profile", "p", "", "take the key from this vault profile")
	addMasterFlag(a, fs)
}

func addMasterFlag(a *app, fs *pflag.FlagSet) {
	fs.StringVar(&a.master, "master", "", "vault master password (default $"+config.EnvMaster+")")
}
