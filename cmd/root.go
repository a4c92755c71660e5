package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rana718/fireseed/internal/config"
	"github.com/Rana718/fireseed/internal/fixture"
	"github.com/Rana718/fireseed/internal/seeder"
)

var Version = "0.3.0"

func showBanner(w io.Writer) {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════════════╗",
		"║   ███████╗██╗██████╗ ███████╗███████╗███████╗███████╗ ║",
		"║   ██╔════╝██║██╔══██╗██╔════╝██╔════╝██╔════╝██╔════╝ ║",
		"║   █████╗  ██║██████╔╝█████╗  ███████╗█████╗  █████╗   ║",
		"║   ██╔══╝  ██║██╔══██╗██╔══╝  ╚════██║██╔══╝  ██╔══╝   ║",
		"║   ██║     ██║██║  ██║███████╗███████║███████╗███████╗ ║",
		"║   ╚═╝     ╚═╝╚═╝  ╚═╝╚══════╝╚══════╝╚══════╝╚══════╝ ║",
		"║                                                      ║",
		"║          🌱 Firestore fixtures, seeded 🌱            ║",
		"╚══════════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Fprintln(w, line)
	}

	fmt.Fprint(w, "                    ")
	color.New(color.FgCyan, color.Bold).Fprint(w, "Version: ")
	color.New(color.FgYellow, color.Bold).Fprintf(w, "%s\n", Version)
}

// NewRootCmd builds the command tree. Each call gets its own viper instance,
// so flags, env and config files never leak between runs.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "fireseed",
		Short: "Seed Cloud Firestore from a JSON or YAML fixture",
		Long: `
fireseed writes a fixture file into Cloud Firestore (or the emulator).

The fixture maps collection names to lists of documents. A list of objects
inside a document becomes a subcollection, date strings become timestamps,
and document ids come from id, docId, uid or an employee id field.

Examples:
  fireseed --serviceAccount ./key.json --projectId my-project
  fireseed --useEmulator --file ./seed.yaml --reseed
  fireseed plan --file ./firestore-seed.json
  fireseed export users rewards --out backup.json`,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(v, cfgFile); err != nil {
				return seeder.Validation("load config", err)
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return seeder.Validation("bind flags", err)
			}
			return nil
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "fireseed version %s\n", Version)
				return nil
			}
			if len(args) > 0 {
				return seeder.Validation("parse arguments", fmt.Errorf("unexpected argument %q", args[0]))
			}

			dryRun, _ := cmd.Flags().GetBool("dryRun")
			return runSeed(cmd, v, dryRun)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./fireseed.config.json)")
	flags.String("serviceAccount", "", "path to a service-account key JSON")
	flags.String("projectId", "", "target project id")
	flags.String("databaseId", config.DefaultDatabaseID, "Firestore database id")
	flags.String("file", fixture.DefaultPath, "fixture file (.json, .jsonc, .yaml)")
	flags.Bool("reseed", false, "delete each collection before writing it")
	flags.Bool("useEmulator", false, "target the Firestore emulator")
	flags.String("emulatorHost", "", "emulator host:port (default localhost:8080)")
	flags.Int("batchSize", seeder.DefaultBatchSize, "writes per batch (max 500)")
	flags.Int("deletePageSize", seeder.DefaultDeletePageSize, "documents read per delete page")
	flags.Int("maxDepth", seeder.DefaultMaxDepth, "deepest subcollection nesting allowed")
	flags.StringSlice("identityCollections", fixture.DefaultIdentityCollections, "collections where employee id fields name the document")
	flags.Bool("dryRun", false, "seed into memory and print the plan")
	flags.String("logLevel", "info", "log level (debug, info, warn, error)")
	flags.String("logFormat", "text", "log format (text or json)")

	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")

	rootCmd.AddCommand(newPlanCmd(v), newExportCmd(v), newVersionCmd())
	return rootCmd
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("json")
		v.SetConfigName(config.FileName)
	}

	if err := config.BindEnv(v); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Execute runs the CLI against os.Args. The returned error has already been
// reported; pass it to ExitCode.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return err
	}
	return nil
}
