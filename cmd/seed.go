package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rana718/fireseed/internal/config"
	"github.com/Rana718/fireseed/internal/credentials"
	"github.com/Rana718/fireseed/internal/fixture"
	"github.com/Rana718/fireseed/internal/logging"
	"github.com/Rana718/fireseed/internal/seeder"
	"github.com/Rana718/fireseed/internal/store"
	fsstore "github.com/Rana718/fireseed/internal/store/firestore"
	"github.com/Rana718/fireseed/internal/store/memstore"
)

// openStore connects to Firestore. Tests swap it for an in-memory store.
var openStore = func(ctx context.Context, opts fsstore.Options) (store.Store, error) {
	return fsstore.Open(ctx, opts)
}

// loadSettings reads the config and builds the logger shared by every command.
func loadSettings(cmd *cobra.Command, v *viper.Viper) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, nil, seeder.Validation("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, seeder.Validation("validate config", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, seeder.Validation("configure logging", err)
	}
	return cfg, logger, nil
}

// connect resolves credentials and the project, then opens the store. All
// failures here happen before any backend call and count as validation.
// Progress goes to stderr so an export on stdout stays clean.
func connect(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (store.Store, error) {
	out := cmd.ErrOrStderr()

	if cfg.UseEmulator {
		color.New(color.FgCyan).Fprintf(out, "🧪 Using Firestore emulator at %s\n", cfg.EmulatorHost)
	}

	var sa *credentials.ServiceAccount
	if cfg.ServiceAccount != "" {
		var err error
		sa, err = credentials.Load(ctx, cfg.ServiceAccount)
		if err != nil {
			return nil, seeder.Validation("load service account", err)
		}
		color.New(color.FgGreen).Fprintln(out, "🔑 Service account loaded:")
		fmt.Fprintf(out, "   - project_id: %s\n", sa.ProjectID)
		fmt.Fprintf(out, "   - client_email: %s\n", sa.ClientEmail)
	}

	projectID, err := credentials.ResolveProject(ctx, credentials.Sources{
		Flag:          cfg.ProjectID,
		Account:       sa,
		Env:           config.ProjectEnvValues(),
		UseEmulator:   cfg.UseEmulator,
		DetectDefault: credentials.DefaultProject,
	})
	if err != nil {
		color.New(color.FgYellow).Fprintln(out, "⚠️  No projectId provided and none found in the service account or environment.")
		return nil, seeder.Validation("resolve project", err)
	}

	opts := fsstore.Options{
		ProjectID:  projectID,
		DatabaseID: cfg.DatabaseID,
	}
	if cfg.UseEmulator {
		opts.EmulatorHost = cfg.EmulatorHost
	}
	if sa != nil {
		opts.Credentials = sa.Credentials
	}

	st, err := openStore(ctx, opts)
	if err != nil {
		return nil, seeder.Validation("open firestore", err)
	}

	color.New(color.FgCyan).Fprintf(out, "🔗 Project %s, database %s\n", projectID, cfg.DatabaseID)
	return st, nil
}

func seederOptions(cfg *config.Config) seeder.Options {
	opts := seeder.DefaultOptions()
	opts.Reseed = cfg.Reseed
	opts.BatchSize = cfg.BatchSize
	opts.DeletePageSize = cfg.DeletePageSize
	opts.MaxDepth = cfg.MaxDepth
	opts.IDPolicy = fixture.NewIDPolicy(cfg.IdentityCollections)
	return opts
}

func runSeed(cmd *cobra.Command, v *viper.Viper, dryRun bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, logger, err := loadSettings(cmd, v)
	if err != nil {
		return err
	}
	dryRun = dryRun || cfg.DryRun

	fx, err := fixture.Load(cfg.File)
	if err != nil {
		return seeder.Validation("load fixture", err)
	}
	color.New(color.FgCyan).Fprintf(out, "📄 Loaded %s: %d collections, %d documents\n", fx.Source, len(fx.Collections), fx.DocumentCount())

	var st store.Store
	var mem *memstore.Store
	if dryRun {
		mem = memstore.New()
		st = mem
	} else {
		st, err = connect(ctx, cmd, cfg)
		if err != nil {
			return err
		}
	}
	defer st.Close()

	opts := seederOptions(cfg)
	opts.Out = out
	summary, err := seeder.New(st, opts, logger).Seed(ctx, fx)
	printSummary(out, summary, err)
	if err != nil {
		logging.LogError(logger, "seeder", "Seed", "seed run failed", summary.RunID, err)
		return err
	}

	if dryRun {
		printPlan(out, mem)
	}
	return nil
}

func printSummary(w io.Writer, summary *seeder.Summary, runErr error) {
	if summary == nil || (len(summary.Collections) == 0 && runErr != nil) {
		return
	}

	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintln(w, "📊 Summary")
	fmt.Fprintf(w, "   %-24s %10s %10s %10s %8s\n", "COLLECTION", "DOCUMENTS", "NESTED", "DELETED", "BATCHES")
	for _, c := range summary.Collections {
		fmt.Fprintf(w, "   %-24s %10d %10d %10d %8d\n", c.Name, c.Documents, c.Nested, c.Deleted, c.Batches)
	}
	for _, name := range summary.Skipped {
		color.New(color.FgYellow).Fprintf(w, "   ⚠️  skipped %q: not a list\n", name)
	}

	line := fmt.Sprintf("   %d written, %d deleted, %d batches in %s",
		summary.Written, summary.Deleted, summary.Batches, summary.Duration.Round(time.Millisecond))
	if runErr != nil {
		color.New(color.FgRed).Fprintln(w, line+" before the failure")
		return
	}
	color.New(color.FgGreen).Fprintln(w, line)
	color.New(color.FgGreen, color.Bold).Fprintln(w, "✅ Seeding complete")
}

func printPlan(w io.Writer, mem *memstore.Store) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintln(w, "🗺️  Plan (dry run, nothing was written)")
	for _, path := range mem.Paths() {
		doc, _ := mem.Get(path)
		fmt.Fprintf(w, "   %s (%d fields)\n", path, len(doc))
	}
}

// ExitCode maps a command error to the process exit status: 1 for anything
// caught before the backend was touched, 2 for backend failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch seeder.KindOf(err) {
	case seeder.KindAuth, seeder.KindNotFound, seeder.KindBackend:
		return 2
	default:
		return 1
	}
}

func reportError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "❌ %v\n", err)

	var se *seeder.Error
	if !errors.As(err, &se) {
		return
	}
	switch se.Kind {
	case seeder.KindNotFound:
		color.New(color.FgYellow).Fprintln(w, "\nFirestore returned NOT_FOUND. Common causes:")
		for _, hint := range seeder.NotFoundHints() {
			fmt.Fprintf(w, "  - %s\n", hint)
		}
	case seeder.KindAuth:
		color.New(color.FgYellow).Fprintln(w, "\nCheck that the service account has the Cloud Datastore User role on the project.")
	}
}
