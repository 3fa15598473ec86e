// Package main is the chat-server binary: an HTTP API for user accounts,
// bearer-token login and stored chat prompts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chat-server-go/internal/bootstrap"
	"chat-server-go/internal/platform/config"
	"chat-server-go/internal/platform/storage"
)

const appName = "chat-server"

// Version is overridden at build time with -ldflags.
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s failed: %v\n", appName, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts bootstrap.Options

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Chat API server with bearer-token auth",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default: search config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "env file to load before reading the environment (default .env)")
	cmd.PersistentFlags().BoolVar(&opts.DotEnv, "dotenv", true, "load variables from the env file")

	cmd.AddCommand(
		serveCmd(&opts),
		migrateCmd(&opts),
		configCmd(&opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func serveCmd(opts *bootstrap.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] [INFO] [Bootstrap] starting %s...\n",
				time.Now().Format("2006-01-02 15:04:05.000"), appName)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return bootstrap.Run(ctx, *opts)
		},
	}
}

func migrateCmd(opts *bootstrap.Options) *cobra.Command {
	var (
		rollback string
		history  bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := bootstrap.LoadConfig(*opts)
			if err != nil {
				return err
			}
			db, err := storage.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close(db) }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := storage.Ping(ctx, db); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			migrator := storage.NewMigrator(db)
			switch {
			case history:
				records, err := migrator.GetMigrationHistory()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.Version, r.Name, r.AppliedAt.Format(time.RFC3339))
				}
				return w.Flush()
			case rollback != "":
				if err := migrator.RollbackMigration(rollback); err != nil {
					return err
				}
				fmt.Fprintf(out, "rolled back %s\n", rollback)
				return nil
			default:
				applied, err := migrator.Apply()
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(out, "schema is up to date")
				}
				for _, version := range applied {
					fmt.Fprintf(out, "applied %s\n", version)
				}
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&rollback, "rollback", "", "roll back the given migration version")
	cmd.Flags().BoolVar(&history, "history", false, "list applied migrations")
	cmd.MarkFlagsMutuallyExclusive("rollback", "history")
	return cmd
}

func configCmd(opts *bootstrap.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := bootstrap.LoadConfig(*opts)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", path)
			}
			return config.Dump(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}
