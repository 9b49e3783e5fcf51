package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"bookswap/pkg/account"
	"bookswap/pkg/audit"
	"bookswap/pkg/catalog"
	"bookswap/pkg/config"
	"bookswap/pkg/database"
	"bookswap/pkg/exchange"
	"bookswap/pkg/logging"
	"bookswap/pkg/models"
	"bookswap/pkg/queue"
	"bookswap/pkg/store"
	"bookswap/pkg/trust"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type options struct {
	sqlitePath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "swapctl",
		Short:         "Operate the book exchange database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite", "", "use a sqlite file instead of the configured postgres database")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newAuditCmd(opts), newTrustCmd(opts), newSeedCmd(opts))
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), "swapctl", o.logLevel)
}

func (o *options) open(log *slog.Logger) (*gorm.DB, error) {
	if o.sqlitePath != "" {
		return database.OpenSQLiteWithLogger(o.sqlitePath, log)
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	return database.InitExchangeDB(cfg, log)
}

func newAuditCmd(opts *options) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report books whose status disagrees with their transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger(cmd)
			conn, err := opts.open(log)
			if err != nil {
				return err
			}
			stores := store.New(conn)
			out := cmd.OutOrStdout()

			if !repair {
				drifts, err := exchange.CheckInvariants(cmd.Context(), stores, stores)
				if err != nil {
					return err
				}
				printDrifts(out, drifts)
				return nil
			}

			auditor := audit.New(stores, queue.NewQueue(), log, audit.Options{MaxRetries: 1})
			report, err := auditor.Scan(cmd.Context())
			if err != nil {
				return err
			}
			printDrifts(out, report.Drifts)
			res := auditor.Drain(cmd.Context())
			fmt.Fprintf(out, "repaired %d, already consistent %d, dropped %d\n", res.Repaired, res.Resolved, res.Dropped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "fix repairable drift")
	return cmd
}

func printDrifts(out io.Writer, drifts []exchange.Drift) {
	if len(drifts) == 0 {
		fmt.Fprintln(out, "no drift found")
		return
	}
	for _, d := range drifts {
		line := fmt.Sprintf("%s\t%s\tstatus=%s holders=%d", d.BookID, d.Kind, d.Status, len(d.Holders))
		if d.Repairable() {
			line += " want=" + string(d.Want)
		} else {
			line += " (manual)"
		}
		fmt.Fprintln(out, line)
	}
}

func newTrustCmd(opts *options) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "trust <user-id>",
		Short: "Print the trust score of a user with its components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.open(opts.logger(cmd))
			if err != nil {
				return err
			}
			stores := store.New(conn)
			res, err := trust.NewEngine(stores, stores).ComputeTrustScore(cmd.Context(), args[0], models.Role(role))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "score the user as owner or seeker instead of their own role")
	return cmd
}

var demoBooks = []catalog.BookInput{
	{Title: "Dune", Author: "Frank Herbert", Genre: "scifi", Location: "Berlin"},
	{Title: "Emma", Author: "Jane Austen", Genre: "classic", Location: "Berlin"},
	{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", Genre: "scifi", Location: "Hamburg"},
}

func newSeedCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo owner, a demo seeker and a few books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.open(opts.logger(cmd))
			if err != nil {
				return err
			}
			stores := store.New(conn)
			accounts := account.NewService(stores)
			books := catalog.NewService(stores)
			out := cmd.OutOrStdout()

			owner, err := accounts.Register(cmd.Context(), account.Registration{
				Name: "Demo Owner", Email: "owner@bookswap.local", Password: password, Mobile: "+10000000001", Role: models.RoleOwner,
			})
			if err != nil {
				return fmt.Errorf("create owner: %w", err)
			}
			seeker, err := accounts.Register(cmd.Context(), account.Registration{
				Name: "Demo Seeker", Email: "seeker@bookswap.local", Password: password, Mobile: "+10000000002", Role: models.RoleSeeker,
			})
			if err != nil {
				return fmt.Errorf("create seeker: %w", err)
			}
			fmt.Fprintf(out, "owner\t%s\t%s\n", owner.ID, owner.Email)
			fmt.Fprintf(out, "seeker\t%s\t%s\n", seeker.ID, seeker.Email)

			for _, in := range demoBooks {
				book, err := books.CreateBook(cmd.Context(), owner.ID, in)
				if err != nil {
					return fmt.Errorf("create book %q: %w", in.Title, err)
				}
				fmt.Fprintf(out, "book\t%s\t%s\n", book.ID, book.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "bookswap", "password for the demo accounts")
	return cmd
}
