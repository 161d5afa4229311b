package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/donations"
	"schoolsite/internal/server"
	"schoolsite/internal/submissions"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/database"
)

func fetchCmd(g *globals) *cobra.Command {
	var (
		populate []string
		sort     []string
		pageSize int
		page     int
		token    string
		raw      bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <collection>",
		Short: "List a collection through the CMS client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			client := server.NewCMSClient(cfg.CMS, cmsclient.WithLogger(g.logger()))

			q := cmsclient.NewQuery().PageSize(pageSize).Page(page)
			switch {
			case len(populate) == 1 && populate[0] == "*":
				q.PopulateAll()
			case len(populate) > 0:
				q.Populate(populate...)
			}
			for _, s := range sort {
				q.Sort(s)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CMS.Timeout*time.Duration(cfg.CMS.RetryAttempts+1))
			defer cancel()
			rows, pg, err := client.List(ctx, args[0], q, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows (page %d/%d, total %d)\n", len(rows), pg.Page, pg.PageCount, pg.Total)

			if raw {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			m := cms.NewMediaResolver(cfg.CMS.MediaBase())
			out := make([]any, 0, len(rows))
			for _, r := range rows {
				out = append(out, normalizeValue(r, m))
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVar(&populate, "populate", []string{"*"}, "relations to populate, dotted for nesting; * for all")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "sort fields, e.g. publishedAt:desc")
	cmd.Flags().IntVar(&pageSize, "page-size", 25, "rows per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&token, "token", "", "end-user CMS token instead of the server token")
	cmd.Flags().BoolVar(&raw, "raw", false, "print rows as the CMS sent them")
	return cmd
}

func submissionsCmd(g *globals) *cobra.Command {
	var q submissions.ListQuery
	var counts bool
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List forwarded form submissions from the local ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := database.OpenMigrated(cmd.Context(), database.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer db.Close()
			repo := submissions.NewRepo(db)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if counts {
				c, err := repo.Counts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "KIND\tFORWARDED\tREJECTED\tFAILED")
				for kind, byStatus := range c {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", kind,
						byStatus[submissions.StatusForwarded], byStatus[submissions.StatusRejected], byStatus[submissions.StatusFailed])
				}
				return nil
			}

			items, err := repo.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tCMS ID\tCREATED\tERROR")
			for _, s := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Kind, s.Status, s.CMSID,
					s.CreatedAt.Format(time.DateTime), truncate(s.Error, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Kind, "kind", "", "filter by kind (admissions, spotlight, seat_reservation, leave_request)")
	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status (forwarded, rejected, failed)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "max rows")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&counts, "counts", false, "print totals per kind and status")
	return cmd
}

func donationsCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "donations",
		Short: "List checkout sessions recorded as donations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := database.OpenMigrated(cmd.Context(), database.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer db.Close()

			items, err := donations.NewLedger(db).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SESSION\tAMOUNT\tFREQUENCY\tEMAIL\tCMS ID\tRECORDED")
			for _, d := range items {
				fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%s\n", d.SessionID,
					donations.Units(d.AmountCents).StringFixed(2), strings.ToUpper(d.Currency),
					d.Frequency, d.Email, d.CMSDonationID, d.RecordedAt.Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

// signCmd prints a Stripe-Signature header for a local event file, for
// replaying webhooks against a dev server.
func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign-webhook <file|->",
		Short: "Print the " + donations.HeaderSignature + " header for an event body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SCHOOLSITE_STRIPE_WEBHOOK_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("webhook secret required (--secret)")
			}
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), donations.Sign(body, []byte(secret), time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook signing secret")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
