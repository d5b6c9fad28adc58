package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"productreel/internal/bootstrap"
	"productreel/internal/domain"
	"productreel/internal/infra"
)

const usage = `Usage:
  domainctl list [-stuck] [-older-than 15m]
  domainctl resubmit -id <domain id> [-older-than 15m]`

const defaultStuckAfter = 15 * time.Minute

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		exitWithError(errors.New(usage))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "domainctl").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	services, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		exitWithError(fmt.Errorf("failed to initialise services: %w", err))
	}
	defer services.Close()

	switch os.Args[1] {
	case "list":
		err = runList(ctx, services, os.Args[2:])
	case "resubmit":
		err = runResubmit(ctx, services, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		services.Close()
		exitWithError(err)
	}
}

func runList(ctx context.Context, s *bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	stuck := fs.Bool("stuck", false, "only list unfinished domains")
	olderThan := fs.Duration("older-than", defaultStuckAfter, "minimum age of the last status change for -stuck")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		items []domain.Domain
		err   error
	)
	if *stuck {
		items, err = s.Domains.ListStuck(ctx, time.Now().Add(-*olderThan))
	} else {
		items, err = s.Domains.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("list domains: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUPDATED\tURL")
	for _, d := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.ID, d.Status, d.UpdatedAt.Format(time.RFC3339), d.URL)
	}
	return w.Flush()
}

func runResubmit(ctx context.Context, s *bootstrap.Services, args []string) error {
	fs := flag.NewFlagSet("resubmit", flag.ContinueOnError)
	id := fs.Int64("id", 0, "domain id to resubmit")
	olderThan := fs.Duration("older-than", defaultStuckAfter, "minimum idle time before an unfinished domain may be resubmitted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	final, err := s.Pipeline.Resubmit(ctx, *id, *olderThan)
	if err != nil {
		return fmt.Errorf("resubmit domain %d: %w", *id, err)
	}
	products, err := s.Products.ListByDomain(ctx, *id)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	fmt.Printf("Domain %d finished with status %s (%d products)\n", *id, final, len(products))
	if final == domain.DomainStatusError {
		return errors.New("pipeline ended in error; see logs")
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
