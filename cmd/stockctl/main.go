// stockctl inspects stock against cart reservations and runs migrations.
//
//	stockctl report --product-id <uuid>
//	stockctl audit
//	stockctl migrate
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/httpx"
	"github.com/ariefcatur/go-cart-reservation/internal/postgres"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

var errIssuesFound = errors.New("audit found issues")

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "stockctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: stockctl report|audit|migrate [flags]")
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	dsn := fs.String("dsn", cfg.PostgresDSN, "postgres connection string")
	productID := fs.String("product-id", "", "product to report on (report only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd == "migrate" {
		if err := postgres.Migrate(*dsn); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	}

	db, err := postgres.Connect(ctx, *dsn, "stockctl")
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	st := postgres.NewStore(db, cfg.LockTimeout)

	switch cmd {
	case "report":
		id, err := uuid.Parse(*productID)
		if err != nil {
			return fmt.Errorf("--product-id: %w", err)
		}
		return report(ctx, st, id, out)
	case "audit":
		return audit(ctx, st, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func report(ctx context.Context, r store.Reader, productID uuid.UUID, out io.Writer) error {
	rep, err := r.StockReport(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(httpx.NewStockReportView(rep))
}

// audit prints one line per product and fails when any product is short.
func audit(ctx context.Context, r store.Reader, out io.Writer) error {
	products, err := r.ListProducts(ctx)
	if err != nil {
		return err
	}
	issues := 0
	for _, p := range products {
		rep, err := r.StockReport(ctx, p.ID)
		if err != nil {
			return err
		}
		status := "ok"
		if rep.Product.Stock < 0 {
			status = "NEGATIVE"
			issues++
		}
		fmt.Fprintf(out, "%s\t%-30s\tstock=%d\treserved=%d\ttotal=%d\t%s\n",
			p.ID, p.Name, rep.Product.Stock, rep.Reserved, rep.TotalStock(), status)
	}
	if issues > 0 {
		return fmt.Errorf("%w: %d product(s) with negative stock", errIssuesFound, issues)
	}
	return nil
}
