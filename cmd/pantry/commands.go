package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/pantry/internal/inventory"
	"github.com/zombor/pantry/internal/pantry"
	"github.com/zombor/pantry/internal/receipt"
)

func importCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("import").SetParent(parent)
	dir := flags.StringLong("dir", "./receipts", "Directory of exported receipt bundles (*.json)")
	imagesDir := flags.StringLong("images", "", "Directory to save embedded receipt images as PNG (optional)")
	fromDate := flags.StringLong("from", "", "Only import receipts purchased on or after this date (YYYY-MM-DD)")
	toDate := flags.StringLong("to", "", "Only import receipts purchased on or before this date (YYYY-MM-DD)")

	return &ff.Command{
		Name:      "import",
		Usage:     "pantry import [FLAGS]",
		ShortHelp: "import receipt bundles into the inventory",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			dates, err := parseDateRange(*fromDate, *toDate)
			if err != nil {
				return err
			}

			var images receipt.ImageStore
			if *imagesDir != "" {
				store, err := receipt.NewLocalStorage(*imagesDir)
				if err != nil {
					return fmt.Errorf("initializing image storage: %w", err)
				}
				images = store
			}

			a, err := setup(cfg, images)
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := receipt.NewDirSource(*dir)
			if err != nil {
				return err
			}

			totals, err := a.service.ImportAll(ctx, source, dates)
			if totals != nil {
				printImport(os.Stdout, totals)
			}
			return err
		},
	}
}

// parseDateRange reads the import --from/--to flags
func parseDateRange(from, to string) (pantry.DateRange, error) {
	var dates pantry.DateRange
	for _, f := range []struct {
		name  string
		value string
		dest  *time.Time
	}{
		{"from", from, &dates.From},
		{"to", to, &dates.To},
	} {
		if f.value == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", f.value, time.Local)
		if err != nil {
			return pantry.DateRange{}, fmt.Errorf("invalid --%s date %q: want YYYY-MM-DD", f.name, f.value)
		}
		*f.dest = t
	}
	if !dates.From.IsZero() && !dates.To.IsZero() && dates.To.Before(dates.From) {
		return pantry.DateRange{}, fmt.Errorf("--to date is before --from date")
	}
	return dates, nil
}

func stockCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("stock").SetParent(parent)

	return &ff.Command{
		Name:      "stock",
		Usage:     "pantry stock",
		ShortHelp: "list products in stock by category",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			a, err := setup(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.service.Stock()
			if err != nil {
				return err
			}
			printStock(os.Stdout, rows)
			return nil
		},
	}
}

func expiringCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("expiring").SetParent(parent)
	days := flags.IntLong("days", 3, "Show units expiring within this many days")

	return &ff.Command{
		Name:      "expiring",
		Usage:     "pantry expiring [FLAGS]",
		ShortHelp: "list units close to or past their expiry date",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			a, err := setup(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.service.Expiring(*days)
			if err != nil {
				return err
			}
			printExpiring(os.Stdout, *days, rows)
			return nil
		},
	}
}

func consumeCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("consume").SetParent(parent)
	count := flags.IntLong("count", 1, "Number of units to consume")

	return &ff.Command{
		Name:      "consume",
		Usage:     "pantry consume [FLAGS] <product name>",
		ShortHelp: "mark units of a product as consumed, oldest first",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("consume takes exactly one product name")
			}

			a, err := setup(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			consumed, err := a.service.Consume(args[0], *count)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Consumed %d x %s\n", consumed, args[0])
			if consumed < *count {
				fmt.Fprintf(os.Stdout, "Only %d in stock\n", consumed)
			}
			return nil
		},
	}
}

func expireCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("expire").SetParent(parent)

	return &ff.Command{
		Name:      "expire",
		Usage:     "pantry expire",
		ShortHelp: "mark in-stock units past their expiry date as expired",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			a, err := setup(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			expired, err := a.service.ExpireStale()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Expired %d units\n", expired)
			return nil
		},
	}
}

func serveCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("serve").SetParent(parent)
	port := flags.IntLong("port", 8080, "HTTP server port")
	authUser := flags.StringLong("auth-user", "", "Basic auth username (optional)")
	authPass := flags.StringLong("auth-pass", "", "Basic auth password (optional)")
	imagesDir := flags.StringLong("images", "", "Directory to save embedded receipt images as PNG (optional)")

	return &ff.Command{
		Name:      "serve",
		Usage:     "pantry serve [FLAGS]",
		ShortHelp: "serve the inventory JSON API",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			var images receipt.ImageStore
			if *imagesDir != "" {
				store, err := receipt.NewLocalStorage(*imagesDir)
				if err != nil {
					return fmt.Errorf("initializing image storage: %w", err)
				}
				images = store
			}

			a, err := setup(cfg, images)
			if err != nil {
				return err
			}
			defer a.Close()

			server := pantry.NewServer(a.service, pantry.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}

func printImport(w io.Writer, totals *pantry.ImportTotals) {
	for _, r := range totals.Results {
		when := ""
		if !r.PurchasedAt.IsZero() {
			when = r.PurchasedAt.Format("2006-01-02 15:04") + " "
		}
		switch r.Status {
		case pantry.StatusSkipped:
			fmt.Fprintf(w, "  [skip] %s (already imported)\n", r.ReceiptID)
		case pantry.StatusEmpty:
			fmt.Fprintf(w, "  [empty] %s%s: no line items found\n", when, r.StoreName)
		default:
			fmt.Fprintf(w, "  [import] %s%s\n", when, r.StoreName)
			fmt.Fprintf(w, "    -> %d purchases (food: %d, non-food: %d)\n", r.Count, r.FoodCount, r.NonFoodCount)
			for _, item := range r.Items {
				price := "¥" + strconv.Itoa(item.UnitPrice)
				if item.Discount > 0 {
					price += fmt.Sprintf(" (-¥%d)", item.Discount)
				}
				if item.Quantity > 1 {
					price += fmt.Sprintf(" x%d", item.Quantity)
				}
				line := fmt.Sprintf("      %s  %s", item.Name, price)
				if tag := item.Tag(); tag != "" {
					line += " " + tag
				}
				fmt.Fprintln(w, line)
			}
			for _, path := range r.Images {
				fmt.Fprintf(w, "      image: %s\n", path)
			}
		}
	}
	fmt.Fprintf(w, "\nDone: %d purchases imported, %d receipts skipped\n", totals.Imported, totals.Skipped)
}

func printStock(w io.Writer, rows []inventory.StockRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Nothing in stock.")
		return
	}

	fmt.Fprintf(w, "=== Stock (%d products) ===\n\n", len(rows))

	byCategory := make(map[string][]inventory.StockRow)
	for _, row := range rows {
		category := row.Category
		if category == "" {
			category = "uncategorized"
		}
		byCategory[category] = append(byCategory[category], row)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		fmt.Fprintf(w, "[%s]\n", category)
		for _, row := range byCategory[category] {
			amount := ""
			if row.ContentAmount != nil {
				amount = fmt.Sprintf(" (%s%s)", strconv.FormatFloat(*row.ContentAmount, 'f', -1, 64), row.ContentUnit)
			}
			shelf := ""
			if row.ShelfLifeDays != nil {
				shelf = fmt.Sprintf(" [keeps %d days]", *row.ShelfLifeDays)
			}
			fmt.Fprintf(w, "  %s x%d%s [%s]%s\n", row.Name, row.Quantity, amount, row.StorageClass, shelf)
			fmt.Fprintf(w, "    bought: %s  store: %s\n", row.LastPurchased.Format("2006-01-02"), row.StoreName)
		}
		fmt.Fprintln(w)
	}
}

func printExpiring(w io.Writer, days int, rows []inventory.ExpiryRow) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "Nothing expires within %d days.\n", days)
		return
	}

	fmt.Fprintf(w, "=== Expiring within %d days (%d units) ===\n\n", days, len(rows))
	for _, row := range rows {
		var status string
		switch row.State() {
		case inventory.StateExpired:
			status = fmt.Sprintf("EXPIRED %d days ago", -row.DaysRemaining)
		case inventory.StateDueToday:
			status = "due today"
		default:
			status = fmt.Sprintf("%d days left", row.DaysRemaining)
		}
		fmt.Fprintf(w, "  %s  %s\n", row.Name, status)
		fmt.Fprintf(w, "    bought: %s  expires: %s  [%s]\n",
			row.PurchasedAt.Format("2006-01-02"),
			row.ExpiresAt.Format("2006-01-02"),
			row.StorageClass,
		)
	}
}
