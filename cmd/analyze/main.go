// Command analyze evaluates stored prices of one instrument and prints the
// signals of each profile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"BandSentinel/internal/collector"
	"BandSentinel/internal/config"
	"BandSentinel/internal/logger"
	"BandSentinel/internal/model"
	"BandSentinel/internal/notifier"
	"BandSentinel/internal/store"
	"BandSentinel/internal/strategy"
)

func main() {
	var (
		cfgPath = flag.String("config", "configs/config.yaml", "config file")
		key     = flag.String("code", "", "listing code or company name")
		from    = flag.String("from", "", "first date, YYYY-MM-DD (default: lookback_days before -to)")
		to      = flag.String("to", "", "last date, YYYY-MM-DD (default: today)")
		profile = flag.String("profile", "", "comma-separated profiles (default: analysis.profiles)")
		update  = flag.Bool("update", false, "fetch recent bars of every listed company first")
		report  = flag.Bool("report", false, "print the latest snapshot of each profile")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Init("info", true)
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Log.Level, true)

	if *key == "" {
		flag.Usage()
		os.Exit(2)
	}
	profiles, err := selectProfiles(cfg, *profile)
	if err != nil {
		log.Fatal().Err(err).Msg("select profiles")
	}
	end, start, err := dateRange(*from, *to, cfg.Analysis.LookbackDays)
	if err != nil {
		log.Fatal().Err(err).Msg("parse dates")
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	if *update {
		f := collector.NewYahooFetcher(collector.YahooOptions{
			Proxy:             cfg.DataSource.Proxy,
			Suffix:            cfg.DataSource.Suffix,
			RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
			Timeout:           cfg.DataSource.Timeout,
		})
		u := collector.NewUpdater(f, db, nil)
		u.Listing = collector.NewKRXListingFetcher(collector.ListingOptions{
			Proxy:   cfg.DataSource.Proxy,
			Timeout: cfg.DataSource.Timeout,
			URL:     cfg.DataSource.ListingURL,
		})
		if _, err := u.RefreshListings(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("refresh listings")
		}
		if _, err := db.ResolveCode(ctx, *key); err != nil {
			if _, err := u.Register(ctx, []model.Company{{Code: *key}}); err != nil {
				log.Fatal().Err(err).Msg("register instrument")
			}
		}
		if _, err := u.ReadDays(ctx, cfg.Analysis.LookbackDays); err != nil {
			log.Fatal().Err(err).Msg("update prices")
		}
	}

	code, err := db.ResolveCode(ctx, *key)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve instrument")
	}

	series, err := db.GetPrice(ctx, code, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("load prices")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTRATEGY\tDIRECTION\tCLOSE")
	var reports []string
	failed := false
	for _, p := range profiles {
		ind, signals, err := strategy.Evaluate(series, p)
		if err != nil {
			log.Error().Str("strategy", p.Name).Err(err).Msg("evaluate")
			failed = true
			continue
		}
		for _, sig := range signals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", sig.Date.Format(model.DateLayout), sig.Strategy, sig.Direction, sig.Close)
		}
		if *report {
			reports = append(reports, notifier.FormatSignalReport(notifier.Report{Profile: p.Name, Series: ind}))
		}
	}
	w.Flush()
	for _, r := range reports {
		fmt.Printf("\n%s\n", r)
	}
	if failed {
		db.Close()
		os.Exit(1)
	}
}

func selectProfiles(cfg *config.Config, list string) ([]strategy.Profile, error) {
	if list == "" {
		return cfg.Active()
	}
	all, err := cfg.Profiles()
	if err != nil {
		return nil, err
	}
	var out []strategy.Profile
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		p, ok := all[name]
		if !ok {
			known := make([]string, 0, len(all))
			for k := range all {
				known = append(known, k)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(known, ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

// dateRange resolves the -from and -to flags.
func dateRange(from, to string, lookback int) (end, start time.Time, err error) {
	end = model.Day(time.Now())
	if to != "" {
		if end, err = time.Parse(model.DateLayout, to); err != nil {
			return
		}
	}
	start = end.AddDate(0, 0, -lookback)
	if from != "" {
		if start, err = time.Parse(model.DateLayout, from); err != nil {
			return
		}
	}
	if start.After(end) {
		err = fmt.Errorf("-from %s is after -to %s", start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return
}
