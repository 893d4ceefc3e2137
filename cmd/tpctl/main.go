// Command tpctl is a maintenance CLI for threadpulse: one-off refreshes,
// analytics dumps and shortcuts to the config file and post permalinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadpulse/internal/app"
	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/search"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	accountID := fs.String("account", "", "account id (defaults to the active account)")
	days := fs.Int("days", 0, "lookback window in days (buzz)")
	all := fs.Bool("all", false, "refresh every account (refresh)")
	mode := fs.String("mode", "", "KEYWORD or TAG (search)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.Logging)

	if cmd == "open" {
		runOpen(cfg, logger, fs.Args(), *accountID)
		return
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "accounts":
		err = runAccounts(ctx, a)
	case "refresh":
		if *all {
			err = runRefreshAll(ctx, a)
		} else {
			err = withAccount(ctx, a, *accountID, func(acct types.Account) error { return runRefresh(ctx, a, acct) })
		}
	case "timeslots":
		err = withAccount(ctx, a, *accountID, func(acct types.Account) error { return runTimeSlots(ctx, a, acct) })
	case "buzz":
		err = withAccount(ctx, a, *accountID, func(acct types.Account) error { return runBuzz(ctx, a, acct, *days) })
	case "score":
		err = withAccount(ctx, a, *accountID, func(acct types.Account) error { return runScore(ctx, a, acct) })
	case "search":
		if fs.NArg() < 1 {
			fmt.Println("Usage: tpctl search [-mode TAG] <keyword>")
			os.Exit(1)
		}
		req := search.Request{Keyword: fs.Arg(0), SearchMode: *mode}
		err = withAccount(ctx, a, *accountID, func(acct types.Account) error { return runSearch(ctx, a, acct, req) })
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.WithError(err).Fatal(cmd + " failed")
	}
}

func printUsage() {
	fmt.Println("Usage: tpctl <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  accounts                 List connected accounts")
	fmt.Println("  refresh [-all]           Fetch new posts and refresh recent metrics")
	fmt.Println("  timeslots                Rebuild the weekday x hour engagement matrix")
	fmt.Println("  buzz [-days N]           Contrast top and bottom performing posts")
	fmt.Println("  score                    Calculate today's growth score")
	fmt.Println("  search [-mode M] <word>  Search Threads posts by keyword or topic tag")
	fmt.Println("  open config              Open the config file in the default editor")
	fmt.Println("  open permalink <postID>  Open a stored post on threads.net")
	fmt.Println()
	fmt.Println("Flags: -config <path>, -account <id>")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromEnv(path)
}

func withAccount(ctx context.Context, a *app.App, id string, fn func(types.Account) error) error {
	acct, err := a.ResolveAccount(ctx, id)
	if err != nil {
		return err
	}
	return fn(acct)
}

func runAccounts(ctx context.Context, a *app.App) error {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return err
	}
	active, _ := a.ActiveAccount(ctx)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tUSERNAME\tTOKEN EXPIRES")
	for _, acct := range accounts {
		mark := ""
		if acct.AccountID == active.AccountID {
			mark = "*"
		}
		expires := "-"
		if !acct.TokenExpires.IsZero() {
			expires = acct.TokenExpires.In(a.Location()).Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t@%s\t%s\n", mark, acct.AccountID, acct.Username, expires)
	}
	return tw.Flush()
}

func runRefresh(ctx context.Context, a *app.App, acct types.Account) error {
	res, err := a.Refresh(ctx, acct)
	if err != nil {
		return err
	}
	fmt.Printf("@%s: %d new, %d updated, %d deferred (%d stored)\n",
		res.Username, res.NewPosts, res.UpdatedPosts, res.Deferred, res.Total)
	return nil
}

func runRefreshAll(ctx context.Context, a *app.App) error {
	outcomes, err := a.RefreshAll(ctx)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Printf("%s: failed: %s\n", o.AccountID, o.Error)
			continue
		}
		fmt.Printf("%s: %d new, %d updated\n", o.AccountID, o.Result.NewPosts, o.Result.UpdatedPosts)
	}
	return nil
}

func runTimeSlots(ctx context.Context, a *app.App, acct types.Account) error {
	res, err := a.GenerateTimeSlots(ctx, acct)
	if err != nil {
		return err
	}
	if !res.HasData {
		fmt.Println("No posts with views yet.")
		return nil
	}
	fmt.Printf("Best slots from %d posts:\n", res.PostCount)
	for i, s := range res.Best {
		fmt.Printf("  %d. %s %02d:00  ER %.2f%%\n", i+1, s.Weekday, s.Hour, s.AvgER)
	}
	return nil
}

func runBuzz(ctx context.Context, a *app.App, acct types.Account, days int) error {
	report, err := a.Buzz(ctx, acct, days)
	if err != nil {
		return err
	}
	if !report.HasData {
		fmt.Println("No posts in the window.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%d posts over %d days\tTOP\tBOTTOM\n", report.SampleSize, report.WindowDays)
	fmt.Fprintf(tw, "avg ER\t%.2f%%\t%.2f%%\n", report.Top.AvgER, report.Bottom.AvgER)
	fmt.Fprintf(tw, "avg length\t%.0f\t%.0f\n", report.Top.AvgLength, report.Bottom.AvgLength)
	fmt.Fprintf(tw, "hashtag rate\t%d%%\t%d%%\n", report.Top.HashtagRate, report.Bottom.HashtagRate)
	fmt.Fprintf(tw, "question rate\t%d%%\t%d%%\n", report.Top.QuestionRate, report.Bottom.QuestionRate)
	fmt.Fprintf(tw, "best slot\t%s %02d:00\t%s %02d:00\n",
		report.Top.BestWeekday, report.Top.BestHour, report.Bottom.BestWeekday, report.Bottom.BestHour)
	return tw.Flush()
}

func runScore(ctx context.Context, a *app.App, acct types.Account) error {
	res, err := a.CalculateGrowth(ctx, acct)
	if err != nil {
		return err
	}
	s := res.Current
	fmt.Printf("@%s growth score %d (%+d)\n", acct.Username, s.Total, res.Change)
	fmt.Printf("  followers %d / ER trend %d / frequency %d / assistant %d\n",
		s.Follower, s.ERTrend, s.Frequency, s.AIUsage)
	return nil
}

func runSearch(ctx context.Context, a *app.App, acct types.Account, req search.Request) error {
	res, err := a.SearchKeyword(ctx, acct, req)
	if err != nil {
		return err
	}
	if res.Source == search.SourceFallback {
		fmt.Printf("Search unavailable (%s); analysis from your own posts:\n\n%s\n", res.APIError, res.Analysis)
		return nil
	}
	if res.TotalCount == 0 {
		fmt.Println("No posts found.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tMEDIA\tPOSTED\tTEXT")
	for _, p := range res.Posts {
		text := []rune(p.Text)
		if len(text) > 60 {
			text = append(text[:60], '…')
		}
		fmt.Fprintf(tw, "@%s\t%s\t%s\t%s\n", p.Username, p.MediaType,
			p.Timestamp.In(a.Location()).Format("2006-01-02 15:04"), strings.ReplaceAll(string(text), "\n", " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if s := res.Style; s != nil {
		fmt.Printf("\n%d posts, avg length %d, reply rate %d%%, quote rate %d%%\n",
			s.TotalPosts, s.AvgTextLength, s.ReplyRate, s.QuoteRate)
	}
	if res.HasMore {
		fmt.Println("More results are available; raise the limit through the API.")
	}
	return nil
}

func runOpen(cfg *config.Config, logger logging.Logger, args []string, accountID string) {
	if len(args) < 1 {
		fmt.Println("Usage: tpctl open <config|permalink> [postID]")
		os.Exit(1)
	}

	switch args[0] {
	case "config":
		path, err := config.ConfigPath()
		if err != nil {
			logger.WithError(err).Fatal("failed to get config path")
		}
		if err := browser.OpenFile(path); err != nil {
			logger.WithError(err).Fatal("failed to open config")
		}
	case "permalink":
		if len(args) < 2 {
			fmt.Println("Usage: tpctl open permalink <postID>")
			os.Exit(1)
		}
		url, err := permalink(cfg, logger, accountID, args[1])
		if err != nil {
			logger.WithError(err).Fatal("failed to find post")
		}
		if err := browser.OpenURL(url); err != nil {
			logger.WithError(err).Fatal("failed to open permalink")
		}
	default:
		fmt.Printf("Unknown target: %s\n", args[0])
		os.Exit(1)
	}
}

func permalink(cfg *config.Config, logger logging.Logger, accountID, postID string) (string, error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return "", err
	}
	defer a.Close()

	ctx := context.Background()
	acct, err := a.ResolveAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	view, err := a.Analytics(ctx, acct, 0)
	if err != nil {
		return "", err
	}
	for _, p := range view.Posts {
		if p.PostID != postID {
			continue
		}
		if p.Permalink != "" {
			return p.Permalink, nil
		}
		return fmt.Sprintf("https://www.threads.net/@%s/post/%s", acct.Username, p.PostID), nil
	}
	return "", fmt.Errorf("post %s %w", postID, types.ErrNotFound)
}
