// Command rt browses and books retreats from the terminal.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/and161185/retreat-client/internal/app"
	"github.com/and161185/retreat-client/internal/config"
	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/logging"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/tui"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage means the command line was wrong; usage has already been printed.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `rt - browse and book retreats
Usage:
  rt [global flags] <cmd> [args]

Commands:
  browse                                  (default) interactive browser
  version
  login      -u <username> [-p <password>]  (prompts when -p is omitted)
  logout
  whoami
  list       [-q <term>] [--page <n>] [--all]
  bookings
  book       --id <retreat id>

Global flags:
%s`, config.Usage())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, pflag.ErrHelp):
		usage(os.Stdout)
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// run executes one command. getenv feeds config resolution.
func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, rest, err := config.Load(args, getenv)
	if err != nil {
		return err
	}
	cmd := "browse"
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	if cmd == "version" {
		fmt.Fprintf(stdout, "rt %s (%s)\n", version, buildDate)
		return nil
	}
	if cmd == "help" {
		return pflag.ErrHelp
	}

	logger, err := newLogger(cfg, cmd == "browse")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cmd == "browse" {
		sig := tui.NewSignal()
		a, err := app.New(cfg, logger, nil, sig.Notify)
		if err != nil {
			return err
		}
		defer a.Close()
		logger.Info("starting browser", zap.String("version", version), zap.String("api", cfg.APIURL))
		return tui.Run(ctx, a, sig)
	}

	a, err := app.New(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "login":
		return cmdLogin(ctx, a, rest, stdin, stdout, stderr)
	case "logout":
		if err := a.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	case "whoami":
		u, ok := a.Session.Current()
		if !ok {
			return fmt.Errorf("not logged in: %w", errs.ErrAuthRequired)
		}
		printJSON(stdout, struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
			Phone    string `json:"phone"`
		}{u.ID, u.Username, u.Email, u.Phone})
		return nil
	case "list":
		return cmdList(ctx, a, rest, stdout, stderr)
	case "bookings":
		if !a.Session.LoggedIn() {
			return fmt.Errorf("not logged in: %w", errs.ErrAuthRequired)
		}
		if err := a.Bookings.Refresh(ctx); err != nil {
			return err
		}
		printJSON(stdout, a.Bookings.IDs())
		return nil
	case "book":
		return cmdBook(ctx, a, rest, stdout, stderr)
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
	usage(stderr)
	return errUsage
}

// newLogger sends logs to the configured file. The browser owns the screen, so it defaults to
// <config-dir>/rt.log; one-shot commands default to warnings on stderr.
func newLogger(cfg config.Config, interactive bool) (*zap.Logger, error) {
	level, file := cfg.LogLevel, cfg.LogFile
	if file == "" {
		if interactive {
			file = filepath.Join(cfg.Dir, "rt.log")
		} else if level == config.DefaultLogLevel {
			level = "warn"
		}
	}
	return logging.New(level, file)
}

func subFlags(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func cmdLogin(ctx context.Context, a *app.App, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := subFlags("login", stderr)
	user := fs.StringP("user", "u", "", "username")
	pass := fs.StringP("password", "p", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		fmt.Fprintln(stderr, "need -u")
		return errUsage
	}
	if *pass == "" {
		p, err := readPassword(stdin, stderr)
		if err != nil {
			return err
		}
		*pass = p
	}

	err := a.Login(ctx, *user, *pass)
	n, _ := a.Notes.LoginOutcome(err)
	if err != nil {
		return errors.New(n.Text)
	}
	fmt.Fprintln(stdout, n.Text)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type listRow struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Date     string   `json:"date"`
	Price    string   `json:"price"`
	Duration int      `json:"duration"`
	Tags     []string `json:"tags,omitempty"`
	Booked   bool     `json:"booked"`
}

type listOutput struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Retreats   []listRow `json:"retreats"`
}

func cmdList(ctx context.Context, a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := subFlags("list", stderr)
	search := fs.StringP("query", "q", "", "search term")
	page := fs.Int("page", 1, "page number")
	all := fs.Bool("all", false, "every listing on one page (ignores -q and --page)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := model.SearchQuery{Term: *search, Page: *page, PageSize: a.Config.PageSize}.Normalize()
	var res model.ResultPage
	if *all {
		items, err := a.API.AllRetreats(ctx)
		if err != nil {
			return err
		}
		q.Page = 1
		res = model.ResultPage{Items: items, TotalPages: 1}
	} else {
		var err error
		if res, err = a.API.Retreats(ctx, q); err != nil {
			return err
		}
	}
	if a.Session.LoggedIn() {
		if err := a.Bookings.Refresh(ctx); err != nil {
			a.Log.Warn("refresh bookings", zap.Error(err))
		}
	}

	out := listOutput{Page: q.Page, TotalPages: res.TotalPages, Retreats: make([]listRow, 0, len(res.Items))}
	for _, l := range res.Items {
		out.Retreats = append(out.Retreats, listRow{
			ID:       l.ID,
			Title:    l.Title,
			Location: l.Location,
			Date:     l.Date.String(),
			Price:    string(l.Price),
			Duration: l.Duration,
			Tags:     l.Tags,
			Booked:   a.Bookings.Contains(l.ID),
		})
	}
	printJSON(stdout, out)
	return nil
}

func cmdBook(ctx context.Context, a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := subFlags("book", stderr)
	id := fs.Int("id", 0, "retreat id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		fmt.Fprintln(stderr, "need --id")
		return errUsage
	}

	if a.Session.LoggedIn() {
		if err := a.Bookings.Refresh(ctx); err != nil {
			a.Log.Warn("refresh bookings", zap.Error(err))
		}
	}
	err := a.Booker.Book(ctx, *id)
	if errors.Is(err, errs.ErrAlreadyBooked) {
		fmt.Fprintln(stdout, "Already booked")
		return nil
	}
	n, _ := a.Notes.BookingOutcome(err)
	if err != nil {
		return errors.New(n.Text)
	}
	fmt.Fprintln(stdout, n.Text)
	return nil
}
