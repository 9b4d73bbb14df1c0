// Package cli is the command-line front end over the session services.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"scorepad/internal/catalog"
	"scorepad/internal/config"
	"scorepad/internal/domain"
	"scorepad/internal/middleware"
	"scorepad/internal/scoring"
	"scorepad/internal/service"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const timeLayout = "2006-01-02 15:04"

type App struct {
	sessions *service.SessionService
	exports  *service.ExportService
	catalog  *catalog.Catalog
	cfg      *config.Config
	logger   zerolog.Logger
	out      io.Writer
}

func NewApp(sessions *service.SessionService, exports *service.ExportService, cat *catalog.Catalog, cfg *config.Config, logger zerolog.Logger, out io.Writer) *App {
	return &App{sessions: sessions, exports: exports, catalog: cat, cfg: cfg, logger: logger, out: out}
}

func (a *App) Run(ctx context.Context, args []string) error {
	return a.command().RunContext(ctx, separateScores(args))
}

// separateScores inserts "--" ahead of a leading negative score on the round
// command so the flag parser does not take "-3" for a flag.
func separateScores(args []string) []string {
	if len(args) < 3 || args[1] != "round" {
		return args
	}
	for i := 2; i < len(args); i++ {
		arg := args[i]
		if arg == "--" || !strings.HasPrefix(arg, "-") {
			return args
		}
		if _, err := strconv.Atoi(arg); err == nil {
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		}
		if name := strings.TrimLeft(arg, "-"); name == "session" || name == "s" {
			i++
		}
	}
	return args
}

func (a *App) command() *cli.App {
	sessionFlag := &cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "session id (defaults to the active session)"}

	return &cli.App{
		Name:            "scorepad",
		Usage:           "keep scores for board and card games",
		Writer:          a.out,
		Before:          middleware.InvocationID(a.logger),
		After:           middleware.Completed,
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "games",
				Usage:  "list the game catalog",
				Action: a.games,
			},
			{
				Name:      "game",
				Usage:     "show a game's scoring notes, rules and logo",
				ArgsUsage: "GAME_ID",
				Action:    a.game,
			},
			{
				Name:      "start",
				Usage:     "start a session",
				ArgsUsage: "GAME_ID [PSEUDO...]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "players", Aliases: []string{"n"}, Usage: "player count (clamped to the game's bounds)"},
					&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "free-text label"},
				},
				Action: a.start,
			},
			{
				Name:   "show",
				Usage:  "show a session with totals and rounds",
				Flags:  []cli.Flag{sessionFlag},
				Action: a.show,
			},
			{
				Name:      "round",
				Usage:     "record and validate a round",
				ArgsUsage: "[--] SCORE... | PLAYER=SCORE...",
				Flags:     []cli.Flag{sessionFlag},
				Action:    a.round,
			},
			{
				Name:   "undo",
				Usage:  "remove the last validated round",
				Flags:  []cli.Flag{sessionFlag},
				Action: a.undo,
			},
			{
				Name:   "end",
				Usage:  "end a session",
				Flags:  []cli.Flag{sessionFlag},
				Action: a.end,
			},
			{
				Name:      "reopen",
				Usage:     "reopen an ended session",
				ArgsUsage: "SESSION_ID",
				Action:    a.reopen,
			},
			{
				Name:      "pin",
				Usage:     "pin or unpin a session",
				ArgsUsage: "SESSION_ID",
				Action:    a.pin,
			},
			{
				Name:      "duplicate",
				Usage:     "start a new session with the same game and players",
				ArgsUsage: "SESSION_ID",
				Action:    a.duplicate,
			},
			{
				Name:      "delete",
				Usage:     "delete a session",
				ArgsUsage: "SESSION_ID",
				Action:    a.delete,
			},
			{
				Name:   "history",
				Usage:  "list stored sessions",
				Action: a.history,
			},
			{
				Name:   "sweep",
				Usage:  "evict expired, unpinned sessions",
				Action: a.sweep,
			},
			{
				Name:      "export",
				Usage:     "export sessions to a spreadsheet",
				ArgsUsage: "SESSION_ID...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "rounds", Aliases: []string{"r"}, Usage: "include round detail"},
					&cli.BoolFlag{Name: "all", Usage: "export every stored session"},
					&cli.StringFlag{Name: "dir", Usage: "output directory", Value: a.cfg.ExportDir},
				},
				Action: a.export,
			},
		},
	}
}

func (a *App) games(c *cli.Context) error {
	site := a.catalog.Site()
	if site.Tagline != "" {
		fmt.Fprintf(a.out, "%s: %s\n\n", site.SiteName, site.Tagline)
	} else if site.SiteName != "" {
		fmt.Fprintf(a.out, "%s\n\n", site.SiteName)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPLAYERS")
	for _, g := range a.catalog.Games() {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\n", g.ID, g.Name, g.MinPlayers, g.MaxPlayers)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if site.FooterText != "" {
		fmt.Fprintf(a.out, "\n%s\n", site.FooterText)
	}
	return nil
}

func (a *App) game(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing GAME_ID")
	}
	id := c.Args().First()
	g, ok := a.catalog.Game(id)
	if !ok {
		return fmt.Errorf("game %q: %w", id, domain.ErrNotFound)
	}

	fmt.Fprintf(a.out, "%s (%s)\n", g.Name, g.ID)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "players\t%d-%d\n", g.MinPlayers, g.MaxPlayers)
	fmt.Fprintf(tw, "accent\t%s\n", g.Accent)
	if g.ScoringInfo != "" {
		fmt.Fprintf(tw, "scoring\t%s\n", g.ScoringInfo)
	}
	if g.RulesPDF != "" {
		fmt.Fprintf(tw, "rules\t%s\n", g.RulesPDF)
	}
	if g.Logo != "" {
		fmt.Fprintf(tw, "logo\t%s\n", g.Logo)
	}
	return tw.Flush()
}

func (a *App) start(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing GAME_ID")
	}
	m, err := a.sessions.Start(c.Context, c.Args().First(), c.Int("players"), c.Args().Tail(), c.String("label"))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "started %s\n", m.Session.ID)
	return a.printSession(m.Session)
}

// match resolves --session, falling back to the active session.
func (a *App) match(c *cli.Context) (*service.Match, error) {
	if id := c.String("session"); id != "" {
		return a.sessions.Open(c.Context, id)
	}
	m, err := a.sessions.Active(c.Context)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no active session, pass --session: %w", err)
	}
	return m, err
}

func (a *App) show(c *cli.Context) error {
	m, err := a.match(c)
	if err != nil {
		return err
	}
	return a.printSession(m.Session)
}

func (a *App) round(c *cli.Context) error {
	m, err := a.match(c)
	if err != nil {
		return err
	}
	scores, err := parseScores(m.Session, c.Args().Slice())
	if err != nil {
		return err
	}
	if err := a.sessions.BeginRound(m, scores); err != nil {
		return err
	}
	if err := a.sessions.CommitRound(c.Context, m); err != nil {
		return err
	}
	return a.printSession(m.Session)
}

// parseScores accepts either one bare score per player in seat order, or
// PLAYER=SCORE pairs where PLAYER is a player id or pseudo.
func parseScores(s domain.Session, args []string) (map[string]int, error) {
	scores := make(map[string]int, len(s.Players))
	if len(args) == 0 {
		return scores, nil
	}

	if !strings.Contains(args[0], "=") {
		if len(args) > len(s.Players) {
			return nil, fmt.Errorf("got %d scores for %d players", len(args), len(s.Players))
		}
		for i, raw := range args {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("score %q is not a whole number", raw)
			}
			scores[s.Players[i].ID] = v
		}
		return scores, nil
	}

	for _, arg := range args {
		who, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected PLAYER=SCORE, got %q", arg)
		}
		id, found := resolvePlayer(s, who)
		if !found {
			return nil, fmt.Errorf("unknown player %q", who)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("score %q is not a whole number", raw)
		}
		scores[id] = v
	}
	return scores, nil
}

func resolvePlayer(s domain.Session, who string) (string, bool) {
	for _, p := range s.Players {
		if p.ID == who {
			return p.ID, true
		}
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Pseudo, who) {
			return p.ID, true
		}
	}
	return "", false
}

func (a *App) undo(c *cli.Context) error {
	m, err := a.match(c)
	if err != nil {
		return err
	}
	if err := a.sessions.UndoRound(c.Context, m); err != nil {
		return err
	}
	return a.printSession(m.Session)
}

func (a *App) end(c *cli.Context) error {
	m, err := a.match(c)
	if err != nil {
		return err
	}
	if err := a.sessions.End(c.Context, m); err != nil {
		return err
	}
	return a.printSession(m.Session)
}

func argID(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.New("missing SESSION_ID")
	}
	return c.Args().First(), nil
}

func (a *App) reopen(c *cli.Context) error {
	id, err := argID(c)
	if err != nil {
		return err
	}
	m, err := a.sessions.Reopen(c.Context, id)
	if err != nil {
		return err
	}
	return a.printSession(m.Session)
}

func (a *App) pin(c *cli.Context) error {
	id, err := argID(c)
	if err != nil {
		return err
	}
	s, err := a.sessions.TogglePin(c.Context, id)
	if err != nil {
		return err
	}
	if s.Pinned {
		fmt.Fprintf(a.out, "%s pinned\n", s.ID)
	} else {
		fmt.Fprintf(a.out, "%s unpinned\n", s.ID)
	}
	return nil
}

func (a *App) duplicate(c *cli.Context) error {
	id, err := argID(c)
	if err != nil {
		return err
	}
	m, err := a.sessions.Duplicate(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "started %s\n", m.Session.ID)
	return a.printSession(m.Session)
}

func (a *App) delete(c *cli.Context) error {
	id, err := argID(c)
	if err != nil {
		return err
	}
	if err := a.sessions.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s deleted\n", id)
	return nil
}

func (a *App) history(c *cli.Context) error {
	sessions, err := a.sessions.History(c.Context)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "no sessions")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGAME\tSTARTED\tSTATUS\tROUNDS\tPIN\tSCORES")
	for _, s := range sessions {
		pin := "☆"
		if s.Pinned {
			pin = "★"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Title(), s.StartedAt.Local().Format(timeLayout), status(s), len(s.Rounds), pin, totalsLine(s))
	}
	return tw.Flush()
}

func (a *App) sweep(c *cli.Context) error {
	removed, err := a.sessions.Sweep(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d expired sessions removed\n", removed)
	return nil
}

func (a *App) export(c *cli.Context) error {
	ids := c.Args().Slice()
	if c.Bool("all") {
		sessions, err := a.sessions.History(c.Context)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	path, err := a.exports.ExportToDir(c.Context, c.String("dir"), ids, c.Bool("rounds"))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *App) printSession(s domain.Session) error {
	fmt.Fprintf(a.out, "%s  [%s]  %s\n", s.Title(), status(s), s.ID)
	fmt.Fprintf(a.out, "started %s", s.StartedAt.Local().Format(timeLayout))
	if s.EndedAt != nil {
		fmt.Fprintf(a.out, "  ended %s", s.EndedAt.Local().Format(timeLayout))
	}
	fmt.Fprintln(a.out)

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"#"}
	for _, p := range s.Players {
		header = append(header, p.Pseudo)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for i, r := range s.Rounds {
		cells := []string{strconv.Itoa(i + 1)}
		for _, v := range scoring.RoundRow(s, r) {
			cells = append(cells, strconv.Itoa(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}

	totals := []string{"total"}
	for _, st := range scoring.Standings(s) {
		totals = append(totals, strconv.Itoa(st.Total))
	}
	fmt.Fprintln(tw, strings.Join(totals, "\t")+"\t")
	return tw.Flush()
}

func status(s domain.Session) string {
	if s.IsEnded() {
		return "ended"
	}
	return "in progress"
}

func totalsLine(s domain.Session) string {
	parts := make([]string, 0, len(s.Players))
	for _, st := range scoring.Standings(s) {
		parts = append(parts, fmt.Sprintf("%s=%d", st.Pseudo, st.Total))
	}
	return strings.Join(parts, " ")
}
