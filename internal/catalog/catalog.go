// Package catalog loads the site descriptor and the game catalog. Both are
// read-only inputs: the session engine only ever sees resolved domain.Game values.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"scorepad/internal/config"
	"scorepad/internal/constants"
	"scorepad/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type Site struct {
	SiteName   string `yaml:"siteName"`
	Tagline    string `yaml:"tagline"`
	FooterText string `yaml:"footerText"`
	LogoPath   string `yaml:"logoPath"`
	UI         struct {
		DefaultAccent string `yaml:"defaultAccent"`
	} `yaml:"ui"`
	Storage struct {
		TTLHours int `yaml:"ttlHours"`
	} `yaml:"storage"`
}

func DefaultSite() Site {
	var s Site
	s.SiteName = "ScorePad"
	s.UI.DefaultAccent = constants.DefaultAccent
	s.Storage.TTLHours = constants.DefaultTTLHours
	return s
}

// TTL is the retention window for unpinned sessions.
func (s Site) TTL() time.Duration {
	hours := s.Storage.TTLHours
	if hours <= 0 {
		hours = constants.DefaultTTLHours
	}
	return time.Duration(hours) * time.Hour
}

type gameRecord struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Accent      string `yaml:"accent"`
	MinPlayers  int    `yaml:"minPlayers"`
	MaxPlayers  int    `yaml:"maxPlayers"`
	ScoringInfo string `yaml:"scoringInfo"`
	RulesPDF    string `yaml:"rulesPdf"`
	Logo        string `yaml:"logo"`
}

type Catalog struct {
	site  Site
	games []domain.Game
	byID  map[string]domain.Game
}

// New validates the games and fills in defaults from the site descriptor.
func New(site Site, games []domain.Game) (*Catalog, error) {
	if site.UI.DefaultAccent == "" {
		site.UI.DefaultAccent = constants.DefaultAccent
	}
	if site.Storage.TTLHours <= 0 {
		site.Storage.TTLHours = constants.DefaultTTLHours
	}

	c := &Catalog{
		site:  site,
		games: make([]domain.Game, 0, len(games)),
		byID:  make(map[string]domain.Game, len(games)),
	}

	for i, g := range games {
		g.ID = strings.TrimSpace(g.ID)
		g.Name = strings.TrimSpace(g.Name)
		if g.ID == "" {
			return nil, fmt.Errorf("game #%d: missing id", i+1)
		}
		if _, dup := c.byID[g.ID]; dup {
			return nil, fmt.Errorf("game %q: duplicate id", g.ID)
		}
		if g.Name == "" {
			g.Name = g.ID
		}
		if g.Accent == "" {
			g.Accent = site.UI.DefaultAccent
		}
		if g.MinPlayers == 0 {
			g.MinPlayers = constants.DefaultMinPlayers
		}
		if g.MaxPlayers == 0 {
			g.MaxPlayers = constants.DefaultMaxPlayers
		}
		if g.MinPlayers < 1 || g.MinPlayers > g.MaxPlayers {
			return nil, fmt.Errorf("game %q: invalid player range %d-%d", g.ID, g.MinPlayers, g.MaxPlayers)
		}

		c.games = append(c.games, g)
		c.byID[g.ID] = g
	}

	return c, nil
}

// Load reads both descriptor files concurrently. A missing site file falls
// back to defaults; the games file is required.
func Load(ctx context.Context, sitePath, gamesPath string) (*Catalog, error) {
	g, gCtx := errgroup.WithContext(ctx)

	site := DefaultSite()
	var records []gameRecord

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(sitePath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read site config: %w", err)
		}
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("failed to parse site config %s: %w", sitePath, err)
		}
		return nil
	})

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(gamesPath)
		if err != nil {
			return fmt.Errorf("failed to read games config: %w", err)
		}
		records, err = parseGames(data)
		if err != nil {
			return fmt.Errorf("failed to parse games config %s: %w", gamesPath, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	games := make([]domain.Game, len(records))
	for i, rec := range records {
		games[i] = domain.Game{
			ID:          rec.ID,
			Name:        rec.Name,
			Accent:      rec.Accent,
			MinPlayers:  rec.MinPlayers,
			MaxPlayers:  rec.MaxPlayers,
			ScoringInfo: rec.ScoringInfo,
			RulesPDF:    rec.RulesPDF,
			Logo:        rec.Logo,
		}
	}
	return New(site, games)
}

// parseGames accepts either a bare list or a mapping with a games key.
func parseGames(data []byte) ([]gameRecord, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, errors.New("empty document")
	}

	doc := root.Content[0]
	var records []gameRecord
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&records); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var wrapped struct {
			Games []gameRecord `yaml:"games"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, err
		}
		records = wrapped.Games
	default:
		return nil, errors.New("expected a list of games")
	}
	return records, nil
}

// NewFromConfig is the fx constructor.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) (*Catalog, error) {
	c, err := Load(context.Background(), cfg.SiteConfigPath, cfg.GamesConfigPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load catalog")
		return nil, err
	}
	if cfg.TTLHoursOverride > 0 {
		c.site.Storage.TTLHours = cfg.TTLHoursOverride
	}

	logger.Debug().Int("games", len(c.games)).Dur("ttl", c.TTL()).Msg("catalog loaded")
	return c, nil
}

func (c *Catalog) Site() Site {
	return c.site
}

func (c *Catalog) TTL() time.Duration {
	return c.site.TTL()
}

func (c *Catalog) Game(id string) (domain.Game, bool) {
	g, ok := c.byID[id]
	return g, ok
}

func (c *Catalog) Games() []domain.Game {
	return append([]domain.Game(nil), c.games...)
}
