package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scorepad/internal/domain"
	"scorepad/internal/export"
	"scorepad/internal/store"

	"github.com/rs/zerolog"
)

type ExportService struct {
	sessions *SessionService
	store    *store.SessionStore
	renderer export.Renderer
	title    string
	logger   zerolog.Logger
}

func NewExportService(sessions *SessionService, st *store.SessionStore, renderer export.Renderer, title string, logger zerolog.Logger) *ExportService {
	return &ExportService{sessions: sessions, store: st, renderer: renderer, title: title, logger: logger}
}

// Snapshots resolves ids into snapshots, newest start first. Unknown ids are
// skipped; an empty selection is ErrNothingSelected.
func (e *ExportService) Snapshots(ctx context.Context, ids []string, includeRounds bool) ([]export.Snapshot, error) {
	if len(ids) == 0 {
		return nil, domain.ErrNothingSelected
	}
	if _, err := e.sessions.Sweep(ctx); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var selected []domain.Session
	for _, s := range all {
		if wanted[s.ID] {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		e.logger.Warn().Strs("ids", ids).Msg("none of the requested sessions exist")
		return nil, domain.ErrNothingSelected
	}

	snaps := export.Build(selected, includeRounds)
	export.SortByStartDesc(snaps)
	return snaps, nil
}

// Export renders the selected sessions to w.
func (e *ExportService) Export(ctx context.Context, w io.Writer, ids []string, includeRounds bool) error {
	snaps, err := e.Snapshots(ctx, ids, includeRounds)
	if err != nil {
		return err
	}
	return e.render(w, snaps, includeRounds)
}

func (e *ExportService) render(w io.Writer, snaps []export.Snapshot, includeRounds bool) error {
	doc := export.Document{
		Title:         e.title,
		GeneratedAt:   e.store.Now(),
		IncludeRounds: includeRounds,
		Sessions:      snaps,
	}
	if err := e.renderer.Render(w, doc); err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}
	return nil
}

// ExportToDir writes a timestamped export file into dir and returns its path.
func (e *ExportService) ExportToDir(ctx context.Context, dir string, ids []string, includeRounds bool) (string, error) {
	snaps, err := e.Snapshots(ctx, ids, includeRounds)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, export.FileName(e.store.Now(), e.renderer.Extension()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if err := e.render(f, snaps, includeRounds); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	e.logger.Info().Str("path", path).Int("sessions", len(snaps)).Msg("export written")
	return path, nil
}
