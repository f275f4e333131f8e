package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/daddygpt/daddygpt-bot/internal/export"
	"github.com/daddygpt/daddygpt-bot/internal/infra/metrics"
)

// Sender delivers artifacts and notices to admins over the chat
// transport.
type Sender interface {
	SendDocument(chatID int64, filename string, data []byte, caption string) error
	SendMessage(chatID int64, text string) error
}

// Snapshotter produces the full store snapshot the artifact is built
// from.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*export.Snapshot, error)
}

// FlagReader reports whether scheduled backups are enabled.
type FlagReader interface {
	BackupEnabled(ctx context.Context) (bool, error)
}

// AdminLister names the delivery targets.
type AdminLister interface {
	ListAdmins(ctx context.Context) ([]int64, error)
}

// Service produces backup artifacts and distributes them. The
// scheduled path honors the backup_enabled flag; the manual path does
// not.
type Service struct {
	exporter Snapshotter
	settings FlagReader
	authz    AdminLister
	sender   Sender
	dir      string
	loc      *time.Location
	log      *slog.Logger
	metrics  *metrics.Collector
}

func NewService(exporter Snapshotter, settings FlagReader, admins AdminLister,
	sender Sender, dir string, loc *time.Location, log *slog.Logger, m *metrics.Collector) *Service {
	return &Service{
		exporter: exporter, settings: settings, authz: admins,
		sender: sender, dir: dir, loc: loc, log: log, metrics: m,
	}
}

// RunScheduled is the daily job body. A disabled flag skips silently:
// no artifact, no notification.
func (s *Service) RunScheduled(ctx context.Context) {
	enabled, err := s.settings.BackupEnabled(ctx)
	if err != nil {
		s.log.Error("backup: read enabled flag", "err", err)
		s.metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return
	}
	if !enabled {
		s.metrics.BackupsTotal.WithLabelValues("skipped").Inc()
		return
	}

	name := time.Now().In(s.loc).Format("2006-01-02") + ".xlsx"
	data, err := s.produce(ctx, name)
	if err != nil {
		s.log.Error("backup: produce artifact", "err", err)
		s.metrics.BackupsTotal.WithLabelValues("failed").Inc()
		s.notifyAdmins(ctx, fmt.Sprintf("Backup failed: %v", err))
		return
	}

	admins, err := s.authz.ListAdmins(ctx)
	if err != nil {
		s.log.Error("backup: list admins", "err", err)
		s.metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return
	}
	for _, id := range admins {
		if err := s.sender.SendDocument(id, name, data, "Daily backup: "+name); err != nil {
			s.log.Error("backup: deliver", "admin", id, "err", err)
		}
	}
	s.metrics.BackupsTotal.WithLabelValues("ok").Inc()
	s.log.Info("backup: done", "artifact", name, "admins", len(admins))
}

// ExportNow produces an on-demand artifact regardless of the
// backup_enabled flag.
func (s *Service) ExportNow(ctx context.Context) (string, []byte, error) {
	name := "manual_" + time.Now().In(s.loc).Format("2006-01-02_15-04-05") + ".xlsx"
	data, err := s.produce(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

// produce snapshots the store, serializes it and persists the artifact
// under its date-stamped name. Artifacts are never mutated afterwards.
func (s *Service) produce(ctx context.Context, name string) ([]byte, error) {
	snap, err := s.exporter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := export.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Service) notifyAdmins(ctx context.Context, text string) {
	admins, err := s.authz.ListAdmins(ctx)
	if err != nil {
		s.log.Error("backup: list admins for notice", "err", err)
		return
	}
	for _, id := range admins {
		if err := s.sender.SendMessage(id, text); err != nil {
			s.log.Error("backup: notify", "admin", id, "err", err)
		}
	}
}
