package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daddygpt/daddygpt-bot/internal/export"
	"github.com/daddygpt/daddygpt-bot/internal/infra/metrics"
)

type fakeSnapshotter struct {
	calls int
	err   error
}

func (f *fakeSnapshotter) Snapshot(context.Context) (*export.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &export.Snapshot{}, nil
}

type fakeFlag struct {
	enabled bool
	calls   int
}

func (f *fakeFlag) BackupEnabled(context.Context) (bool, error) {
	f.calls++
	return f.enabled, nil
}

type fakeAdmins struct{ ids []int64 }

func (f *fakeAdmins) ListAdmins(context.Context) ([]int64, error) { return f.ids, nil }

type sentDoc struct {
	chatID   int64
	filename string
	caption  string
}

type fakeSender struct {
	docs []sentDoc
	msgs []string
}

func (f *fakeSender) SendDocument(chatID int64, filename string, data []byte, caption string) error {
	f.docs = append(f.docs, sentDoc{chatID: chatID, filename: filename, caption: caption})
	return nil
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.msgs = append(f.msgs, text)
	return nil
}

func newTestService(t *testing.T, snap *fakeSnapshotter, flag *fakeFlag, admins *fakeAdmins, sender *fakeSender) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	return NewService(snap, flag, admins, sender, dir, time.UTC, log, m), dir
}

func TestRunScheduledDisabledDoesNothing(t *testing.T) {
	snap := &fakeSnapshotter{}
	sender := &fakeSender{}
	svc, dir := newTestService(t, snap, &fakeFlag{enabled: false}, &fakeAdmins{ids: []int64{1}}, sender)

	svc.RunScheduled(context.Background())

	assert.Zero(t, snap.calls, "snapshot must not run while disabled")
	assert.Empty(t, sender.docs)
	assert.Empty(t, sender.msgs, "a disabled run is silent, not a failure")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifact written")
}

func TestRunScheduledDeliversToAllAdmins(t *testing.T) {
	sender := &fakeSender{}
	svc, dir := newTestService(t, &fakeSnapshotter{}, &fakeFlag{enabled: true}, &fakeAdmins{ids: []int64{1, 2}}, sender)

	svc.RunScheduled(context.Background())

	require.Len(t, sender.docs, 2)
	wantName := time.Now().UTC().Format("2006-01-02") + ".xlsx"
	for i, id := range []int64{1, 2} {
		assert.Equal(t, id, sender.docs[i].chatID)
		assert.Equal(t, wantName, sender.docs[i].filename)
		assert.Contains(t, sender.docs[i].caption, wantName)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, wantName, entries[0].Name())
}

func TestRunScheduledFailureNotifiesAdmins(t *testing.T) {
	sender := &fakeSender{}
	snap := &fakeSnapshotter{err: errors.New("boom")}
	svc, dir := newTestService(t, snap, &fakeFlag{enabled: true}, &fakeAdmins{ids: []int64{7}}, sender)

	svc.RunScheduled(context.Background())

	assert.Empty(t, sender.docs)
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "Backup failed")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportNowIgnoresDisabledFlag(t *testing.T) {
	flag := &fakeFlag{enabled: false}
	svc, dir := newTestService(t, &fakeSnapshotter{}, flag, &fakeAdmins{}, &fakeSender{})

	name, data, err := svc.ExportNow(context.Background())
	require.NoError(t, err)

	assert.Zero(t, flag.calls, "manual export never consults the flag")
	assert.True(t, strings.HasPrefix(name, "manual_"))
	assert.NotEmpty(t, data)
	entries, rerr := os.ReadDir(dir)
	require.NoError(t, rerr)
	require.Len(t, entries, 1)
	assert.Equal(t, name, entries[0].Name())
}
