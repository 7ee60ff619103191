package ticketstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

type recordingListener struct {
	mu        sync.Mutex
	completed []string
	canceled  []string
}

func (l *recordingListener) TicketCompleted(_ context.Context, t *domain.Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, t.ID)
}

func (l *recordingListener) TicketCanceled(_ context.Context, t *domain.Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.canceled = append(l.canceled, t.ID)
}

func newStartedStore(t *testing.T, dir string) *Store {
	t.Helper()
	s := New(dir, zap.NewNop())
	require.NoError(t, s.Start())
	t.Cleanup(s.Shutdown)
	return s
}

func newTicket(kind domain.TicketKind, number string) *domain.Ticket {
	cost := decimal.RequireFromString("1.25")
	return &domain.Ticket{
		ID:          uuid.NewString(),
		Number:      number,
		Kind:        kind,
		Status:      domain.TicketStatusPending,
		OwnerID:     "user-1",
		JobName:     "thesis-" + number,
		SubmittedAt: time.Now().UTC(),
		DeliveryAt:  time.Now().UTC().Add(time.Hour),
		Options:     map[string]string{"media": "iso_a4_210x297mm", "sides": "one-sided"},
		PrinterName: "proxy-1",
		Copies:      2,
		Pages:       4,
		Sheets:      8,
		Cost:        &cost,
	}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAddRemoveRestoresStats(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	before := s.Stats()

	var ids []string
	for i := range 5 {
		kind := domain.TicketKindCopy
		var payload []byte
		if i%2 == 0 {
			kind = domain.TicketKindPrint
			payload = []byte(fmt.Sprintf("%%PDF-1.7 document %d", i))
		}
		tk := newTicket(kind, fmt.Sprintf("AAAA-000%d", i))
		require.NoError(t, s.Add(tk, payload))
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, domain.QueueStats{CopyTickets: 2, PrintTickets: 3}, s.Stats())

	for _, id := range ids {
		_, err := s.Remove(context.Background(), id, false)
		require.NoError(t, err)
	}
	assert.Equal(t, before, s.Stats())
	assert.Empty(t, listFiles(t, s.Dir()))
}

func TestAddPersistsBeforeIndexing(t *testing.T) {
	dir := t.TempDir()
	s := newStartedStore(t, dir)

	tk := newTicket(domain.TicketKindPrint, "ABCD-0001")
	require.NoError(t, s.Add(tk, []byte("payload")))

	assert.FileExists(t, descriptorPath(dir, tk.ID))
	assert.FileExists(t, payloadPath(dir, tk.ID))

	got, err := s.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Number, got.Number)

	byNumber, err := s.GetByNumber("ABCD-0001")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, byNumber.ID)
}

func TestAddFailureLeavesNoState(t *testing.T) {
	dir := t.TempDir()
	s := newStartedStore(t, dir)
	require.NoError(t, os.RemoveAll(dir))

	tk := newTicket(domain.TicketKindCopy, "ABCD-0002")
	err := s.Add(tk, nil)
	require.Error(t, err)

	_, err = s.Get(tk.ID)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.Zero(t, s.Stats().Total())
}

func TestAddRejectsDuplicates(t *testing.T) {
	s := newStartedStore(t, t.TempDir())

	tk := newTicket(domain.TicketKindCopy, "ABCD-0003")
	require.NoError(t, s.Add(tk, nil))

	err := s.Add(tk, nil)
	assert.ErrorIs(t, err, ErrDuplicateTicket)

	other := newTicket(domain.TicketKindCopy, "ABCD-0003")
	err = s.Add(other, nil)
	assert.ErrorIs(t, err, ErrDuplicateNumber)

	assert.Equal(t, 1, s.Len())
}

func TestAddPrintTicketRequiresPayload(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	err := s.Add(newTicket(domain.TicketKindPrint, "ABCD-0004"), nil)
	assert.ErrorIs(t, err, ErrPayloadRequired)
}

func TestUpdateReplacesNumberIndex(t *testing.T) {
	s := newStartedStore(t, t.TempDir())

	tk := newTicket(domain.TicketKindCopy, "ABCD-0005")
	require.NoError(t, s.Add(tk, nil))

	tk.Number = "ABCD-0005-R"
	tk.Reopened = true
	require.NoError(t, s.Update(tk))

	_, err := s.GetByNumber("ABCD-0005")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	got, err := s.GetByNumber("ABCD-0005-R")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, []string{tk.ID}, s.ReopenedIDs())
	assert.Equal(t, 1, s.Stats().CopyTickets)
}

func TestUpdateRejectsUnknownAndTakenNumbers(t *testing.T) {
	s := newStartedStore(t, t.TempDir())

	err := s.Update(newTicket(domain.TicketKindCopy, "ABCD-0006"))
	assert.ErrorIs(t, err, ErrTicketNotFound)

	a := newTicket(domain.TicketKindCopy, "ABCD-0007")
	b := newTicket(domain.TicketKindCopy, "ABCD-0008")
	require.NoError(t, s.Add(a, nil))
	require.NoError(t, s.Add(b, nil))

	b.Number = a.Number
	assert.ErrorIs(t, s.Update(b), ErrDuplicateNumber)

	got, err := s.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-0008", got.Number)
}

func TestRemoveNotifiesListener(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	listener := &recordingListener{}
	s.SetListener(listener)

	done := newTicket(domain.TicketKindCopy, "ABCD-0009")
	dropped := newTicket(domain.TicketKindCopy, "ABCD-0010")
	require.NoError(t, s.Add(done, nil))
	require.NoError(t, s.Add(dropped, nil))

	_, err := s.Remove(context.Background(), done.ID, true)
	require.NoError(t, err)
	_, err = s.Remove(context.Background(), dropped.ID, false)
	require.NoError(t, err)

	assert.Equal(t, []string{done.ID}, listener.completed)
	assert.Equal(t, []string{dropped.ID}, listener.canceled)

	_, err = s.Remove(context.Background(), done.ID, true)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestGetReturnsCopies(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	tk := newTicket(domain.TicketKindCopy, "ABCD-0011")
	require.NoError(t, s.Add(tk, nil))

	got, err := s.Get(tk.ID)
	require.NoError(t, err)
	got.Options["media"] = "na_letter_8.5x11in"

	again, err := s.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "iso_a4_210x297mm", again.Options["media"])
}

func TestFilter(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := newTicket(domain.TicketKindCopy, "AAAA-1111")
	a.OwnerID, a.JobName, a.PrinterGroup = "alice", "Poster", "library"
	a.DeliveryAt = base.Add(2 * time.Hour)
	b := newTicket(domain.TicketKindCopy, "BBBB-2222")
	b.OwnerID, b.JobName, b.PrinterGroup = "bob", "Thesis binding", "library"
	b.DeliveryAt = base.Add(time.Hour)
	c := newTicket(domain.TicketKindPrint, "CCCC-3333")
	c.OwnerID, c.JobName, c.PrinterGroup = "alice", "Flyer", "office"
	c.DeliveryAt = base.Add(3 * time.Hour)

	require.NoError(t, s.Add(a, nil))
	require.NoError(t, s.Add(b, nil))
	require.NoError(t, s.Add(c, []byte("flyer")))

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all ordered by delivery", Filter{}, []string{b.ID, a.ID, c.ID}},
		{"owner", Filter{OwnerID: "alice"}, []string{a.ID, c.ID}},
		{"group", Filter{GroupID: "library"}, []string{b.ID, a.ID}},
		{"search job name", Filter{Search: "thesis"}, []string{b.ID}},
		{"search number", Filter{Search: "cccc"}, []string{c.ID}},
		{"no match", Filter{OwnerID: "carol"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Filter(tc.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, tk := range got {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	t.Run("results are detached", func(t *testing.T) {
		got, err := s.Filter(Filter{OwnerID: "bob"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		got[0].JobName = "changed"

		cached, err := s.Get(b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Thesis binding", cached.JobName)
	})
}

func TestPayloadRoundTripAndCorruption(t *testing.T) {
	dir := t.TempDir()
	s := newStartedStore(t, dir)
	raw := []byte("%PDF-1.7 rendered pages")

	tk := newTicket(domain.TicketKindPrint, "ABCD-0012")
	require.NoError(t, s.Add(tk, raw))

	got, err := s.Payload(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	stored, err := os.ReadFile(payloadPath(dir, tk.ID))
	require.NoError(t, err)
	assert.NotEqual(t, raw, stored)

	require.NoError(t, os.WriteFile(payloadPath(dir, tk.ID), []byte("garbage"), 0o600))
	_, err = s.Payload(tk.ID)
	assert.ErrorIs(t, err, ErrPayloadCorrupt)
}

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zap.NewNop())
	require.NoError(t, s.Start())

	tk := newTicket(domain.TicketKindPrint, "ABCD-0013")
	tk.Reopened = true
	require.NoError(t, s.Add(tk, []byte("doc")))
	s.Shutdown()

	assert.ErrorIs(t, s.Add(newTicket(domain.TicketKindCopy, "ABCD-0014"), nil), ErrStoreClosed)

	restarted := newStartedStore(t, dir)
	got, err := restarted.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Number, got.Number)
	assert.True(t, got.Cost.Equal(*tk.Cost))
	assert.Equal(t, []string{tk.ID}, restarted.ReopenedIDs())
	assert.Equal(t, domain.QueueStats{PrintTickets: 1}, restarted.Stats())

	payload, err := restarted.Payload(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), payload)
}

func TestConcurrentMutations(t *testing.T) {
	s := newStartedStore(t, t.TempDir())

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				tk := newTicket(domain.TicketKindCopy, fmt.Sprintf("W%03d-%04d", w, i))
				if err := s.Add(tk, nil); err != nil {
					errs <- err
					continue
				}
				_ = s.Stats()
				if i%2 == 0 {
					if _, err := s.Remove(context.Background(), tk.ID, true); err != nil {
						errs <- err
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	remaining := workers * (perWorker / 2)
	assert.Equal(t, remaining, s.Stats().CopyTickets)
	got, err := s.Filter(Filter{})
	require.NoError(t, err)
	assert.Len(t, got, remaining)
}

func TestGetByPrintOut(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	tk := newTicket(domain.TicketKindPrint, "ABCD-0015")
	require.NoError(t, s.Add(tk, []byte("doc")))

	_, err := s.GetByPrintOut("job-7")
	assert.True(t, errors.Is(err, ErrTicketNotFound))

	id := "job-7"
	tk.PrintOutID = &id
	tk.Status = domain.TicketStatusDispatched
	require.NoError(t, s.Update(tk))

	got, err := s.GetByPrintOut("job-7")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
}

func TestPayloadReadsRacingShutdown(t *testing.T) {
	s := newStartedStore(t, t.TempDir())
	tk := newTicket(domain.TicketKindPrint, "PR-RACE")
	payload := []byte("%PDF-1.7 shutdown race")
	require.NoError(t, s.Add(tk, payload))

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, 8*50)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range 50 {
				raw, err := s.Payload(tk.ID)
				if err != nil {
					errs <- err
					continue
				}
				if string(raw) != string(payload) {
					errs <- fmt.Errorf("payload mismatch: %q", raw)
				}
			}
		}()
	}
	close(start)
	s.Shutdown()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrStoreClosed)
	}
	_, err := s.Payload(tk.ID)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestCodecCloseRejectsLaterDecodes(t *testing.T) {
	codec, err := newPayloadCodec()
	require.NoError(t, err)
	stored := codec.compress([]byte("pages"))

	raw, err := codec.decompress(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("pages"), raw)

	codec.close()
	codec.close()
	_, err = codec.decompress(stored)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
