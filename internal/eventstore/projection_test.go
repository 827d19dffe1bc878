package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func must[T Event](e T, err error) T {
	if err != nil {
		panic(err)
	}
	return e
}

func TestProjectionLifecycle(t *testing.T) {
	j := NewJournal(newTestStore(t), 10, nil)
	ctx := t.Context()

	j.Record(ctx, must(NewRunStarted("r1", RunStartedData{Title: "Report", Sections: 3, StreamID: "s1"})))
	active := j.Projection().Active()
	require.Len(t, active, 1)
	require.Equal(t, "Report", active[0].Title)

	j.Record(ctx, must(NewRunEnhanced("r1", RunEnhancedData{Provider: "mock", Attempts: 1})))
	j.Record(ctx, must(NewRunCompleted("r1", RunCompletedData{Sections: 3, Pages: 4})))
	j.Record(ctx, must(NewRunExported("r1", RunExportedData{Format: "html", Path: "mem://document.html"})))
	j.Record(ctx, must(NewExportFailed("r1", ExportFailedData{Format: "pdf", Message: "no converter"})))

	s, ok := j.Projection().Run("r1")
	require.True(t, ok)
	require.Equal(t, "completed", s.Status)
	require.Equal(t, 3, s.Sections)
	require.Equal(t, "s1", s.StreamID)
	require.Equal(t, "mock", s.AI.Provider)
	require.Equal(t, "mem://document.html", s.Exports["html"])
	require.Equal(t, "no converter", s.ExportErrors["pdf"])
	require.Empty(t, j.Projection().Active())
	require.Len(t, j.Projection().History(), 1)
}

func TestProjectionKeepsFirstTerminalEvent(t *testing.T) {
	j := NewJournal(newTestStore(t), 10, nil)
	ctx := t.Context()

	j.Record(ctx, must(NewRunStarted("r1", RunStartedData{Title: "Report"})))
	j.Record(ctx, must(NewRunCompleted("r1", RunCompletedData{Sections: 2, Pages: 3})))
	j.Record(ctx, must(NewRunFailed("r1", RunFailedData{Phase: "export", Message: "late"})))

	s, ok := j.Projection().Run("r1")
	require.True(t, ok)
	require.Equal(t, "completed", s.Status)
	require.Empty(t, s.ErrorMessage)
	require.Len(t, j.Projection().History(), 1)
}

func TestTerminalAndDecode(t *testing.T) {
	require.True(t, Terminal(TypeRunCompleted))
	require.True(t, Terminal(TypeRunFailed))
	require.False(t, Terminal(TypeRunExported))
	require.False(t, Terminal(TypeRunStarted))

	e := must(NewRunFailed("r9", RunFailedData{Phase: "ai", Message: "timeout"}))
	var d RunFailedData
	require.NoError(t, Decode(e, &d))
	require.Equal(t, "timeout", d.Message)

	bad := &Entry{Run: "r9", Kind: TypeRunFailed, Data: []byte("{")}
	require.ErrorContains(t, Decode(bad, &d), "decode RunFailed payload for run r9")
}

func TestProjectionRebuild(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	base := time.Now().Add(-time.Hour)
	record := func(at time.Time, e Event) {
		store.now = func() time.Time { return at }
		require.NoError(t, Record(ctx, store, e))
	}
	record(base, must(NewRunStarted("old", RunStartedData{Title: "Old"})))
	record(base.Add(time.Second), must(NewRunFailed("old", RunFailedData{Phase: "section:1", Message: "boom"})))
	record(base.Add(time.Minute), must(NewRunStarted("new", RunStartedData{Title: "New"})))
	record(base.Add(2*time.Minute), must(NewRunCompleted("new", RunCompletedData{Sections: 1})))
	record(base.Add(3*time.Minute), must(NewRunStarted("live", RunStartedData{Title: "Live"})))

	p := NewRunHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(ctx))
	h := p.History()
	require.Len(t, h, 2)
	require.Equal(t, "new", h[0].RunID)
	require.Equal(t, "old", h[1].RunID)
	require.Equal(t, "failed", h[1].Status)
	require.Equal(t, "section:1", h[1].ErrorPhase)
	require.Equal(t, time.Second, h[1].Duration)
	require.Len(t, p.Active(), 1)
	require.False(t, p.LastSyncTime().IsZero())
}

func TestProjectionBoundedHistory(t *testing.T) {
	p := NewRunHistoryProjection(NoopStore{}, 2)
	for _, id := range []string{"a", "b", "c"} {
		p.Apply(must(NewRunStarted(id, RunStartedData{})))
		p.Apply(must(NewRunCompleted(id, RunCompletedData{})))
	}
	h := p.History()
	require.Len(t, h, 2)
	require.Equal(t, "c", h[0].RunID)
	_, ok := p.Run("a")
	require.False(t, ok)
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Record(t.Context(), nil)
	require.Nil(t, j.Projection())
	require.NoError(t, j.Close())
}
