package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows    []TimelineRow
	lastOff int
	lastLim int
}

func (s *stubTimelineRepo) TimelineWindow(_ context.Context, _ TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOff = offset
	s.lastLim = limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) TimelineAll(_ context.Context, _ TimelineFilters) ([]TimelineRow, error) {
	return s.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(time.Duration(i) * time.Minute), Action: "authz.decision"}
	}
	return rows
}

func TestTimelineDefaultPageSize(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(25)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 20)
	require.True(t, res.Paging.HasNext)
	require.Equal(t, 2, res.Paging.NextPage)
	require.Equal(t, 21, repo.lastLim)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(80)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, res.Rows, 50)
	require.Equal(t, 50, res.Paging.PageSize)
}

func TestTimelineSecondPage(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(30)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, res.Rows, 10)
	require.False(t, res.Paging.HasNext)
	require.Equal(t, 1, res.Paging.PrevPage)
	require.Equal(t, 20, repo.lastOff)
}

func TestExportReturnsEverything(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(120)}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 120)
}
