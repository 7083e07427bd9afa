package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-metrics/internal/domain"
)

func memberSeries(counts ...int64) domain.Series {
	s := domain.Series{GuildID: "g1", Kind: domain.MetricMembers}
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC).Unix()
	for i, c := range counts {
		ts := base + int64(i)*86400
		s.Points = append(s.Points, domain.Point{Unix: ts, Value: c})
	}
	return s
}

func messageSeries(dates []string, counts []int64) domain.Series {
	s := domain.Series{GuildID: "g1", Kind: domain.MetricMessages}
	for i, d := range dates {
		s.Points = append(s.Points, domain.Point{Key: d, Value: counts[i]})
	}
	return s
}

func TestBuilder_LengthsAndOrderMatchSeries(t *testing.T) {
	b := NewBuilder("en")

	for _, series := range []domain.Series{
		memberSeries(),
		memberSeries(10),
		memberSeries(10, 30, 20, 20, 5),
	} {
		ds, err := b.Build(series, domain.MetricMembers, "")
		require.NoError(t, err)
		assert.Len(t, ds.Labels, series.Len())
		assert.Len(t, ds.Values, series.Len())
		for i, p := range series.Points {
			assert.Equal(t, p.Value, ds.Values[i])
		}
	}
}

func TestBuilder_Members(t *testing.T) {
	ds, err := NewBuilder("en").Build(memberSeries(10, 12), domain.MetricMembers, "ru-RU")
	require.NoError(t, err)

	assert.Equal(t, ChartLine, ds.Chart)
	assert.Equal(t, "Количество участников", ds.Title)
	assert.Equal(t, []string{"01.10.2026", "02.10.2026"}, ds.Labels)
	assert.Equal(t, "rgba(75, 192, 192, 1)", ds.Style.BorderColor)
	assert.False(t, ds.Style.Fill)
	assert.True(t, ds.Style.BeginAtZero)
	assert.Equal(t, 800, ds.Width)
	assert.Equal(t, 400, ds.Height)
	assert.Equal(t, "members.png", ds.FileName)
}

func TestBuilder_Messages(t *testing.T) {
	series := messageSeries([]string{"2026-10-09", "2026-10-15"}, []int64{4, 9})

	ds, err := NewBuilder("en").Build(series, domain.MetricMessages, "")
	require.NoError(t, err)

	assert.Equal(t, ChartBar, ds.Chart)
	assert.Equal(t, "Message count", ds.Title)
	assert.Equal(t, "en", ds.Locale)
	assert.Equal(t, []string{"10/9/2026", "10/15/2026"}, ds.Labels)
	assert.Equal(t, []int64{4, 9}, ds.Values)
	assert.Equal(t, "rgba(153, 102, 255, 0.6)", ds.Style.BackgroundColor)
	assert.Equal(t, "messages.png", ds.FileName)
}

func TestBuilder_LocaleFallback(t *testing.T) {
	series := messageSeries([]string{"2026-10-15"}, []int64{1})

	// unsupported request falls back to the configured default
	ds, err := NewBuilder("ru").Build(series, domain.MetricMessages, "ja")
	require.NoError(t, err)
	assert.Equal(t, "ru", ds.Locale)
	assert.Equal(t, "Количество сообщений", ds.Title)

	ds, err = NewBuilder("").Build(series, domain.MetricMessages, "de-AT")
	require.NoError(t, err)
	assert.Equal(t, "de", ds.Locale)
	assert.Equal(t, []string{"15.10.2026"}, ds.Labels)
}

func TestBuilder_UnknownKind(t *testing.T) {
	_, err := NewBuilder("en").Build(memberSeries(1), "reactions", "")
	assert.True(t, domain.IsRenderError(err))
}

func TestDataset_Validate(t *testing.T) {
	ds := Dataset{Labels: []string{"a", "b"}, Values: []int64{1}, Width: 800, Height: 400}
	assert.True(t, domain.IsRenderError(ds.Validate()))

	_, err := NewTextRenderer().Render(context.Background(), ds)
	assert.True(t, domain.IsRenderError(err))
}

func TestTextRenderer(t *testing.T) {
	b := NewBuilder("en")
	r := NewTextRenderer()
	ctx := context.Background()

	line, err := b.Build(memberSeries(10, 30, 20), domain.MetricMembers, "")
	require.NoError(t, err)
	out, err := r.Render(ctx, line)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Member count (10/1/2026 - 10/3/2026)")

	bars, err := b.Build(messageSeries([]string{"2026-10-14", "2026-10-15"}, []int64{2, 4}), domain.MetricMessages, "")
	require.NoError(t, err)
	out, err = r.Render(ctx, bars)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Message count", lines[0])
	assert.True(t, strings.HasSuffix(lines[2], " 4"))
	assert.Greater(t, strings.Count(lines[2], "█"), strings.Count(lines[1], "█"))

	empty, err := b.Build(memberSeries(), domain.MetricMembers, "")
	require.NoError(t, err)
	out, err = r.Render(ctx, empty)
	require.NoError(t, err)
	assert.Contains(t, string(out), "No data available")
}

type stubSource struct {
	series domain.Series
	err    error
}

func (s stubSource) Query(ctx context.Context, guildID string, kind domain.MetricKind, frame domain.TimeFrame) (domain.Series, error) {
	return s.series, s.err
}

type brokenRenderer struct{}

func (brokenRenderer) Render(ctx context.Context, ds Dataset) ([]byte, error) {
	return nil, errors.New("canvas unavailable")
}

func TestService(t *testing.T) {
	ctx := context.Background()
	req := Request{GuildID: "g1", Kind: domain.MetricMembers, Frame: domain.FrameAll}

	svc := NewService(stubSource{series: memberSeries(3, 4)}, NewBuilder("en"), NewTextRenderer(), nil)
	ds, out, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ds.Values)
	assert.NotEmpty(t, out)

	storageErr := domain.NewStorageError("list member samples", errors.New("no such table"))
	svc = NewService(stubSource{err: storageErr}, NewBuilder("en"), NewTextRenderer(), nil)
	_, _, err = svc.Render(ctx, req)
	assert.True(t, domain.IsStorageError(err))

	svc = NewService(stubSource{series: memberSeries(1)}, NewBuilder("en"), brokenRenderer{}, nil)
	_, _, err = svc.Render(ctx, req)
	assert.True(t, domain.IsRenderError(err))
	assert.ErrorContains(t, err, "canvas unavailable")
}

func TestBuilder_FailureMessage(t *testing.T) {
	b := NewBuilder("ru")
	storageErr := domain.NewStorageError("list member samples", errors.New("locked"))
	renderErr := &domain.RenderError{Reason: "renderer failed"}

	assert.Equal(t, "Произошла ошибка при получении данных участников.", b.FailureMessage(domain.MetricMembers, storageErr, ""))
	assert.Equal(t, "Произошла ошибка при создании графика сообщений.", b.FailureMessage(domain.MetricMessages, renderErr, ""))
	assert.Equal(t, "Failed to draw the member chart.", b.FailureMessage(domain.MetricMembers, renderErr, "en-GB"))
	assert.Equal(t, "Failed to load message statistics.", b.FailureMessage(domain.MetricMessages, storageErr, "en"))
}
