package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/ingest"
	"guild-metrics/internal/query"
	"guild-metrics/internal/report"
	"guild-metrics/internal/repository"
	"guild-metrics/internal/util"
)

// MockMetricStore wraps the in-memory store and fails every call once Err is set.
type MockMetricStore struct {
	*repository.MemoryStore
	Err error
}

func (m *MockMetricStore) AppendMemberSample(ctx context.Context, guildID string, ts, count int64) error {
	if m.Err != nil {
		return domain.NewStorageError("append member sample", m.Err)
	}
	return m.MemoryStore.AppendMemberSample(ctx, guildID, ts, count)
}

func (m *MockMetricStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	if m.Err != nil {
		return domain.NewStorageError("increment message counter", m.Err)
	}
	return m.MemoryStore.IncrementMessageCounter(ctx, guildID, date)
}

func (m *MockMetricStore) ListMemberSamples(ctx context.Context, guildID string) ([]domain.MemberSample, error) {
	if m.Err != nil {
		return nil, domain.NewStorageError("list member samples", m.Err)
	}
	return m.MemoryStore.ListMemberSamples(ctx, guildID)
}

func (m *MockMetricStore) ListMessageCounters(ctx context.Context, guildID string) ([]domain.MessageCounter, error) {
	if m.Err != nil {
		return nil, domain.NewStorageError("list message counters", m.Err)
	}
	return m.MemoryStore.ListMessageCounters(ctx, guildID)
}

type mockScheduler struct {
	guilds map[string]bool
}

func (m *mockScheduler) Add(guildID string) bool {
	if guildID == "" || m.guilds[guildID] {
		return false
	}
	m.guilds[guildID] = true
	return true
}

func (m *mockScheduler) Remove(guildID string) bool {
	ok := m.guilds[guildID]
	delete(m.guilds, guildID)
	return ok
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newCharts(store domain.MetricStore) *Charts {
	engine := query.NewEngine(store, query.WithClock(func() time.Time { return fixedNow }))
	builder := report.NewBuilder("en")
	charts := &Charts{}
	charts.Init(report.NewService(engine, builder, report.NewTextRenderer(), nil), builder, &util.MetricsLogger{})
	return charts
}

func chartRequest(guild, metric, rawQuery string) *http.Request {
	req, _ := http.NewRequest("GET", "/guilds/"+guild+"/"+metric+"?"+rawQuery, nil)
	return mux.SetURLVars(req, map[string]string{"guild": guild, "metric": metric})
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var apiResponse APIResponse
	body, err := io.ReadAll(rr.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(body, &apiResponse))
	return apiResponse
}

func TestGetChartHandler(t *testing.T) {
	mockStore := &MockMetricStore{MemoryStore: repository.NewMemoryStore()}
	ctx := context.Background()

	now := fixedNow.Unix()
	for i, c := range []int64{10, 11, 12} {
		mockStore.AppendMemberSample(ctx, "g1", now-int64(3-i)*3600, c)
	}
	// older than a day
	mockStore.AppendMemberSample(ctx, "g1", now-100000, 9)
	mockStore.IncrementMessageCounter(ctx, "g1", "2026-10-15")
	mockStore.IncrementMessageCounter(ctx, "g1", "2026-10-12")

	charts := newCharts(mockStore)

	// case 1: members, default timeframe
	rr := httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("g1", "members", ""))

	assert.Equal(t, http.StatusOK, rr.Code, "Expected status OK")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), "Expected Content-Type: application/json")

	apiResponse := decode(t, rr)
	assert.True(t, apiResponse.Status, "Expected API status to be true for success")
	assert.Equal(t, API_SUCCESS, apiResponse.ErrorCode, "Expected API_SUCCESS error code")
	assert.Empty(t, apiResponse.Error, "Expected no error message on success")

	var chart ChartResponse
	valueBytes, _ := json.Marshal(apiResponse.Value)
	require.NoError(t, json.Unmarshal(valueBytes, &chart))
	assert.Equal(t, domain.FrameDay, chart.Series.Frame)
	assert.Len(t, chart.Series.Points, 3, "Expected only the last day of samples")
	assert.Equal(t, []int64{10, 11, 12}, chart.Dataset.Values)
	assert.Equal(t, report.ChartLine, chart.Dataset.Chart)

	// case 2: messages for the week in Russian
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("g1", "messages", "timeframe=week&locale=ru"))
	assert.Equal(t, http.StatusOK, rr.Code)
	valueBytes, _ = json.Marshal(decode(t, rr).Value)
	require.NoError(t, json.Unmarshal(valueBytes, &chart))
	assert.Equal(t, []string{"12.10.2026", "15.10.2026"}, chart.Dataset.Labels)
	assert.Equal(t, "Количество сообщений", chart.Dataset.Title)

	// case 3: text rendering
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("g1", "messages", "timeframe=all&format=text"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Message count")

	// case 4: empty guild is an empty series, not an error
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("nobody", "members", "timeframe=year"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode(t, rr).Status)

	// case 5: unknown metric
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("g1", "reactions", ""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	apiResponse = decode(t, rr)
	assert.False(t, apiResponse.Status, "Expected API status to be false for error")
	assert.Equal(t, UNKNOWN_METRIC, apiResponse.ErrorCode)
}

func TestGetChartHandler_Failures(t *testing.T) {
	mockStore := &MockMetricStore{MemoryStore: repository.NewMemoryStore(), Err: errors.New("database is locked")}
	charts := newCharts(mockStore)

	// case 1: storage failure shows the user-facing text
	rr := httptest.NewRecorder()
	charts.GetChartHandler(rr, chartRequest("g1", "members", "locale=ru"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	apiResponse := decode(t, rr)
	assert.False(t, apiResponse.Status)
	assert.Equal(t, STORAGE_FAILURE, apiResponse.ErrorCode)
	assert.Equal(t, "Произошла ошибка при получении данных участников.", apiResponse.Error)

	// case 2: context cancelled
	mockStore.Err = nil
	req := chartRequest("g1", "messages", "")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, req)
	assert.Equal(t, http.StatusRequestTimeout, rr.Code, "Expected Request Timeout for cancelled context")
	assert.Equal(t, REQUEST_CANCELLED, decode(t, rr).ErrorCode)

	// case 3: wrong method
	req, _ = http.NewRequest("POST", "/guilds/g1/members", nil)
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// case 4: blank guild
	req, _ = http.NewRequest("GET", "/guilds/%20/members", nil)
	req = mux.SetURLVars(req, map[string]string{"guild": " ", "metric": "members"})
	rr = httptest.NewRecorder()
	charts.GetChartHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_PARAMETERS, decode(t, rr).ErrorCode)
}

func TestEventHandlers(t *testing.T) {
	mockStore := &MockMetricStore{MemoryStore: repository.NewMemoryStore()}
	scheduler := &mockScheduler{guilds: map[string]bool{"g0": true}}
	ingestor := ingest.New(mockStore, ingest.WithClock(func() time.Time { return fixedNow }))

	events := &Events{}
	events.Init(scheduler, ingestor, &util.MetricsLogger{})

	post := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", "/events", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		handler(rr, req)
		return rr
	}

	// ready
	rr := post(events.ReadyHandler, `{"guild_ids": ["g0", "g1", "g2"]}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	var ready ReadyResult
	valueBytes, _ := json.Marshal(decode(t, rr).Value)
	json.Unmarshal(valueBytes, &ready)
	assert.Equal(t, ReadyResult{Scheduled: 2, Known: 1}, ready)

	// messages
	for i := 0; i < 3; i++ {
		rr = post(events.MessageHandler, `{"guild_id": "g1"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	counters, err := mockStore.ListMessageCounters(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []domain.MessageCounter{{GuildID: "g1", Date: "2026-10-15", Count: 3}}, counters)

	// direct message
	rr = post(events.MessageHandler, `{}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	var msg MessageResult
	valueBytes, _ = json.Marshal(decode(t, rr).Value)
	json.Unmarshal(valueBytes, &msg)
	assert.False(t, msg.Counted)

	// storage failure drops the message
	mockStore.Err = errors.New("disk I/O error")
	rr = post(events.MessageHandler, `{"guild_id": "g1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, STORAGE_FAILURE, decode(t, rr).ErrorCode)

	// leave
	rr = post(events.LeaveHandler, `{"guild_id": "g1"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, scheduler.guilds["g1"])

	// bad bodies
	for _, h := range []http.HandlerFunc{events.ReadyHandler, events.MessageHandler, events.LeaveHandler} {
		rr = post(h, "invalid json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, INVALID_REQUEST_BODY, decode(t, rr).ErrorCode)
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, API_SUCCESS, GetErrorCode(nil))
	assert.Equal(t, UNKNOWN_METRIC, GetErrorCode(domain.ErrUnknownMetric))
	assert.Equal(t, STORAGE_FAILURE, GetErrorCode(domain.NewStorageError("x", errors.New("y"))))
	assert.Equal(t, RENDER_FAILURE, GetErrorCode(&domain.RenderError{Reason: "x"}))
	assert.Equal(t, REQUEST_CANCELLED, GetErrorCode(domain.NewStorageError("x", context.Canceled)))
	assert.Equal(t, API_FAILURE, GetErrorCode(errors.New("boom")))
}
