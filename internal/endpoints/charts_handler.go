package endpoints

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/report"
	"guild-metrics/internal/util"
)

// ChartService is the query, build and render chain behind a chart request.
type ChartService interface {
	Dataset(ctx context.Context, req report.Request) (domain.Series, report.Dataset, error)
	Render(ctx context.Context, req report.Request) (report.Dataset, []byte, error)
}

type ChartResponse struct {
	Series  domain.Series  `json:"series"`
	Dataset report.Dataset `json:"dataset"`
}

type Charts struct {
	Response APIResponse
	logger   *util.MetricsLogger
	service  ChartService
	builder  *report.Builder
}

func (c *Charts) Init(service ChartService, builder *report.Builder, webSlogger *util.MetricsLogger) {
	c.service = service
	c.builder = builder
	c.logger = webSlogger
}

// GetChartHandler serves GET /guilds/{guild}/{metric}?timeframe=day&format=json|text&locale=.
// Without a locale parameter the Accept-Language header decides.
func (c *Charts) GetChartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		c.Response.WriteErrorResponseWithStatusCode(w, errors.New("method Not Allowed. Only GET requests are supported"), http.StatusMethodNotAllowed)
		return
	}

	routeParamValue := mux.Vars(r)

	guildID := strings.TrimSpace(routeParamValue["guild"])
	if guildID == "" {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Guild id missing from URL")
		c.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	kind, err := domain.ParseMetricKind(routeParamValue["metric"])
	if err != nil {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "While parsing metric from URL. Err - ", err)
		c.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	locale := query.Get("locale")
	if locale == "" {
		locale = r.Header.Get("Accept-Language")
	}
	req := report.Request{
		GuildID: guildID,
		Kind:    kind,
		Frame:   domain.TimeFrame(strings.ToLower(query.Get("timeframe"))),
		Locale:  locale,
	}

	if query.Get("format") == "text" {
		_, out, err := c.service.Render(r.Context(), req)
		if err != nil {
			c.writeFailure(w, r, req, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(out)
		return
	}

	series, ds, err := c.service.Dataset(r.Context(), req)
	if err != nil {
		c.writeFailure(w, r, req, err)
		return
	}
	c.Response.WriteResultResponse(w, ChartResponse{Series: series, Dataset: ds})
}

func (c *Charts) writeFailure(w http.ResponseWriter, r *http.Request, req report.Request, err error) {
	fields := []zap.Field{
		zap.String("guild_id", req.GuildID),
		zap.String("kind", string(req.Kind)),
		zap.String("timeframe", string(req.Frame)),
		zap.Error(err),
	}

	if errors.Is(err, context.Canceled) || errors.Is(r.Context().Err(), context.Canceled) {
		c.logger.Warn("Context cancelled", fields...)
		c.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
		return
	}

	c.logger.Error("Chart request failed", fields...)
	status := http.StatusInternalServerError
	if domain.IsStorageError(err) {
		status = http.StatusServiceUnavailable
	}
	c.Response.WriteMessageWithStatusCode(w, err, c.builder.FailureMessage(req.Kind, err, req.Locale), status)
}
