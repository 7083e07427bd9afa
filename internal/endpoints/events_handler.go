package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/util"
)

// GuildScheduler is the sampler's registry as seen by the connector webhooks.
type GuildScheduler interface {
	Add(guildID string) bool
	Remove(guildID string) bool
}

type MessageSink interface {
	OnMessage(ctx context.Context, guildID string) error
}

type ReadyEvent struct {
	GuildIDs []string `json:"guild_ids"`
}

type GuildEvent struct {
	GuildID string `json:"guild_id"`
}

type ReadyResult struct {
	Scheduled int `json:"scheduled"`
	Known     int `json:"known"`
}

type MessageResult struct {
	Counted bool `json:"counted"`
}

type LeaveResult struct {
	Removed bool `json:"removed"`
}

// Events receives platform events pushed by the connector process.
type Events struct {
	Response  APIResponse
	logger    *util.MetricsLogger
	scheduler GuildScheduler
	sink      MessageSink
}

func (e *Events) Init(scheduler GuildScheduler, sink MessageSink, webSlogger *util.MetricsLogger) {
	e.scheduler = scheduler
	e.sink = sink
	e.logger = webSlogger
}

func (e *Events) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	var event ReadyEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		e.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling ready event. Err -", err)
		e.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var result ReadyResult
	for _, id := range event.GuildIDs {
		if e.scheduler.Add(id) {
			result.Scheduled++
		} else {
			result.Known++
		}
	}
	e.logger.LogEvent(util.LOG_LEVEL_INFO, "Ready event: scheduled", result.Scheduled, "guilds,", result.Known, "skipped")
	e.Response.WriteResultResponse(w, result)
}

func (e *Events) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var event GuildEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		e.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling message event. Err -", err)
		e.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := e.sink.OnMessage(r.Context(), event.GuildID)
	switch {
	case err == nil:
		e.Response.WriteResultResponse(w, MessageResult{Counted: true})
	case errors.Is(err, domain.ErrEmptyGuild):
		// direct messages carry no guild and are not counted
		e.Response.WriteResultResponse(w, MessageResult{Counted: false})
	default:
		e.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusServiceUnavailable)
	}
}

func (e *Events) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	var event GuildEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.GuildID == "" {
		e.logger.LogEvent(util.LOG_LEVEL_ERROR, "Invalid leave event. Err -", err)
		e.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	e.Response.WriteResultResponse(w, LeaveResult{Removed: e.scheduler.Remove(event.GuildID)})
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	APIResponse{}.WriteResultResponse(w, map[string]string{"status": "ok"})
}
