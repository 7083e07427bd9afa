package report

import (
	"context"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/observability"
)

// SeriesSource is the read side a report is built from; query.Engine satisfies it.
type SeriesSource interface {
	Query(ctx context.Context, guildID string, kind domain.MetricKind, frame domain.TimeFrame) (domain.Series, error)
}

// Request names one chart.
type Request struct {
	GuildID string
	Kind    domain.MetricKind
	Frame   domain.TimeFrame
	Locale  string
}

type Service struct {
	source   SeriesSource
	builder  *Builder
	renderer Renderer
	metrics  *observability.Metrics
}

func NewService(source SeriesSource, builder *Builder, renderer Renderer, metrics *observability.Metrics) *Service {
	return &Service{source: source, builder: builder, renderer: renderer, metrics: metrics}
}

// Dataset queries the series and builds its chart dataset.
func (s *Service) Dataset(ctx context.Context, req Request) (domain.Series, Dataset, error) {
	series, err := s.source.Query(ctx, req.GuildID, req.Kind, req.Frame)
	if err != nil {
		return series, Dataset{}, err
	}
	ds, err := s.builder.Build(series, req.Kind, req.Locale)
	if err != nil {
		s.metrics.Query(string(req.Kind), observability.ResultRenderError)
		return series, Dataset{}, err
	}
	return series, ds, nil
}

// Render runs the whole chain through to picture bytes.
func (s *Service) Render(ctx context.Context, req Request) (Dataset, []byte, error) {
	_, ds, err := s.Dataset(ctx, req)
	if err != nil {
		return Dataset{}, nil, err
	}
	out, err := s.renderer.Render(ctx, ds)
	if err != nil {
		s.metrics.Query(string(req.Kind), observability.ResultRenderError)
		if !domain.IsRenderError(err) {
			err = &domain.RenderError{Reason: "renderer failed", Err: err}
		}
		return ds, nil, err
	}
	return ds, out, nil
}
