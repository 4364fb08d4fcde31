package controllers

import (
	"context"
	"time"

	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"golang.org/x/time/rate"
)

// pacedClient spaces every platform request by a fixed delay
type pacedClient struct {
	platform.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

func newPacedClient(client platform.Client, delay time.Duration, m *metrics.Metrics) *pacedClient {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &pacedClient{
		Client:  client,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
	}
}

func (p *pacedClient) wait(ctx context.Context, operation string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.metrics.RequestSent(p.Name(), operation)
	return nil
}

func (p *pacedClient) Login(ctx context.Context) error {
	if err := p.wait(ctx, "login"); err != nil {
		return err
	}
	return p.Client.Login(ctx)
}

func (p *pacedClient) FetchItem(ctx context.Context, slug string) (*platform.Response, error) {
	if err := p.wait(ctx, "item"); err != nil {
		return nil, err
	}
	return p.Client.FetchItem(ctx, slug)
}

func (p *pacedClient) FetchChannel(ctx context.Context, slug string) (*platform.Response, error) {
	if err := p.wait(ctx, "channel"); err != nil {
		return nil, err
	}
	return p.Client.FetchChannel(ctx, slug)
}

func (p *pacedClient) FetchSeries(ctx context.Context, slug string) (*platform.Response, error) {
	if err := p.wait(ctx, "series"); err != nil {
		return nil, err
	}
	return p.Client.FetchSeries(ctx, slug)
}

func (p *pacedClient) FetchListing(ctx context.Context, source platform.Source) ([]byte, error) {
	if err := p.wait(ctx, "listing"); err != nil {
		return nil, err
	}
	return p.Client.FetchListing(ctx, source)
}

func (p *pacedClient) ProbeRestriction(ctx context.Context, slug string, kind models.ContentKind, language string) (int, error) {
	if err := p.wait(ctx, "probe"); err != nil {
		return 0, err
	}
	return p.Client.ProbeRestriction(ctx, slug, kind, language)
}
