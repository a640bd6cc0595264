package provider

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/franktheglock/openllm/model"
)

// probeTimeout bounds each provider check.
const probeTimeout = 10 * time.Second

// ProbeResult reports whether a provider answered a catalogue refresh.
type ProbeResult struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
	Models   int    `json:"models"`
	Error    string `json:"error,omitempty"`
}

// Probe validates a provider's endpoint and credentials by refreshing its
// model catalogue.
func Probe(ctx context.Context, p model.Provider) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result := ProbeResult{Provider: p.Name()}
	models, err := p.RefreshModels(ctx)
	if err != nil {
		result.Error = err.Error()
		slog.Warn("provider probe failed", "component", "provider", "provider", p.Name(), "error", err)
		return result
	}

	result.Valid = true
	result.Models = len(models)
	slog.Debug("provider probe successful", "component", "provider", "provider", p.Name(), "models", len(models))
	return result
}

// ProbeAll probes every provider concurrently and returns results sorted by
// provider key.
func ProbeAll(ctx context.Context, providers map[string]model.Provider) []ProbeResult {
	var (
		mu      sync.Mutex
		results = make([]ProbeResult, 0, len(providers))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for key, p := range providers {
		g.Go(func() error {
			r := Probe(ctx, p)
			r.Provider = key
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	return results
}
