/*
Copyright © 2024 the mortsmooth authors.
This file is part of mortsmooth.

Mortsmooth is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Mortsmooth is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with mortsmooth.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package inla is a client for an integrated-nested-Laplace inference
// bridge: a server that accepts a declarative model specification plus
// data over HTTP and returns posterior summaries. The bridge wraps the
// actual engine; this package only speaks the wire protocol.
package inla

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/smallarea/mortsmooth"
)

// Engine is the engine identifier reported in failures.
const Engine = "inla"

// Client implements mortsmooth.Solver against an inference bridge server.
type Client struct {
	// URL is the base address of the bridge, e.g. "http://localhost:8764".
	URL string

	// HTTPClient is used for requests. A fit can legitimately run for a
	// long time, so the default client has no timeout; cancellation, if
	// any, comes from the caller's context.
	HTTPClient *http.Client
}

// New returns a client for the bridge at url.
func New(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 0},
	}
}

// fitResponse is the bridge's reply envelope.
type fitResponse struct {
	Status    string                       `json:"status"` // "ok" or "error"
	Error     string                       `json:"error,omitempty"`
	Posterior *mortsmooth.PosteriorSummary `json:"posterior,omitempty"`
}

// Fit posts the model and data to the bridge and decodes the posterior
// summaries. Any engine-reported error, transport failure, or malformed
// reply is returned as a mortsmooth.SolverFailure; nothing is retried.
func (c *Client) Fit(ctx context.Context, spec *mortsmooth.ModelSpec, data []mortsmooth.DataRow, opts *mortsmooth.SolverOptions) (*mortsmooth.PosteriorSummary, error) {
	body, err := json.Marshal(encodeRequest(spec, data, opts))
	if err != nil {
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: fmt.Errorf("encoding request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/fit", bytes.NewReader(body))
	if err != nil {
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mortsmooth.SolverFailure{Engine: Engine,
			Err: fmt.Errorf("bridge returned %s after %v: %s", resp.Status, time.Since(start).Round(time.Millisecond), string(raw))}
	}

	var fr fitResponse
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: fmt.Errorf("decoding reply: %w", err)}
	}
	if fr.Status != "ok" || fr.Posterior == nil {
		// Non-convergence and internal engine errors arrive here; they
		// are surfaced verbatim.
		return nil, mortsmooth.SolverFailure{Engine: Engine, Err: fmt.Errorf("%s", fr.Error)}
	}
	fr.Posterior.Raw = raw
	return fr.Posterior, nil
}
