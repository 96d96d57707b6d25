/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes the optimizer over HTTP.
//
// Routes:
//
//	POST /optimize   optimize the pipeline in the request body
//	POST /explain    describe how the pipeline would be optimized
//	GET  /metrics    prometheus metrics
//	GET  /healthz    liveness
//
// The body encoding is chosen with the format query parameter (json, yaml
// or bson, json by default). Optimization is best effort unless strict=true
// is given, in which case a pipeline that cannot be optimized is an error.
// With output=bson an /optimize answer is a BSON document with the fields
// of Response, the pipeline held as an array. Errors are always JSON.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"github.com/liqd-js/mongodb-query-optimizer/go/log"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/optimizer"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
)

// Options configure a Server.
type Options struct {
	// MaxBodyBytes bounds request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// CacheTTL is how long optimize responses are kept. Zero disables
	// the cache.
	CacheTTL time.Duration
	// CacheCleanup is the interval between purges of expired responses.
	CacheCleanup time.Duration
	// AccessLog receives one line per request in combined log format.
	// Nil disables access logging.
	AccessLog io.Writer
}

// DefaultMaxBodyBytes is the request body limit when none is set.
const DefaultMaxBodyBytes = 1 << 20

// Server handles optimizer requests.
type Server struct {
	opts    Options
	router  *mux.Router
	cache   *cache.Cache
	metrics *metrics
}

// New returns a Server with its routes registered.
func New(opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		metrics: newMetrics(),
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, opts.CacheCleanup)
	}

	s.router.HandleFunc("/optimize", s.optimize).Methods(http.MethodPost).Name("optimize")
	s.router.HandleFunc("/explain", s.explain).Methods(http.MethodPost).Name("explain")
	s.router.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet).Name("metrics")
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet).Name("healthz")
	return s
}

// Handler returns the root handler, with panic recovery and access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(h)
	return withRequestID(h)
}

// Stop releases the response cache.
func (s *Server) Stop() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// Response is the body of an /optimize answer.
type Response struct {
	Pipeline  json.RawMessage `json:"pipeline,omitempty"`
	Optimized bool            `json:"optimized"`
	Removed   int             `json:"removed"`
	Order     []int           `json:"order,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		s.metrics.latency.WithLabelValues("optimize").Observe(time.Since(start).Seconds())
	}()

	format, body, err := s.readRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))
	output, err := pipelineio.ParseOutputFormat(r.URL.Query().Get("output"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	key := cacheKey(format, output, strict, body)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.outcomes.WithLabelValues(outcomeCached).Inc()
			writeResult(w, output, cached.([]byte))
			return
		}
	}

	docs, err := pipelineio.Decode(body, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var res optimizer.Result
	if strict {
		plan, err := optimizer.Build(docs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res = plan.Result()
	} else {
		res = optimizer.BestEffort(docs)
	}
	out, err := encodeResult(res, output)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if res.Optimized {
		s.metrics.outcomes.WithLabelValues(outcomeOptimized).Inc()
	} else {
		s.metrics.outcomes.WithLabelValues(outcomeFallback).Inc()
	}
	s.metrics.pruned.Add(float64(res.Removed))
	if s.cache != nil {
		s.cache.SetDefault(key, out)
	}
	writeResult(w, output, out)
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		s.metrics.latency.WithLabelValues("explain").Observe(time.Since(start).Seconds())
	}()

	format, body, err := s.readRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	docs, err := pipelineio.Decode(body, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := optimizer.Explain(docs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, tree)
}

func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (pipelineio.Format, []byte, error) {
	format, err := pipelineio.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return "", nil, err
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return "", nil, opterrors.Errorf(opterrors.InvalidArgument, "reading request body: %v", err)
	}
	return format, body, nil
}

func encodeResult(res optimizer.Result, output pipelineio.Format) ([]byte, error) {
	if output == pipelineio.FormatBSON {
		return marshalBSON(res)
	}
	pipeline, err := pipelineio.EncodeJSON(res.Pipeline, "")
	if err != nil {
		return nil, err
	}
	resp := Response{
		Pipeline:  pipeline,
		Optimized: res.Optimized,
		Removed:   res.Removed,
		Order:     res.Order,
	}
	if res.Err != nil {
		resp.Error = opterrors.Message(res.Err)
	}
	return marshal(resp)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := opterrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.ErrorS("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	s.metrics.errors.WithLabelValues(opterrors.Code(err).String()).Inc()
	out, merr := marshal(Response{Error: opterrors.Message(err)})
	if merr != nil {
		http.Error(w, opterrors.Message(err), status)
		return
	}
	writeJSON(w, status, out)
}

// cacheKey identifies a request by everything that affects its answer.
func cacheKey(format, output pipelineio.Format, strict bool, body []byte) string {
	d := xxhash.New()
	d.WriteString(string(format))
	d.WriteString(">" + string(output))
	if strict {
		d.WriteString("+strict")
	}
	d.WriteString("\x00")
	d.Write(body)
	return strconv.FormatUint(d.Sum64(), 16)
}
