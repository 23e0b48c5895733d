/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/larrymotalavigne/httpy/conn"
	"github.com/larrymotalavigne/httpy/dispatch"
	"github.com/larrymotalavigne/httpy/internal/xatm"
	"github.com/larrymotalavigne/httpy/internal/xlog"
	"github.com/larrymotalavigne/httpy/listener"
	"github.com/larrymotalavigne/httpy/message"
	"github.com/larrymotalavigne/httpy/router"
	"github.com/larrymotalavigne/httpy/tlscfg"
)

// Metrics holds the Prometheus instruments a Server publishes, adapted
// from the teacher's monitor package into counters/gauges a scrape
// endpoint built outside this module can register and expose. Server
// increments AcceptedConnections and ResponsesByClass; it never sets
// ActiveStreams.
type Metrics struct {
	AcceptedConnections prometheus.Counter
	ActiveStreams       prometheus.Gauge
	ResponsesByClass    *prometheus.CounterVec
}

// NewMetrics builds a Metrics set namespaced under "httpy_<name>_...".
func NewMetrics(name string) *Metrics {
	return &Metrics{
		AcceptedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("httpy_%s_accepted_connections_total", name),
			Help: "Total connections accepted.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("httpy_%s_active_streams", name),
			Help: "Currently open request streams across all connections.",
		}),
		ResponsesByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("httpy_%s_responses_total", name),
			Help: "Responses by status class (1xx..5xx).",
		}, []string{"class"}),
	}
}

// Register adds every instrument to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.AcceptedConnections, m.ActiveStreams, m.ResponsesByClass} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// Server binds one Config to a Router and runs the accept loop until
// Stop is called, tracking running state and uptime the way the teacher's
// httpserver.Server does with an atomic flag instead of a mutex-guarded bool.
type Server struct {
	Config  *Config
	Router  *router.Router
	TLS     *tlscfg.Config
	Metrics *Metrics
	Logger  xlog.Logger

	Middlewares []dispatch.Middleware
	Exceptions  *dispatch.ExceptionRegistry

	running   xatm.Value[bool]
	startedAt xatm.Value[time.Time]
	acceptor  *listener.Acceptor
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Uptime reports how long the server has been running, or zero if stopped.
func (s *Server) Uptime() time.Duration {
	if !s.IsRunning() {
		return 0
	}
	return time.Since(s.startedAt.Load())
}

// Start binds the configured address and begins accepting connections in
// background goroutines; it returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	opts := listener.Options{
		Address:        s.Config.Address(),
		ReusePort:      s.Config.ReusePort,
		MaxConnections: s.Config.MaxConnections,
	}
	if s.Config.TLSEnabled {
		opts.TLS = s.TLS
		opts.ServerName = s.Config.Host
	}

	acc, err := listener.Listen(ctx, opts)
	if err != nil {
		return fmt.Errorf("server: binding %s: %w", opts.Address, err)
	}
	s.acceptor = acc

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group

	s.running.Store(true)
	s.startedAt.Store(time.Now())

	group.Go(func() error { return s.acceptLoop(groupCtx) })
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	handler := s.buildHandler()

	for {
		rawConn, release, err := s.acceptor.Accept(ctx)
		if err != nil {
			if ae, ok := err.(*listener.AcceptError); ok && ae.Kind == listener.KindClosed {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.AcceptedConnections.Inc()
		}

		connID := uuid.NewString()
		s.group.Go(func() error {
			defer release()
			d := &conn.Driver{
				Handler: handler,
				Timeouts: conn.Timeouts{
					Idle:    s.Config.KeepAliveTimeout.Time(),
					Request: s.Config.RequestTimeout.Time(),
				},
				Logger: s.Logger,
			}
			s.log().Entry(xlog.DebugLevel, "connection accepted").Field("conn_id", connID).Log()
			d.Serve(rawConn)
			return nil
		})
	}
}

func (s *Server) buildHandler() conn.Handler {
	exceptions := s.Exceptions
	if exceptions == nil {
		exceptions = dispatch.NewExceptionRegistry()
	}

	routed := func(req *message.Request) *message.Response {
		result := s.Router.Match(req.Method, req.Path)
		switch {
		case result.NotFound:
			return dispatch.NotFoundResponse()
		case result.MethodNotAllowed:
			return dispatch.MethodNotAllowedResponse(result.Allow)
		}
		req.RouteTemplate = result.Template
		for k, v := range result.Params {
			req.PathParams[k] = v
		}
		return result.Handler(req)
	}

	chained := dispatch.Chain(routed, s.Middlewares...)
	guarded := dispatch.Guard(exceptions, chained)

	return func(req *message.Request) *message.Response {
		resp := guarded(req)
		if s.Metrics != nil {
			s.Metrics.ResponsesByClass.WithLabelValues(statusClass(resp.Status)).Inc()
		}
		return resp
	}
}

func (s *Server) log() xlog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return xlog.New(map[string]interface{}{"component": "server", "name": s.Config.Name})
}

// Stop cancels the accept loop and closes the listener, then waits up to
// Config.ShutdownGrace for connections already being served to finish.
// Those connections are not interrupted: if the grace period elapses first,
// Stop marks the server stopped and returns an error while they keep running.
func (s *Server) Stop() error {
	if !s.IsRunning() {
		return nil
	}
	s.cancel()
	_ = s.acceptor.Close()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		s.running.Store(false)
		return err
	case <-time.After(s.Config.ShutdownGrace.Time()):
		s.running.Store(false)
		return fmt.Errorf("server: shutdown grace period elapsed with connections still active")
	}
}

// Restart stops and starts the server again with its existing Config.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Addr returns the bound local address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}
