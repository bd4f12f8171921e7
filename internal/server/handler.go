package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/walker"
)

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleRoute(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		s.fail(c, "", http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	c.Header("Vary", flight.VaryHeader)

	isFlight := c.GetHeader(flight.HeaderRSC) == "1"
	prefetch := isFlight && c.GetHeader(flight.HeaderRouterPrefetch) == "1"
	kind := "bootstrap"
	switch {
	case prefetch:
		kind = "prefetch"
	case isFlight:
		kind = "flight"
	}

	ctx, span := tracer.Start(c.Request.Context(), "server."+kind,
		trace.WithAttributes(
			attribute.String("http.path", c.Request.URL.Path),
			attribute.String("wayfinder.request_id", c.GetString(requestIDKey)),
		),
	)
	defer span.End()

	m := s.manifests.Get()
	pathname := c.Request.URL.Path
	href := c.Request.URL.RequestURI()

	if m.IsPage(pathname) {
		if isFlight {
			s.writeFlight(c, "mpa", flight.Data{MPA: href})
			return
		}
		s.writeJSON(c, "mpa", flight.Bootstrap{CanonicalURL: href, FlightData: flight.Data{MPA: href}})
		return
	}

	root, params, err := m.Match(pathname)
	if err != nil {
		if errors.Is(err, manifest.ErrNoRoute) {
			manifestMisses.Inc()
			s.fail(c, kind, http.StatusNotFound, err)
			return
		}
		s.fail(c, kind, http.StatusInternalServerError, err)
		return
	}

	w := walker.New(walker.Request{
		Pathname: pathname,
		Search:   c.Request.URL.RawQuery,
		Params:   params,
		Prefetch: prefetch,
	}, walker.Options{
		Renderer: s.renderer,
		Loader:   s.loader,
		Logger:   s.logger.With("request_id", c.GetString(requestIDKey)),
	})

	start := time.Now()
	if !isFlight {
		dp, err := w.Render(ctx, root)
		renderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.fail(c, kind, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(c, kind, flight.Bootstrap{
			CanonicalURL: href,
			Tree:         dp.TreePatch,
			FlightData:   flight.Data{Paths: []flight.DataPath{dp}},
		})
		return
	}

	tree, err := flight.DecodeTreeHeader(c.GetHeader(flight.HeaderRouterStateTree))
	if err != nil {
		s.fail(c, kind, http.StatusBadRequest, err)
		return
	}
	data, err := w.FlightData(ctx, root, tree)
	renderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(c, kind, http.StatusInternalServerError, err)
		return
	}
	if dp, ok := data.First(); ok {
		renderDepth.Observe(float64(len(dp.Path)))
		span.SetAttributes(attribute.String("wayfinder.render_path", dp.Path.String()))
	}
	s.writeFlight(c, kind, data)
}

func (s *Server) writeFlight(c *gin.Context, kind string, data flight.Data) {
	c.Header("Content-Type", flight.ContentType)
	c.Status(http.StatusOK)
	if err := flight.Encode(c.Writer, data); err != nil {
		s.logger.Error("write flight response", "request_id", c.GetString(requestIDKey), "error", err)
	}
	requestsTotal.WithLabelValues(kind, strconv.Itoa(http.StatusOK)).Inc()
}

func (s *Server) writeJSON(c *gin.Context, kind string, body any) {
	c.JSON(http.StatusOK, body)
	requestsTotal.WithLabelValues(kind, strconv.Itoa(http.StatusOK)).Inc()
}

func (s *Server) fail(c *gin.Context, kind string, status int, err error) {
	if status >= 500 {
		s.logger.Error("request failed", "request_id", c.GetString(requestIDKey), "path", c.Request.URL.Path, "error", err)
	}
	if kind != "" {
		requestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), RequestID: c.GetString(requestIDKey)})
}
