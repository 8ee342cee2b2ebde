package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/danmuck/tagwire/internal/records"
	"github.com/danmuck/tagwire/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/ksuid"
)

const (
	binaryContentType = "application/octet-stream"
	// trailingBytesHeader counts input bytes left over after the decoded record.
	trailingBytesHeader = "X-Tagwire-Trailing-Bytes"
)

var (
	errNoStore  = errors.New("server: no record store configured")
	errBadID    = errors.New("server: malformed record id")
	errTooLarge = errors.New("server: request body too large")
)

type fieldInfo struct {
	Tag  uint8  `json:"tag"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type typeInfo struct {
	Name   string      `json:"name"`
	Fields []fieldInfo `json:"fields"`
}

func describeType(t records.Type) typeInfo {
	shape := t.Shape()
	fields := make([]fieldInfo, 0, len(shape.Fields))
	for _, f := range shape.Fields {
		fields = append(fields, fieldInfo{Tag: f.Tag, Name: f.Name, Type: f.TypeName()})
	}
	return typeInfo{Name: shape.Name, Fields: fields}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": version,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		backend := ""
		if s.store != nil {
			backend = s.store.Backend().Name()
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"service": s.Name,
			"store":   backend,
			"version": version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1/types")
	v1.GET("", s.listTypes)
	v1.GET("/:name", s.withType(s.getType))
	v1.POST("/:name/validate", s.withType(s.validate))
	v1.POST("/:name/encode", s.withType(s.encode))
	v1.POST("/:name/decode", s.withType(s.decode))
	v1.POST("/:name/records", s.withType(s.putRecord))
	v1.GET("/:name/records", s.withType(s.listRecords))
	v1.GET("/:name/records/:id", s.withType(s.getRecord))
	v1.DELETE("/:name/records/:id", s.withType(s.deleteRecord))
}

func (s *Server) withType(h func(*gin.Context, records.Type)) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := records.Lookup(c.Param("name"))
		if err != nil {
			s.fail(c, err)
			return
		}
		h(c, t)
	}
}

// options applies per-request overrides: ?format=json|yaml and ?strict=true|false.
func (s *Server) options(c *gin.Context) (records.Options, error) {
	opts := s.opts
	if format := c.Query("format"); format != "" {
		e, err := text.EngineFor(format)
		if err != nil {
			return opts, text.FormatError{Reason: "unsupported format", Err: err}
		}
		opts.Text = text.NewTranscoder(e)
	}
	if raw := c.Query("strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, text.FormatError{Reason: "strict must be a boolean", Err: err}
		}
		opts.Strict = strict
	}
	return opts, nil
}

func (s *Server) body(c *gin.Context) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, err
	}
	return data, nil
}

func (s *Server) listTypes(c *gin.Context) {
	types := records.Types()
	out := make([]typeInfo, 0, len(types))
	for _, t := range types {
		out = append(out, describeType(t))
	}
	c.JSON(http.StatusOK, gin.H{"types": out})
}

func (s *Server) getType(c *gin.Context, t records.Type) {
	c.JSON(http.StatusOK, describeType(t))
}

func (s *Server) validate(c *gin.Context, t records.Type) {
	opts, err := s.options(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.body(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	v, err := opts.Text.Parse(data)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := t.Validate(v); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "type": t.Name()})
}

func (s *Server) encode(c *gin.Context, t records.Type) {
	opts, err := s.options(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.body(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := t.TextToWire(opts, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, binaryContentType, out)
}

func (s *Server) decode(c *gin.Context, t records.Type) {
	opts, err := s.options(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.body(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.renderText(c, t, opts, data)
}

func (s *Server) renderText(c *gin.Context, t records.Type, opts records.Options, data []byte) {
	out, used, err := t.WireToText(opts, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	if extra := len(data) - used; extra > 0 {
		c.Header(trailingBytesHeader, strconv.Itoa(extra))
	}
	c.Data(http.StatusOK, textContentType(opts.Text), []byte(out))
}

func (s *Server) putRecord(c *gin.Context, t records.Type) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	opts, err := s.options(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.body(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	encoded, err := t.TextToWire(opts, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	id, err := s.store.PutRaw(c.Request.Context(), t.Name(), encoded)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String(), "type": t.Name(), "bytes": len(encoded)})
}

func (s *Server) listRecords(c *gin.Context, t records.Type) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	ids, err := s.store.List(c.Request.Context(), t.Name())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	c.JSON(http.StatusOK, gin.H{"type": t.Name(), "ids": out})
}

// getRecord renders the stored record as text, or returns the stored bytes when the
// client accepts only application/octet-stream.
func (s *Server) getRecord(c *gin.Context, t records.Type) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	id, err := ksuid.Parse(c.Param("id"))
	if err != nil {
		s.fail(c, errBadID)
		return
	}
	opts, err := s.options(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.store.GetRaw(c.Request.Context(), t.Name(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.GetHeader("Accept") == binaryContentType {
		c.Data(http.StatusOK, binaryContentType, data)
		return
	}
	s.renderText(c, t, opts, data)
}

func (s *Server) deleteRecord(c *gin.Context, t records.Type) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	id, err := ksuid.Parse(c.Param("id"))
	if err != nil {
		s.fail(c, errBadID)
		return
	}
	if err := s.store.Delete(c.Request.Context(), t.Name(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func textContentType(tc text.Transcoder) string {
	if tc.Engine != nil && tc.Engine.Name() == text.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrUnknownType), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrShape), errors.Is(err, text.ErrNonFinite):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errTooLarge), errors.Is(err, buffer.ErrOverrun):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, text.ErrFormat),
		errors.Is(err, errBadID),
		errors.Is(err, buffer.ErrUnderrun),
		errors.Is(err, wire.ErrLengthMismatch),
		errors.Is(err, records.ErrTrailingBytes),
		errors.Is(err, store.ErrInvalidRecord):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	var se schema.ShapeError
	if errors.As(err, &se) {
		body["path"] = se.Path
		body["field"] = se.Field
		body["expected"] = se.Expected
		body["reason"] = se.Reason
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}
