// Package httpapi exposes the attendance workflow to the portal front end.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hifz_attendance_notifier/internal/app"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type (
	Options struct {
		Address    string
		JWTSecret  []byte
		Location   *time.Location
		Attendance AttendanceActions
		Notices    NoticeSender
		Presets    PresetCacheInvalidator // Optional
		Levels     app.LevelResolver      // Defaults to the stored level
		Logger     *logrus.Entry
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Levels == nil {
		opts.Levels = app.StoredLevel{}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Validator = &requestValidator{validate: validator.New()}
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.opts.Logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.Recover())
	s.app.Use(requestLogger(s.opts.Logger))

	h := &handlers{
		attendance: s.opts.Attendance,
		notices:    s.opts.Notices,
		presets:    s.opts.Presets,
		levels:     s.opts.Levels,
		location:   s.opts.Location,
		logger:     s.opts.Logger.WithField("component", "http_api"),
		nowFunc:    time.Now,
	}

	s.app.GET("/healthz", h.health)

	api := s.app.Group("/api", requireStaff(s.opts.JWTSecret))
	api.GET("/classes/:classID/roster", h.roster)
	api.POST("/classes/:classID/attendance/absent-all", h.markAllAbsent)
	api.POST("/classes/:classID/students/:studentID/attendance", h.markStudent)
	api.POST("/students/:studentID/notices", h.sendNotice)
	api.POST("/presets/cache/invalidate", h.invalidatePresetCache)
}

// Start blocks until the server stops. A graceful Stop is not reported as an error.
func (s *server) Start() error {
	s.opts.Logger.WithField("address", s.opts.Address).Info("HTTP API listening")
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	return c.Validate(req)
}

func requestLogger(logger *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.WithFields(logrus.Fields{
				"method":   c.Request().Method,
				"path":     c.Path(),
				"status":   c.Response().Status,
				"duration": time.Since(start).String(),
			}).Info("HTTP request")
			return nil
		}
	}
}
