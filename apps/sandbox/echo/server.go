package sandboxapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
)

type (
	Options struct {
		AppName            string
		Address            string
		SecretKey          string
		JWTExpirationDelta time.Duration
		Debug              bool
		DisableReqLogs     bool
		Seed               bool
		BcryptCost         int // defaults to bcrypt.DefaultCost
		Logger             core.Logger
		Validate           *validator.Validate
		Translator         ut.Translator
		DB                 *DB              // defaults to a new DB
		Now                func() time.Time // defaults to time.Now
	}

	Server struct {
		opts *Options
		app  *echo.Echo
		api  *api
	}

	api struct {
		db         *DB
		tokens     *tokenIssuer
		vld        *validator.Validate
		translator ut.Translator
		bcryptCost int
		now        func() time.Time
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts *Options) (*Server, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.Validate == nil || opts.Translator == nil {
		opts.Validate, opts.Translator = core.NewValidator()
	}
	if opts.JWTExpirationDelta <= 0 {
		opts.JWTExpirationDelta = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DB == nil {
		opts.DB = NewDB()
		if opts.Seed {
			if err := opts.DB.Seed(opts.Now(), opts.BcryptCost); err != nil {
				return nil, err
			}
		}
	}

	s := &Server{
		opts: opts,
		app:  echo.New(),
		api: &api{
			db:         opts.DB,
			tokens:     newTokenIssuer(opts.AppName, []byte(opts.SecretKey), opts.JWTExpirationDelta),
			vld:        opts.Validate,
			translator: opts.Translator,
			bcryptCost: opts.BcryptCost,
			now:        opts.Now,
		},
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in debug mode
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.RequestID())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	g := s.app.Group("/api")
	jwt := jwtMiddleware(s.api.tokens, s.api.db)

	g.POST("/login", s.api.login)
	ag := g.Group("", jwt)
	ag.POST("/logout", s.api.logout)
	ag.GET("/user", s.api.me)

	registerProfileAPI(ag, s.api)
	registerCatalogAPI(ag, s.api)
	registerCourseAPI(ag, s.api)
	registerChapterAPI(ag, s.api)
	registerEnrollmentAPI(ag, s.api)
	registerEvaluationAPI(ag, s.api)
	registerStatsAPI(ag, s.api)
}

func (s *Server) DB() *DB { return s.api.db }

// Token returns a valid token for `usr` (tests and demos).
func (s *Server) Token(usr User) (string, error) { return s.api.tokens.GenerateToken(usr) }

func (s *Server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Masomo sandbox API")
}

func (api *api) validate(s interface{}) error {
	return core.ValidateStruct(api.vld, api.translator, s)
}
