package di

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/category"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/evaluation"
	"github.com/trezcool/masomo-portal/core/formation"
	"github.com/trezcool/masomo-portal/core/resource"
	"github.com/trezcool/masomo-portal/core/stats"
	emailsvc "github.com/trezcool/masomo-portal/services/email"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	"github.com/trezcool/masomo-portal/services/notify"
)

// Deps is everything the portal commands need.
type Deps struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	Session     *auth.Session
	Transport   *resource.Transport
	Toaster     *notify.Toaster
	Mailer      core.EmailService
	Account     *account.Service
	Courses     *course.Client
	Formations  *formation.Client
	Categories  *category.Client
	Enrollments *enrollment.Client
	Evaluations *evaluation.Client
	Stats       *stats.Client
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "PORTAL : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newValidator() (*validator.Validate, ut.Translator) {
	return core.NewValidator()
}

// newSessionStore returns the store of the configured session backend.
func newSessionStore(conf *core.Config) (auth.Store, error) {
	switch conf.Session.Backend {
	case "memory":
		return auth.NewMemoryStore(), nil
	case "redis":
		rdb, err := auth.OpenRedis(context.Background(), conf.Redis.URL)
		if err != nil {
			return nil, err
		}
		return auth.NewRedisStore(rdb, conf.Redis.Prefix), nil
	case "file", "":
		return auth.NewFileStore(conf.Session.File)
	default:
		return nil, errors.Errorf("unknown session backend %q", conf.Session.Backend)
	}
}

func newTransport(conf *core.Config, session *auth.Session, logger core.Logger) (*resource.Transport, error) {
	return resource.NewTransport(resource.TransportOptions{
		BaseURL: conf.API.BaseURL,
		Session: session,
		Timeout: conf.API.Timeout,
		Logger:  logger,
	})
}

func newToaster() *notify.Toaster {
	return notify.NewToaster(os.Stdout)
}

func newMailer(conf *core.Config, logger core.Logger) core.EmailService {
	core.ParseEmailTemplates(conf.WorkDir, false, logger)
	return emailsvc.NewService(conf, logger)
}

// New returns the portal dependency injection dig.Container.
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newValidator))
	must(c.Provide(newSessionStore))
	must(c.Provide(auth.NewSession))
	must(c.Provide(newTransport))
	must(c.Provide(newToaster))
	must(c.Provide(func(t *notify.Toaster) resource.Notifier { return t }))
	must(c.Provide(newMailer))
	must(c.Provide(account.NewService))
	must(c.Provide(course.NewClient))
	must(c.Provide(formation.NewClient))
	must(c.Provide(category.NewClient))
	must(c.Provide(enrollment.NewClient))
	must(c.Provide(evaluation.NewClient))
	must(c.Provide(stats.NewClient))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
