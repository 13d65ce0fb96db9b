package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/hostel/apps/api/echo"
	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
	emailsvc "github.com/trezcool/hostel/services/email"
	logsvc "github.com/trezcool/hostel/services/logger"
	"github.com/trezcool/hostel/services/triage"
	"github.com/trezcool/hostel/storage/database"
	inmemdb "github.com/trezcool/hostel/storage/database/inmem"
	sqlxrepos "github.com/trezcool/hostel/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// StoreCloser releases the store connections.
type StoreCloser func() error

type Store struct {
	dig.Out
	HostelRepo hostel.Repository
	UserRepo   user.Repository
	Health     echoapi.HealthCheck
	Close      StoreCloser
}

func newLogger(conf *core.Config) core.Logger {
	zl := logsvc.NewZerolog(os.Stdout, conf).With().Str("component", "api").Logger()
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	zl := logsvc.NewZerolog(os.Stdout, conf).With().Str("component", "db").Caller().Logger()
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newStore opens the configured engine: the in-memory store, or postgres migrated to the latest version.
func newStore(conf *core.Config, loggerParam DBLoggerParam) Store {
	if conf.Database.Engine != core.EnginePostgres {
		db := inmemdb.Open()
		return Store{
			HostelRepo: inmemdb.NewHostelRepository(db),
			UserRepo:   inmemdb.NewUserRepository(db),
			Health:     db.Ping,
			Close:      func() error { return nil },
		}
	}

	ctx := context.Background()
	setUp := func() (Store, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return Store{}, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return Store{}, err
		}

		if err = database.Migrate(ctx, db.DB, "up"); err != nil {
			_ = db.Close()
			return Store{}, err
		}
		return Store{
			HostelRepo: sqlxrepos.NewHostelRepository(db),
			UserRepo:   sqlxrepos.NewUserRepository(db),
			Health:     db.PingContext,
			Close:      db.Close,
		}, nil
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, os.Stdout, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newClassifier(conf *core.Config, logger core.Logger) hostel.Classifier {
	classifier, err := triage.New(context.Background(), conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("grievance triage disabled: %v", err), err)
		return triage.Disabled{}
	}
	return classifier
}

func newSessions(conf *core.Config) *session.Manager {
	return session.NewManager(conf.Server.JWTExpirationDelta)
}

func newHostelService(conf *core.Config, repo hostel.Repository, classifier hostel.Classifier, broker *feed.Broker, logger core.Logger) *hostel.Service {
	return hostel.NewService(conf, repo, classifier, broker, logger)
}

func newUserService(repo user.Repository, hostelSvc *hostel.Service) *user.Service {
	return user.NewService(repo, hostelSvc)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newShutdown() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	HostelSvc  *hostel.Service
	Sessions   *session.Manager
	Feed       *feed.Broker
	Health     echoapi.HealthCheck
	Shutdown   chan os.Signal
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Address, p.Shutdown, &echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		HostelSvc:  p.HostelSvc,
		Sessions:   p.Sessions,
		Feed:       p.Feed,
		Health:     p.Health,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newClassifier))
	must(c.Provide(feed.NewBroker))
	must(c.Provide(newSessions))
	must(c.Provide(newHostelService))
	must(c.Provide(newUserService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newShutdown))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
