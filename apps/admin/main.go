package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/user"
	logsvc "github.com/trezcool/hostel/services/logger"
	"github.com/trezcool/hostel/services/triage"
	"github.com/trezcool/hostel/storage/database"
	inmemdb "github.com/trezcool/hostel/storage/database/inmem"
	sqlxrepos "github.com/trezcool/hostel/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	zl := logsvc.NewZerolog(os.Stderr, conf).With().Str("component", "admin").Logger()
	logger = logsvc.NewRollbarLogger(zl, conf)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	hostel.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up the store
	var (
		db         *sql.DB
		hostelRepo hostel.Repository
		usrRepo    user.Repository
	)
	if conf.Database.Engine == core.EnginePostgres {
		xdb, err := database.Open(context.Background(), conf)
		errAndDie(err)
		defer xdb.Close()
		db = xdb.DB
		hostelRepo = sqlxrepos.NewHostelRepository(xdb)
		usrRepo = sqlxrepos.NewUserRepository(xdb)
	} else {
		logger.Warn("running on the in-memory store: changes are lost on exit")
		mem := inmemdb.Open()
		hostelRepo = inmemdb.NewHostelRepository(mem)
		usrRepo = inmemdb.NewUserRepository(mem)
	}

	// the live feed lives in the API process; nothing to publish to here
	hostelSvc := hostel.NewService(conf, hostelRepo, triage.Disabled{}, nil, logger)

	// start CLI
	cli := commandLine{
		db:         db,
		hostelRepo: hostelRepo,
		hostelSvc:  hostelSvc,
		usrSvc:     user.NewService(usrRepo, hostelSvc),
		validate:   validate,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
