package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	dig_container "github.com/trezcool/hostel/apps/api/di/dig"
	echoapi "github.com/trezcool/hostel/apps/api/echo"
	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/notify"
	"github.com/trezcool/hostel/core/session"
	"github.com/trezcool/hostel/core/user"
)

const sessionSweepSchedule = "@every 1m"

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		closeStore dig_container.StoreCloser,
		validate *validator.Validate,
		translator ut.Translator,
		mailSvc core.EmailService,
		hostelSvc *hostel.Service,
		sessions *session.Manager,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		hostel.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		core.ParseEmailTemplates(conf, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := closeStore(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Scheduler

		scheduler := cron.New()
		if _, err := notify.NewBirthdayJob(hostelSvc, mailSvc, apiLogger).Schedule(scheduler, conf.Birthday.Schedule); err != nil {
			apiLogger.Fatal(fmt.Sprintf("scheduling birthday job: %v", err), err)
		}
		if _, err := scheduler.AddFunc(sessionSweepSchedule, func() {
			if n := sessions.Sweep(); n > 0 {
				apiLogger.Debug(fmt.Sprintf("%d expired session(s) closed", n))
			}
		}); err != nil {
			apiLogger.Fatal(fmt.Sprintf("scheduling session sweep: %v", err), err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()

		// prime the live feeds
		hostelSvc.Publish(context.Background())

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("store").Set(conf.Database.Engine)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
