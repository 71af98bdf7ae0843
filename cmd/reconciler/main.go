package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/noah-isme/enrol-pay-api/internal/repository"
	"github.com/noah-isme/enrol-pay-api/internal/service"
	"github.com/noah-isme/enrol-pay-api/pkg/config"
	"github.com/noah-isme/enrol-pay-api/pkg/database"
	"github.com/noah-isme/enrol-pay-api/pkg/logger"
)

// The reconciler runs one sweep pass and exits. Exit codes: 0 clean run,
// 1 failures occurred, 2 paid enrolment disabled. Intended for cron.
func main() {
	courseID := flag.String("course", "", "limit the run to one course id")
	verbose := flag.Bool("verbose", false, "emit per-enrolment trace lines")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Errorw("failed to connect to database", "error", err)
		os.Exit(int(service.StatusError))
	}
	defer db.Close()

	enrolmentRepo := repository.NewEnrolmentRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	instanceSvc := service.NewInstanceService(instanceRepo, nil, 0, false, nil, logr)

	svc := service.NewReconcileService(enrolmentRepo, roleRepo, settingsRepo, instanceSvc, nil, logr)

	code, err := svc.Run(context.Background(), service.RunOptions{
		CourseID: *courseID,
		Verbose:  *verbose,
	})
	if err != nil {
		logr.Sugar().Errorw("reconciliation run failed", "error", err)
	}
	os.Exit(int(code))
}
