package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"
	communicationrepository "github.com/jburchel/mobilize-crm/internal/communication/repository"
	communicationusecase "github.com/jburchel/mobilize-crm/internal/communication/usecase"
	contactdomain "github.com/jburchel/mobilize-crm/internal/contact/domain"
	contactrepository "github.com/jburchel/mobilize-crm/internal/contact/repository"
	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	credentialrepository "github.com/jburchel/mobilize-crm/internal/credential/repository"
	credentialusecase "github.com/jburchel/mobilize-crm/internal/credential/usecase"
	"github.com/jburchel/mobilize-crm/internal/sync/scheduler"
	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"
	taskrepository "github.com/jburchel/mobilize-crm/internal/task/repository"
	taskusecase "github.com/jburchel/mobilize-crm/internal/task/usecase"
	"github.com/jburchel/mobilize-crm/pkg/config"
	"github.com/jburchel/mobilize-crm/pkg/database"
	"github.com/jburchel/mobilize-crm/pkg/gcal"
	"github.com/jburchel/mobilize-crm/pkg/gmail"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&credentialdomain.SyncCredential{},
		&contactdomain.Person{},
		&contactdomain.Organization{},
		&taskdomain.Task{},
		&communicationdomain.Communication{},
		&communicationdomain.EmailSignature{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	credRepo := credentialrepository.NewCredentialRepository(db)
	taskRepo := taskrepository.NewTaskRepository(db)
	contactRepo := contactrepository.NewContactRepository(db)
	commRepo := communicationrepository.NewCommunicationRepository(db)
	sigRepo := communicationrepository.NewSignatureRepository(db)

	credStore := credentialusecase.NewStore(credRepo)
	calendarService := gcal.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	calendarEngine := taskusecase.NewCalendarSyncEngine(taskRepo, credStore, calendarService)
	mailEngine := communicationusecase.NewMailSyncEngine(commRepo, sigRepo, contactRepo, credStore, gmailService)

	syncScheduler := scheduler.NewSyncScheduler(
		scheduler.Job{Engine: calendarEngine, Interval: cfg.CalendarSyncInterval},
		scheduler.Job{Engine: mailEngine, Interval: cfg.GmailSyncInterval},
	)
	syncScheduler.Start(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down sync scheduler...")
	syncScheduler.Stop()
	log.Println("Sync scheduler stopped")
}
