package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/smartlearn/smartlearn/internal/api/http"
	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/bus"
	"github.com/smartlearn/smartlearn/internal/config"
	"github.com/smartlearn/smartlearn/internal/db"
	"github.com/smartlearn/smartlearn/internal/logger"
	"github.com/smartlearn/smartlearn/internal/quiz"
	"github.com/smartlearn/smartlearn/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	logg := logger.New(logger.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	var blob storage.BlobStore
	switch cfg.BlobDriver {
	case "minio":
		blob, err = storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		blob, err = storage.NewFSStore(cfg.BlobBasePath)
	}
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	var jobBus bus.Bus
	switch cfg.BusDriver {
	case "redis":
		jobBus, err = bus.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis bus: %v", err)
		}
	default:
		jobBus = bus.NewMemory()
	}

	svc := quiz.NewService(store, blob, jobBus, cfg.FileURLTTL, logg)

	authSvc := auth.NewAuthService(cfg.AuthSecret)
	users := auth.NewUserStore(dbh)
	workerCred := auth.NewSharedSecret(cfg.WorkerSecret)

	r := api.NewRouter(api.RouterDeps{
		Service:       svc,
		Store:         store,
		Users:         users,
		Auth:          authSvc,
		WorkerCred:    workerCred,
		CORSOrigins:   cfg.CORSOrigins,
		MaxUploadSize: cfg.MaxUploadSize,
		Ready: func() error {
			pctx, pcancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pcancel()
			return dbh.PingContext(pctx)
		},
	})

	log.Printf("listening on %s (mode=%s, db=%s, bus=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.BusDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
