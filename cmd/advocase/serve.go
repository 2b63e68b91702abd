package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advocase/internal/access"
	"advocase/internal/cases"
	"advocase/internal/db"
	"advocase/internal/draft"
	"advocase/internal/identity"
	"advocase/internal/invite"
	"advocase/internal/server"
	"advocase/internal/storage"
	"advocase/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	cognitoClient := cognitoidentityprovider.NewFromConfig(awsConfig)
	s3Client := s3.NewFromConfig(awsConfig)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	stateStore, err := draft.NewStateStore(config.RedisURL)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	caseRepo := store.NewCaseRepository(pool)
	grantRepo := store.NewGrantRepository(pool)
	documentRepo := store.NewDocumentRepository(pool)

	ledger := access.NewLedger(grantRepo)
	caseService := cases.NewService(caseRepo, ledger, logger)

	directory := identity.NewCognitoDirectory(cognitoClient, config.CognitoUserPoolID)
	inviteService := invite.NewService(ledger, directory, config.PublicBaseURL, logger)

	objectStorage := storage.NewS3Storage(s3Client, config.DocumentBucket)

	jwkCache, err := jwk.NewCache(context.Background(), httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", config.CognitoIssuerURL)

	err = jwkCache.Register(context.Background(), jwksURL)
	if err != nil {
		return fmt.Errorf("failed to register cognito jwk with cache: %w", err)
	}

	srv, err := server.New(
		config,
		logger,
		caseService,
		inviteService,
		documentRepo,
		grantRepo,
		objectStorage,
		stateStore,
		jwkCache,
		jwksURL,
		pool,
		stateStore,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
