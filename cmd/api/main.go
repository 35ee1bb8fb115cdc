package main

import (
	"context"
	"os"
	"strconv"

	"notekeep/internal/domain/policy"
	"notekeep/internal/domain/sqlite"
	"notekeep/internal/domain/sqlite/repository"
	"notekeep/internal/http/handler"
	authmw "notekeep/internal/http/middleware"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/infrastructure/cache"
	"notekeep/internal/infrastructure/mediaproxy"
	"notekeep/internal/service"
	"notekeep/internal/utils/uid"
	"notekeep/internal/utils/validators"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

const envVarsPrefix = "/notekeep/prod/"

func main() {
	validate := validator.New()
	registerValidators(validate)

	// Loads env vars depending on environment
	if os.Getenv("GO_ENV") == "production" {
		loadProdEnv() // AWS SSM Parameter Store
	} else {
		// Loads from .env
		err := godotenv.Load()
		if err != nil {
			panic(err)
		}
	}

	uid.Init(machineID())

	// Init SQLite
	db, err := sqlite.Init()
	if err != nil {
		panic(err)
	}

	// Init S3 client
	s3Client, err := storage.NewStorageClient()
	if err != nil {
		panic(err)
	}

	// Init Redis (share records)
	rds, err := cache.NewRedisClient(context.Background())
	if err != nil {
		panic(err)
	}
	shareStore := cache.NewShareStorage(rds)

	proxy := mediaproxy.NewClient()
	notePolicy := policy.NewNotePolicy()

	// Getting repos
	noteRepo := repository.NewNoteRepository(db)
	tagRepo := repository.NewTagRepository(db)

	// Getting services
	shareService := service.NewShareService(noteRepo, shareStore, s3Client, proxy, notePolicy, validate, &service.ShareConfig{
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		ProxyBaseURL:  os.Getenv("MEDIA_PROXY_BASE_URL"),
	})
	noteService := service.NewNoteService(noteRepo, tagRepo, s3Client, shareService, notePolicy, validate)
	mergeService := service.NewMergeService(noteRepo, tagRepo, s3Client, shareService, notePolicy, validate)
	fileService := service.NewFileService(s3Client)

	// Getting handlers
	noteRoutes := handler.NewNoteDefault(noteService, mergeService)
	shareRoutes := handler.NewShareDefault(shareService, validate)
	fileRoutes := handler.NewFileDefault(fileService)
	publicRoutes := handler.NewPublicDefault(shareService)

	e := echo.New()
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("30M"))

	auth := authmw.NewAuthMiddleware(&authmw.AuthMiddlewareConfig{
		Secret: []byte(os.Getenv("SESSION_SECRET")),
	})
	api := e.Group("/api", auth)

	// Notes
	api.GET("/notes", noteRoutes.GetNotes)
	api.GET("/notes/:id", noteRoutes.GetNote)
	api.POST("/notes", noteRoutes.CreateNote)
	api.PATCH("/notes/:id", noteRoutes.UpdateNote)
	api.DELETE("/notes/:id", noteRoutes.DeleteNote)
	api.POST("/notes/merge", noteRoutes.MergeNotes)
	api.GET("/notes/:id/files/:fileId", noteRoutes.GetAttachment)

	// Shares
	api.POST("/notes/:id/share", shareRoutes.ShareNote)
	api.DELETE("/notes/:id/share", shareRoutes.RevokeShare)
	api.POST("/notes/:id/files/:fileId/share", shareRoutes.ShareFile)

	// Standalone uploads
	api.POST("/files", fileRoutes.UploadFile)
	api.GET("/files/:id", fileRoutes.GetFile)

	// Public (no session)
	e.GET("/public/note/:publicId", publicRoutes.GetPublicNote)
	e.GET("/public/file/:publicId", publicRoutes.GetPublicFile)

	// Docker Compose healthcheck
	e.GET("/health", healthCheckRoute)

	if err := e.Start(":7070"); err != nil {
		panic(err)
	}
}

func registerValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation("nodupes", validators.NoDupes)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
}

func machineID() int64 {
	raw := os.Getenv("MACHINE_ID")
	if raw == "" {
		return 1
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Fatalf("invalid MACHINE_ID %q: %v", raw, err)
	}
	return id
}

func loadProdEnv() {
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("us-east-2"))
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	client := ssm.NewFromConfig(cfg)
	out, err := client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:           aws.String(envVarsPrefix),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	})
	if err != nil {
		log.Fatalf("unable to load prod environment, %v", err)
	}

	prefixLength := len(envVarsPrefix)
	// Export vars
	for _, param := range out.Parameters {
		key := (*param.Name)[prefixLength:]
		value := *param.Value
		enverr := os.Setenv(key, value)
		if enverr != nil {
			log.Fatalf("unable to set environment variable, %v", enverr)
		}
	}
	log.Debugf("loaded %d prod environment variables", len(out.Parameters))
}

func healthCheckRoute(c echo.Context) error {
	return c.String(200, "OK")
}
