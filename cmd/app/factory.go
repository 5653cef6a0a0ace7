package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/Taichi-iskw/lesson-media/internal/config"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/platform"
	lessonrepo "github.com/Taichi-iskw/lesson-media/internal/repository/lesson"
	mediarepo "github.com/Taichi-iskw/lesson-media/internal/repository/media"
	transcriptrepo "github.com/Taichi-iskw/lesson-media/internal/repository/transcript"
	"github.com/Taichi-iskw/lesson-media/internal/service/lesson"
	"github.com/Taichi-iskw/lesson-media/internal/service/media"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
	"github.com/Taichi-iskw/lesson-media/internal/service/upload"
)

// Services bundles everything a command needs
type Services struct {
	Config      *config.Config
	Log         *logger.Logger
	Pool        *pgxpool.Pool
	Media       media.Service
	Lessons     lesson.Service
	Transcripts transcription.Service
}

// ServiceFactory creates service instances from the loaded configuration
type ServiceFactory struct{}

// NewServiceFactory creates a new service factory
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{}
}

// CreateServices connects to the database and wires every service.
// The returned cleanup releases clients in reverse order of creation.
func (f *ServiceFactory) CreateServices(ctx context.Context) (*Services, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		log.Sync()
	}

	dbPool, err := config.NewDatabasePool(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers = append(closers, dbPool.Close)

	lessonRepository := lessonrepo.NewRepository(dbPool)
	mediaRepository := mediarepo.NewRepository(dbPool)
	transcriptRepository := transcriptrepo.NewRepository(dbPool)

	registry := platform.NewRegistry()
	fetcher, closeCache, err := newMetadataFetcher(ctx, cfg, registry, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeCache)

	// Uploads stay disabled without a bucket; external videos still work.
	var provider upload.Provider
	if cfg.Upload.Bucket != "" {
		gcs, err := upload.NewGCSProvider(ctx, cfg.Upload.Bucket, cfg.Upload.URLExpiry, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create upload provider: %w", err)
		}
		provider = gcs
		closers = append(closers, func() { _ = gcs.Close() })
	} else {
		log.Warn("upload bucket not configured, uploads are disabled")
	}

	router, closeTranscribers := newTranscriptionRouter(ctx, cfg, log)
	closers = append(closers, closeTranscribers)

	transcriptService := transcription.NewService(transcriptRepository, router, transcription.Options{
		Timeout: cfg.Transcription.Timeout,
	}, log)
	// Background generations write through the pool, so drain them before it closes.
	closers = append(closers, transcriptService.Wait)

	mediaService := media.NewService(mediaRepository, lessonRepository, provider, registry, fetcher, media.Options{
		MetadataTimeout: cfg.Metadata.Timeout,
	}, log)
	lessonService := lesson.NewService(lessonRepository, mediaRepository, transcriptRepository, transcriptService, cfg.Transcription.MinTranscriptLength, log)

	return &Services{
		Config:      cfg,
		Log:         log,
		Pool:        dbPool,
		Media:       mediaService,
		Lessons:     lessonService,
		Transcripts: transcriptService,
	}, cleanup, nil
}

// newMetadataFetcher builds the platform dispatcher, behind the redis cache when one is configured
func newMetadataFetcher(ctx context.Context, cfg *config.Config, registry *platform.Registry, log *logger.Logger) (platform.MetadataFetcher, func(), error) {
	client := &http.Client{Timeout: cfg.Metadata.Timeout}
	dispatcher := platform.NewDefaultDispatcher(registry, platform.NewYTDLPFetcher(), client)

	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var cache platform.Cache
	closeCache := func() {}
	if rdb != nil {
		cache = platform.NewRedisCache(rdb)
		closeCache = func() { _ = rdb.Close() }
	}

	var limiter *rate.Limiter
	if cfg.Metadata.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Metadata.RatePerSecond), 1)
	}

	return platform.NewCachedFetcher(dispatcher, cache, cfg.Metadata.CacheTTL, limiter, log), closeCache, nil
}

// newTranscriptionRouter wires the local tools and, when credentials allow it, the Google providers.
// A provider that cannot be dialed is left out of the chain.
func newTranscriptionRouter(ctx context.Context, cfg *config.Config, log *logger.Logger) (*transcription.Router, func()) {
	tc := cfg.Transcription
	captions := transcription.NewCaptionTranscriber(tc.Language)
	whisper := transcription.NewWhisperTranscriber(tc.WhisperModel, tc.Language)

	var closers []func()
	var speech, video transcription.Transcriber

	opts := upload.ClientOptionsFromEnv()
	if s, err := transcription.NewCloudSpeechTranscriber(ctx, tc.GCPLanguageCode, opts...); err != nil {
		log.Warn("cloud speech disabled", "error", err)
	} else {
		speech = s
		closers = append(closers, func() { _ = s.Close() })
	}
	if v, err := transcription.NewVideoIntelligenceTranscriber(ctx, tc.GCPLanguageCode, opts...); err != nil {
		log.Warn("video intelligence disabled", "error", err)
	} else {
		video = v
		closers = append(closers, func() { _ = v.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return transcription.NewRouter(captions, whisper, speech, video, log), closeAll
}

// CreateTranscriber builds the transcription router without touching the database
func (f *ServiceFactory) CreateTranscriber(ctx context.Context) (transcription.Transcriber, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	router, closeTranscribers := newTranscriptionRouter(ctx, cfg, log)
	return router, func() {
		closeTranscribers()
		log.Sync()
	}, nil
}
