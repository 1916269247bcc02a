package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"facestudio/internal/domain"
	"facestudio/internal/infra"
	"facestudio/internal/photo"
	"facestudio/internal/providers/coze"
)

// FaceAnalyzer classifies a user photo.
type FaceAnalyzer interface {
	AnalyzeFace(ctx context.Context, imageURL string) *coze.FaceAnalysisResult
}

// PhotoQueue runs photo batches.
type PhotoQueue interface {
	CreateBatch(ctx context.Context, req photo.CreateRequest) (*domain.PhotoBatch, error)
	Get(batchID, ownerID string) (*domain.PhotoBatch, error)
	Cancel(batchID, ownerID string) (*domain.PhotoBatch, error)
}

// SettingsWriter persists runtime configuration values.
type SettingsWriter interface {
	SetValue(ctx context.Context, key, value string) error
}

// CacheInvalidator drops cached runtime configuration.
type CacheInvalidator interface {
	Clear()
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Logger     *infra.Logger
	Analyzer   FaceAnalyzer
	Photos     PhotoQueue
	Settings   SettingsWriter
	CozeConfig CacheInvalidator
	DB         Pinger
	Validate   *validator.Validate
}

// AppOptions wires an App.
type AppOptions struct {
	Logger     *infra.Logger
	Analyzer   FaceAnalyzer
	Photos     PhotoQueue
	Settings   SettingsWriter
	CozeConfig CacheInvalidator
	DB         Pinger
}

func NewApp(opts AppOptions) *App {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &App{
		Logger:     logger,
		Analyzer:   opts.Analyzer,
		Photos:     opts.Photos,
		Settings:   opts.Settings,
		CozeConfig: opts.CozeConfig,
		DB:         opts.DB,
		Validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// logger returns the request scoped logger set by the logging middleware,
// falling back to the application logger.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}
