package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chatsum/handler"
	"chatsum/internal/extract"
	"chatsum/internal/integrations/inference"
	"chatsum/internal/integrations/paramstore"
	"chatsum/internal/session"
	"chatsum/internal/usecase"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	// ---- Configuration (read only here) ----
	tokenParam := mustEnv("INFERENCE_TOKEN_PARAM")
	baseURL := envOrDefault("INFERENCE_BASE_URL", "https://api-inference.huggingface.co")
	model := envOrDefault("INFERENCE_MODEL", "t5-small")
	timeoutSeconds := envInt("INFERENCE_TIMEOUT_SECONDS", 60)
	maxTokens := envInt("MAX_TOKENS", 500)
	sessionTTLMinutes := envInt("SESSION_TTL_MINUTES", 30)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	inferenceClient, err := inference.NewClient(
		inference.WithBaseURL(baseURL),
		inference.WithModel(model),
		inference.WithHTTPClient(&http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}),
		inference.WithParameterStoreToken(ssmClient, tokenParam),
	)
	if err != nil {
		slog.Error("failed to create inference client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	summarizeService, err := usecase.NewSummarizeService(extract.New(), inferenceClient, maxTokens)
	if err != nil {
		slog.Error("failed to create summarize service", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(time.Duration(sessionTTLMinutes) * time.Minute)
	h, err := handler.NewHandler(summarizeService, sessions)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
