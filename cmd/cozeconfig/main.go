package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"facestudio/internal/infra"
	"facestudio/internal/infra/settings"
	"facestudio/internal/providers/coze"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		valueFlag string
		showFlag  bool
	)
	flag.StringVar(&keyFlag, "key", "", "config key to set ("+strings.Join(coze.ConfigKeys(), ", ")+")")
	flag.StringVar(&valueFlag, "value", "", "value to store under -key")
	flag.BoolVar(&showFlag, "show", false, "print the resolved Coze configuration")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	value := strings.TrimSpace(valueFlag)
	if !showFlag {
		if !slices.Contains(coze.ConfigKeys(), key) {
			fmt.Fprintf(os.Stderr, "unsupported key %q\n", keyFlag)
			os.Exit(1)
		}
		if value == "" {
			fmt.Fprintln(os.Stderr, "-value is required")
			os.Exit(1)
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "cozeconfig").Logger()
	store := settings.NewStore(infra.NewSQLRunner(pool, logger))

	if showFlag {
		entry := coze.NewConfigCache(coze.ConfigCacheOptions{Store: store, Logger: &logger}).Get(ctx)
		fmt.Printf("api key:               %s\n", mask(entry.APIKey))
		fmt.Printf("bot id:                %s\n", entry.BotID)
		fmt.Printf("single face workflow:  %s\n", entry.SingleFaceWorkflowID)
		fmt.Printf("double face workflow:  %s\n", entry.DoubleFaceWorkflowID)
		fmt.Printf("user analyze workflow: %s\n", entry.UserAnalyzeWorkflowID)
		return
	}

	if err := store.SetValue(ctx, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s: %v\n", key, err)
		os.Exit(1)
	}
	fmt.Printf("%s stored; running servers pick it up within %s\n", key, coze.DefaultConfigTTL)
}

func mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
