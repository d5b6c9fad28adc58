package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"productreel/internal/infra"
	"productreel/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		providerFlag  string
		secretFlag    string
		accessKeyFlag string
		clientIDFlag  string
		userIDFlag    string
	)
	flag.StringVar(&providerFlag, "provider", credentials.ProviderKling, "provider to configure (scrapegraph, kling or dailymotion)")
	flag.StringVar(&secretFlag, "secret", "", "API key or secret (falls back to the provider's environment variable)")
	flag.StringVar(&accessKeyFlag, "access-key", "", "kling access key")
	flag.StringVar(&clientIDFlag, "client-id", "", "dailymotion client id")
	flag.StringVar(&userIDFlag, "user-id", "", "dailymotion user id")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	secret := firstNonEmpty(secretFlag, os.Getenv(secretEnv(provider)))
	props := map[string]string{}

	switch provider {
	case credentials.ProviderScrapeGraph:
	case credentials.ProviderKling:
		props[credentials.PropAccessKey] = firstNonEmpty(accessKeyFlag, os.Getenv("KLING_ACCESS_KEY"))
		if props[credentials.PropAccessKey] == "" {
			exitWithError(fmt.Errorf("kling access key is required via -access-key or KLING_ACCESS_KEY"))
		}
	case credentials.ProviderDailymotion:
		props[credentials.PropClientID] = firstNonEmpty(clientIDFlag, os.Getenv("DAILYMOTION_CLIENT_ID"))
		props[credentials.PropUserID] = firstNonEmpty(userIDFlag, os.Getenv("DAILYMOTION_USER_ID"))
		if props[credentials.PropClientID] == "" || props[credentials.PropUserID] == "" {
			exitWithError(fmt.Errorf("dailymotion client id and user id are required"))
		}
	default:
		exitWithError(fmt.Errorf("unsupported provider %q", providerFlag))
	}
	if secret == "" {
		exitWithError(fmt.Errorf("%s secret is required via -secret or %s", provider, secretEnv(provider)))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to create pool: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.Set(ctx, provider, secret, props); err != nil {
		pool.Close()
		exitWithError(fmt.Errorf("failed to persist %s credentials: %w", provider, err))
	}
	fmt.Printf("%s credentials stored successfully\n", provider)
}

func secretEnv(provider string) string {
	switch provider {
	case credentials.ProviderScrapeGraph:
		return "SCRAPEGRAPH_API_KEY"
	case credentials.ProviderDailymotion:
		return "DAILYMOTION_CLIENT_SECRET"
	default:
		return "KLING_SECRET_KEY"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
