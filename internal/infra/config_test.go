package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigMemoryDriverDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("KLING_BASE_URL", "")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("ARCHIVE_DRIVER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.KlingBaseURL != "https://api-singapore.klingai.com/v1" {
		t.Fatalf("KlingBaseURL mismatch: got %q", cfg.KlingBaseURL)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Fatalf("ProviderTimeout mismatch: got %s want %s", cfg.ProviderTimeout, 60*time.Second)
	}
	if cfg.ArchiveDriver != ArchiveDriverNone {
		t.Fatalf("ArchiveDriver mismatch: got %q want %q", cfg.ArchiveDriver, ArchiveDriverNone)
	}
}

func TestLoadConfigRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown STORE_DRIVER")
	}
}

func TestLoadConfigMinioRequiresEndpoint(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ARCHIVE_DRIVER", "minio")
	t.Setenv("MINIO_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when MINIO_ENDPOINT is missing")
	}
}

func TestLoadConfigParsesListsAndFlags(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ARCHIVE_DRIVER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SCRAPEGRAPH_SCROLLS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSOrigins) != len(expected) {
		t.Fatalf("CORSOrigins mismatch: got %#v want %#v", cfg.CORSOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSOrigins[i] != origin {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], origin)
		}
	}
	if !cfg.MinioUseSSL {
		t.Fatal("expected MinioUseSSL to be true")
	}
	if cfg.ScrapeGraphScrolls != 2 {
		t.Fatalf("ScrapeGraphScrolls mismatch: got %d want 2", cfg.ScrapeGraphScrolls)
	}
}
