package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"productreel/internal/infra"
	"productreel/internal/sqlinline"
)

const (
	ProviderScrapeGraph = "scrapegraph"
	ProviderKling       = "kling"
	ProviderDailymotion = "dailymotion"
)

// Property keys stored next to the provider secret.
const (
	PropAccessKey = "access_key"
	PropClientID  = "client_id"
	PropUserID    = "user_id"
)

// Credential is a provider secret plus its non-secret companions.
type Credential struct {
	Token      string
	Properties map[string]string
}

func (c Credential) Prop(key string) string {
	return strings.TrimSpace(c.Properties[key])
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Lookup returns the stored credential of provider. A missing row yields a
// zero Credential and no error.
func (s *Store) Lookup(ctx context.Context, provider string) (Credential, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var (
		token string
		raw   []byte
	)
	if err := row.Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return Credential{}, nil
		}
		return Credential{}, err
	}
	cred := Credential{Token: strings.TrimSpace(token), Properties: map[string]string{}}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cred.Properties); err != nil {
			return Credential{}, fmt.Errorf("decode %s properties: %w", provider, err)
		}
	}
	return cred, nil
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	cred, err := s.Lookup(ctx, provider)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (s *Store) Set(ctx context.Context, provider, token string, props map[string]string) error {
	provider = strings.TrimSpace(strings.ToLower(provider))
	switch provider {
	case ProviderScrapeGraph, ProviderKling, ProviderDailymotion:
	default:
		return fmt.Errorf("unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New(provider + " token is required")
	}
	return s.upsert(ctx, provider, token, props)
}

// FillConfig completes provider settings missing from the environment with the
// stored credentials. Values already set in cfg win.
func (s *Store) FillConfig(ctx context.Context, cfg *infra.Config) error {
	if cfg.ScrapeGraphAPIKey == "" {
		cred, err := s.Lookup(ctx, ProviderScrapeGraph)
		if err != nil {
			return err
		}
		cfg.ScrapeGraphAPIKey = cred.Token
	}
	if cfg.KlingSecretKey == "" || cfg.KlingAccessKey == "" {
		cred, err := s.Lookup(ctx, ProviderKling)
		if err != nil {
			return err
		}
		fill(&cfg.KlingSecretKey, cred.Token)
		fill(&cfg.KlingAccessKey, cred.Prop(PropAccessKey))
	}
	if cfg.DailymotionClientSecret == "" || cfg.DailymotionClientID == "" || cfg.DailymotionUserID == "" {
		cred, err := s.Lookup(ctx, ProviderDailymotion)
		if err != nil {
			return err
		}
		fill(&cfg.DailymotionClientSecret, cred.Token)
		fill(&cfg.DailymotionClientID, cred.Prop(PropClientID))
		fill(&cfg.DailymotionUserID, cred.Prop(PropUserID))
	}
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]string) error {
	payload := props
	if payload == nil {
		payload = map[string]string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, string(raw))
	return err
}
