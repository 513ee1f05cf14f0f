package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/actions"
	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/config"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/services/passkey"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

// services bundles everything built from the configuration.
type services struct {
	flows    *flow.Service
	passkeys *passkey.Service
	cookies  *auth.Cookies
	metrics  *telemetry.Metrics
}

func buildServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	httpClient := &http.Client{Timeout: cfg.Zitadel.Timeout}
	api := zitadel.New(cfg.Zitadel.URL,
		zitadel.WithHTTPClient(httpClient),
		zitadel.WithUserAgent("gridlogin/"+cfg.Observability.ServiceVersion),
	)

	tokens, err := auth.NewTokenProvider(cfg.Zitadel.Admin, cfg.Zitadel.URL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("configure admin token: %w", err)
	}

	table, err := actions.FromConfig(cfg.Actions, api, logger.Named("actions"))
	if err != nil {
		return nil, fmt.Errorf("configure action rules: %w", err)
	}
	if table.Len() > 0 {
		logger.Info("action rules loaded", zap.Int("count", table.Len()))
	}

	hashKey, encryptKey, generated, err := auth.CookieKeys(cfg.Cookie)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn("cookie keys not configured, generated random keys; sessions will not survive a restart")
	}
	cookies := auth.NewCookies(cfg.Cookie.Name, hashKey, encryptKey, cfg.Cookie.Path, cfg.Cookie.Insecure, cfg.Cookie.MaxAge)

	metrics := telemetry.NewMetrics()

	flows := flow.NewService(flow.Dependencies{
		API:     api,
		Tokens:  tokens,
		Actions: table,
		Options: flow.Options{
			PasskeyDomain: cfg.Passkey.Domain,
			IDPSuccessURL: cfg.IDP.SuccessURL,
			IDPFailureURL: cfg.IDP.FailureURL,
		},
		Logger:  logger.Named("flow"),
		Metrics: metrics,
	})
	passkeys := passkey.NewService(api, tokens, cfg.Passkey.Domain, cfg.Passkey.Authenticator, logger.Named("passkey"))

	return &services{
		flows:    flows,
		passkeys: passkeys,
		cookies:  cookies,
		metrics:  metrics,
	}, nil
}
