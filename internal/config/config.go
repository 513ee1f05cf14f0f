package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "GRIDLOGIN"

// Admin token acquisition modes.
const (
	AdminModePAT               = "pat"
	AdminModeClientCredentials = "client_credentials"
	AdminModeJWTProfile        = "jwt_profile"
)

// Config holds the application configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of the login pages (e.g. "https://login.example.com")
	AppURL string

	// Enable debug logging
	Debug bool

	Zitadel       ZitadelConfig
	Cookie        CookieConfig
	Passkey       PasskeyConfig
	IDP           IDPConfig
	CORS          CORSConfig
	Observability ObservabilityConfig

	// Actions is the ordered action rule table. Declaration order is execution order.
	Actions []ActionRuleConfig
}

// ZitadelConfig points at the ZITADEL instance and describes how the service account authenticates.
type ZitadelConfig struct {
	// URL is both the API base URL and the OIDC issuer
	URL     string
	Timeout time.Duration
	Admin   AdminConfig
}

// AdminConfig describes how the admin (service account) token is obtained.
type AdminConfig struct {
	Mode         string
	Token        string // pat mode
	ClientID     string // client_credentials mode
	ClientSecret string // client_credentials mode
	KeyPath      string // jwt_profile mode: path to the service account key file
	Scopes       []string
}

// CookieConfig controls the browser session cookie.
type CookieConfig struct {
	Name string
	// HashKey and EncryptKey are hex encoded. Random keys are generated at startup when empty.
	HashKey    string
	EncryptKey string
	Path       string
	Insecure   bool
	MaxAge     int
}

// PasskeyConfig holds the WebAuthn relying-party settings forwarded to ZITADEL.
type PasskeyConfig struct {
	Domain        string
	Authenticator string
}

// IDPConfig holds the redirect targets for external identity provider intents.
type IDPConfig struct {
	SuccessURL string
	FailureURL string
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds OpenTelemetry exporter settings.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// ActionRuleConfig is one entry of the `actions` list.
type ActionRuleConfig struct {
	Name     string       `mapstructure:"name"`
	FlowType string       `mapstructure:"flow_type"`
	Trigger  string       `mapstructure:"trigger"`
	OrgExpr  string       `mapstructure:"org_expr"`
	Action   ActionConfig `mapstructure:"action"`
}

// ActionConfig selects a built-in action kind and its parameters.
type ActionConfig struct {
	Type      string   `mapstructure:"type"`
	ProjectID string   `mapstructure:"project_id"`
	RoleKeys  []string `mapstructure:"role_keys"`
	Key       string   `mapstructure:"key"`
	Value     string   `mapstructure:"value"`
}

// DefaultAdminScopes are requested for the admin token when none are configured.
var DefaultAdminScopes = []string{"openid", "urn:zitadel:iam:org:project:id:zitadel:aud"}

func setDefaults() {
	viper.SetDefault("server_addr", "localhost:8080")
	viper.SetDefault("app_url", "http://localhost:8080")
	viper.SetDefault("debug", false)
	viper.SetDefault("zitadel.timeout", 10*time.Second)
	viper.SetDefault("zitadel.admin.mode", AdminModePAT)
	viper.SetDefault("zitadel.admin.scopes", DefaultAdminScopes)
	viper.SetDefault("cookie.name", "gridlogin.session")
	viper.SetDefault("cookie.path", "/")
	viper.SetDefault("cookie.insecure", false)
	viper.SetDefault("cookie.max_age", 0)
	viper.SetDefault("passkey.authenticator", "PASSKEY_AUTHENTICATOR_UNSPECIFIED")
	viper.SetDefault("observability.service_name", "gridlogin")
	viper.SetDefault("observability.service_version", "dev")
	viper.SetDefault("observability.environment", "development")
}

// Load reads configuration from viper: config file (if one was read), GRIDLOGIN_ prefixed
// environment variables and defaults, in increasing order of precedence for env vars.
func Load() (*Config, error) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	// Nested keys are read with explicit Get calls: AutomaticEnv does not populate
	// nested struct fields through Unmarshal.
	cfg := &Config{
		ServerAddr: viper.GetString("server_addr"),
		AppURL:     strings.TrimRight(viper.GetString("app_url"), "/"),
		Debug:      viper.GetBool("debug"),
		Zitadel: ZitadelConfig{
			URL:     strings.TrimRight(viper.GetString("zitadel.url"), "/"),
			Timeout: viper.GetDuration("zitadel.timeout"),
			Admin: AdminConfig{
				Mode:         viper.GetString("zitadel.admin.mode"),
				Token:        viper.GetString("zitadel.admin.token"),
				ClientID:     viper.GetString("zitadel.admin.client_id"),
				ClientSecret: viper.GetString("zitadel.admin.client_secret"),
				KeyPath:      viper.GetString("zitadel.admin.key_path"),
				Scopes:       viper.GetStringSlice("zitadel.admin.scopes"),
			},
		},
		Cookie: CookieConfig{
			Name:       viper.GetString("cookie.name"),
			HashKey:    viper.GetString("cookie.hash_key"),
			EncryptKey: viper.GetString("cookie.encrypt_key"),
			Path:       viper.GetString("cookie.path"),
			Insecure:   viper.GetBool("cookie.insecure"),
			MaxAge:     viper.GetInt("cookie.max_age"),
		},
		Passkey: PasskeyConfig{
			Domain:        viper.GetString("passkey.domain"),
			Authenticator: viper.GetString("passkey.authenticator"),
		},
		IDP: IDPConfig{
			SuccessURL: viper.GetString("idp.success_url"),
			FailureURL: viper.GetString("idp.failure_url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("cors.allowed_origins"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   viper.GetString("observability.otlp_endpoint"),
			OTLPInsecure:   viper.GetBool("observability.otlp_insecure"),
			ServiceName:    viper.GetString("observability.service_name"),
			ServiceVersion: viper.GetString("observability.service_version"),
			Environment:    viper.GetString("observability.environment"),
		},
	}

	if err := viper.UnmarshalKey("actions", &cfg.Actions); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}

	if cfg.Zitadel.URL == "" {
		return nil, fmt.Errorf("zitadel.url is required")
	}
	if cfg.AppURL == "" {
		return nil, fmt.Errorf("app_url is required")
	}
	if err := validateAdmin(cfg.Zitadel.Admin); err != nil {
		return nil, err
	}
	if len(cfg.Zitadel.Admin.Scopes) == 0 {
		cfg.Zitadel.Admin.Scopes = DefaultAdminScopes
	}

	if cfg.Passkey.Domain == "" {
		u, err := url.Parse(cfg.AppURL)
		if err != nil {
			return nil, fmt.Errorf("app_url is not a valid URL: %w", err)
		}
		cfg.Passkey.Domain = u.Hostname()
	}
	if cfg.IDP.SuccessURL == "" {
		cfg.IDP.SuccessURL = cfg.AppURL + "/idp/success"
	}
	if cfg.IDP.FailureURL == "" {
		cfg.IDP.FailureURL = cfg.AppURL + "/idp/failure"
	}

	return cfg, nil
}

func validateAdmin(admin AdminConfig) error {
	switch admin.Mode {
	case AdminModePAT:
		if admin.Token == "" {
			return fmt.Errorf("zitadel.admin.token is required for %s mode", AdminModePAT)
		}
	case AdminModeClientCredentials:
		if admin.ClientID == "" {
			return fmt.Errorf("zitadel.admin.client_id is required for %s mode", AdminModeClientCredentials)
		}
		if admin.ClientSecret == "" {
			return fmt.Errorf("zitadel.admin.client_secret is required for %s mode", AdminModeClientCredentials)
		}
	case AdminModeJWTProfile:
		if admin.KeyPath == "" {
			return fmt.Errorf("zitadel.admin.key_path is required for %s mode", AdminModeJWTProfile)
		}
	default:
		return fmt.Errorf("zitadel.admin.mode %q is not supported (use %s, %s or %s)",
			admin.Mode, AdminModePAT, AdminModeClientCredentials, AdminModeJWTProfile)
	}
	return nil
}
