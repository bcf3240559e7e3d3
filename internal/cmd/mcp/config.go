package mcp

import (
	"flag"
	"fmt"
	"time"

	platformcmd "github.com/louisbranch/hs4gate/internal/platform/cmd"
	"github.com/louisbranch/hs4gate/internal/platform/config"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// Config holds MCP command configuration.
type Config struct {
	HubURL      string        `env:"HS4GATE_HUB_URL"      envDefault:"http://127.0.0.1"`
	HubUser     string        `env:"HS4GATE_HUB_USER"`
	HubPassword string        `env:"HS4GATE_HUB_PASSWORD"`
	HubTimeout  time.Duration `env:"HS4GATE_HUB_TIMEOUT"  envDefault:"10s"`

	Transport    string   `env:"HS4GATE_MCP_TRANSPORT"     envDefault:"stdio"`
	HTTPAddr     string   `env:"HS4GATE_MCP_HTTP_ADDR"     envDefault:"localhost:8081"`
	AllowedHosts []string `env:"HS4GATE_MCP_ALLOWED_HOSTS" envSeparator:","`
	AuthToken    string   `env:"HS4GATE_MCP_AUTH_TOKEN"`
	JWTSecret    string   `env:"HS4GATE_MCP_JWT_SECRET"`
	JWTAudience  string   `env:"HS4GATE_MCP_JWT_AUDIENCE"`

	// PolicyFile is a YAML policy overlay. Keys it sets win over env.
	PolicyFile             string   `env:"HS4GATE_POLICY_FILE"`
	ReadOnly               bool     `env:"HS4GATE_READ_ONLY"`
	DefaultDryRun          bool     `env:"HS4GATE_DEFAULT_DRY_RUN"`
	RequireConfirm         bool     `env:"HS4GATE_REQUIRE_CONFIRM"`
	AllowedDeviceRefs      []int    `env:"HS4GATE_ALLOWED_DEVICE_REFS"      envSeparator:","`
	AllowedEventIDs        []int    `env:"HS4GATE_ALLOWED_EVENT_IDS"        envSeparator:","`
	AllowedCameraIDs       []int    `env:"HS4GATE_ALLOWED_CAMERA_IDS"       envSeparator:","`
	AllowedScripts         []string `env:"HS4GATE_ALLOWED_SCRIPTS"          envSeparator:","`
	AllowedPluginFunctions []string `env:"HS4GATE_ALLOWED_PLUGIN_FUNCTIONS" envSeparator:","`

	AdminEnabled         bool     `env:"HS4GATE_ADMIN_ENABLED"`
	AdminDomains         []string `env:"HS4GATE_ADMIN_DOMAINS"                 envSeparator:","`
	MaintenanceWindowID  string   `env:"HS4GATE_ADMIN_MAINTENANCE_WINDOW_ID"`
	MaintenanceWindowIDs []string `env:"HS4GATE_ADMIN_MAINTENANCE_WINDOW_IDS"  envSeparator:","`
	RequireChangeTicket  bool     `env:"HS4GATE_ADMIN_REQUIRE_CHANGE_TICKET"`
	AllowedUserIDs       []string `env:"HS4GATE_ADMIN_ALLOWED_USER_IDS"        envSeparator:","`
	AllowedPluginIDs     []string `env:"HS4GATE_ADMIN_ALLOWED_PLUGIN_IDS"      envSeparator:","`
	AllowedInterfaceIDs  []string `env:"HS4GATE_ADMIN_ALLOWED_INTERFACE_IDS"   envSeparator:","`
	AllowedCategoryIDs   []string `env:"HS4GATE_ADMIN_ALLOWED_CATEGORY_IDS"    envSeparator:","`

	ChangeTokenTTL        time.Duration `env:"HS4GATE_CHANGE_TOKEN_TTL"         envDefault:"10m"`
	ChangeTokenMaxEntries int           `env:"HS4GATE_CHANGE_TOKEN_MAX_ENTRIES" envDefault:"500"`
	ChangeTokenLog        string        `env:"HS4GATE_CHANGE_TOKEN_LOG"`
	RequireTwoPhaseAdmin  bool          `env:"HS4GATE_REQUIRE_TWO_PHASE_ADMIN"`

	AdminRouteMode     string        `env:"HS4GATE_ADMIN_ROUTE_MODE"     envDefault:"auto"`
	AdminFallback      bool          `env:"HS4GATE_ADMIN_FALLBACK"       envDefault:"true"`
	AdminCapabilityTTL time.Duration `env:"HS4GATE_ADMIN_CAPABILITY_TTL" envDefault:"10m"`
	AdminAdapterScript string        `env:"HS4GATE_ADMIN_ADAPTER_SCRIPT" envDefault:"hs4gate_admin.vb"`

	VerifyAttempts int           `env:"HS4GATE_VERIFY_ATTEMPTS" envDefault:"6"`
	VerifyDelay    time.Duration `env:"HS4GATE_VERIFY_DELAY"    envDefault:"250ms"`
	StatusSource   string        `env:"HS4GATE_STATUS_SOURCE"   envDefault:"hs4gate"`

	// AuditDB is the SQLite audit path. Empty keeps audit in memory.
	AuditDB             string `env:"HS4GATE_AUDIT_DB"`
	AuditMemoryCapacity int    `env:"HS4GATE_AUDIT_MEMORY_CAPACITY" envDefault:"1000"`

	LogLevel  string `env:"HS4GATE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"HS4GATE_LOG_FORMAT" envDefault:"auto"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return parseConfig(fs, args, nil)
}

func parseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg, environ); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HubURL, "hub", cfg.HubURL, "HS4 hub base URL")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "YAML policy file")
	fs.StringVar(&cfg.AuditDB, "audit-db", cfg.AuditDB, "SQLite audit database path (empty keeps audit in memory)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PolicyConfig builds the static policy from env values and the optional
// YAML overlay.
func (c Config) PolicyConfig() (policy.Config, error) {
	domains := make([]policy.Domain, 0, len(c.AdminDomains))
	for _, raw := range c.AdminDomains {
		domain, ok := policy.ParseDomain(raw)
		if !ok {
			return policy.Config{}, fmt.Errorf("unknown admin domain %q", raw)
		}
		domains = append(domains, domain)
	}

	cfg := policy.Config{
		ReadOnly:               c.ReadOnly,
		DefaultDryRun:          c.DefaultDryRun,
		RequireConfirm:         c.RequireConfirm,
		AllowedDeviceRefs:      c.AllowedDeviceRefs,
		AllowedEventIDs:        c.AllowedEventIDs,
		AllowedCameraIDs:       c.AllowedCameraIDs,
		AllowedScripts:         c.AllowedScripts,
		AllowedPluginFunctions: c.AllowedPluginFunctions,
		Admin: policy.AdminConfig{
			Enabled:              c.AdminEnabled,
			EnabledDomains:       domains,
			MaintenanceWindowID:  c.MaintenanceWindowID,
			MaintenanceWindowIDs: c.MaintenanceWindowIDs,
			RequireChangeTicket:  c.RequireChangeTicket,
			AllowedUserIDs:       c.AllowedUserIDs,
			AllowedPluginIDs:     c.AllowedPluginIDs,
			AllowedInterfaceIDs:  c.AllowedInterfaceIDs,
			AllowedCategoryIDs:   c.AllowedCategoryIDs,
		},
	}
	if c.PolicyFile == "" {
		return cfg, nil
	}
	if err := config.LoadYAML(c.PolicyFile, &cfg); err != nil {
		return policy.Config{}, fmt.Errorf("load policy: %w", err)
	}
	for _, domain := range cfg.Admin.EnabledDomains {
		if _, ok := policy.ParseDomain(string(domain)); !ok {
			return policy.Config{}, fmt.Errorf("unknown admin domain %q", domain)
		}
	}
	return cfg, nil
}
