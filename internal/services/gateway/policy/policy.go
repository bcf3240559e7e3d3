// Package policy decides whether a mutation request may run.
//
// Evaluate is a pure function of the request and the static Config. Every
// violated rule is reported; callers turn a denial into POLICY_DENY.
package policy

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Tier separates everyday device operations from privileged hub administration.
type Tier string

const (
	TierOperator Tier = "operator"
	TierAdmin    Tier = "admin"
)

// Domain is an admin subsystem of the hub.
type Domain string

const (
	DomainUsers      Domain = "users"
	DomainPlugins    Domain = "plugins"
	DomainInterfaces Domain = "interfaces"
	DomainCategories Domain = "categories"
	DomainCameras    Domain = "cameras"
	DomainEvents     Domain = "events"
	DomainConfig     Domain = "config"
	DomainSystem     Domain = "system"
)

// Domains lists every admin domain.
var Domains = []Domain{
	DomainUsers,
	DomainPlugins,
	DomainInterfaces,
	DomainCategories,
	DomainCameras,
	DomainEvents,
	DomainConfig,
	DomainSystem,
}

// ParseDomain validates a domain name.
func ParseDomain(raw string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(raw)))
	return d, slices.Contains(Domains, d)
}

// AdminConfig gates admin-tier mutations.
type AdminConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// EnabledDomains lists the domains open to admin mutations.
	EnabledDomains []Domain `yaml:"enabled_domains" json:"enabled_domains"`
	// MaintenanceWindowID, when set, is the only accepted window.
	MaintenanceWindowID string `yaml:"maintenance_window_id" json:"maintenance_window_id"`
	// MaintenanceWindowIDs, when non-nil, is the accepted window allowlist.
	MaintenanceWindowIDs []string `yaml:"maintenance_window_ids" json:"maintenance_window_ids"`
	RequireChangeTicket  bool     `yaml:"require_change_ticket" json:"require_change_ticket"`

	AllowedUserIDs      []string `yaml:"allowed_user_ids" json:"allowed_user_ids"`
	AllowedPluginIDs    []string `yaml:"allowed_plugin_ids" json:"allowed_plugin_ids"`
	AllowedInterfaceIDs []string `yaml:"allowed_interface_ids" json:"allowed_interface_ids"`
	AllowedCategoryIDs  []string `yaml:"allowed_category_ids" json:"allowed_category_ids"`
}

// Config is the static server policy. A nil allowlist is unconfigured and
// allows everything; a non-nil empty allowlist allows nothing.
type Config struct {
	ReadOnly       bool `yaml:"read_only" json:"read_only"`
	DefaultDryRun  bool `yaml:"default_dry_run" json:"default_dry_run"`
	RequireConfirm bool `yaml:"require_confirm" json:"require_confirm"`

	AllowedDeviceRefs      []int    `yaml:"allowed_device_refs" json:"allowed_device_refs"`
	AllowedEventIDs        []int    `yaml:"allowed_event_ids" json:"allowed_event_ids"`
	AllowedCameraIDs       []int    `yaml:"allowed_camera_ids" json:"allowed_camera_ids"`
	AllowedScripts         []string `yaml:"allowed_scripts" json:"allowed_scripts"`
	AllowedPluginFunctions []string `yaml:"allowed_plugin_functions" json:"allowed_plugin_functions"`

	Admin AdminConfig `yaml:"admin" json:"admin"`
}

// AdminFields carries the change-control metadata of an admin request.
type AdminFields struct {
	Domain              Domain
	MaintenanceWindowID string
	ChangeTicketID      string
	RiskLevel           string
}

// Targets names every entity a request touches.
type Targets struct {
	DeviceRefs     []int
	EventIDs       []int
	CameraIDs      []int
	ScriptCommand  string
	PluginFunction string

	UserIDs      []string
	PluginIDs    []string
	InterfaceIDs []string
	CategoryIDs  []string
}

// Request describes one mutation. Admin is only consulted for TierAdmin.
type Request struct {
	Tool    string
	Action  string
	Confirm bool
	Intent  string
	Reason  string
	DryRun  bool
	Tier    Tier
	Admin   *AdminFields
	Targets Targets
}

// Normalized is the canonical view of a request used for audit entries.
type Normalized struct {
	Tier                Tier   `json:"tier"`
	Domain              Domain `json:"domain,omitempty"`
	MaintenanceWindowID string `json:"maintenanceWindowId,omitempty"`
	ChangeTicketID      string `json:"changeTicketId,omitempty"`
	RiskLevel           string `json:"riskLevel,omitempty"`
	ScriptID            string `json:"scriptId,omitempty"`
	PluginFunction      string `json:"pluginFunction,omitempty"`
}

// Decision is the result of Evaluate. Reasons is empty iff Allowed.
type Decision struct {
	Allowed         bool       `json:"allowed"`
	EffectiveDryRun bool       `json:"effectiveDryRun"`
	Reasons         []string   `json:"reasons"`
	Normalized      Normalized `json:"normalized"`
}

// Engine evaluates requests against a Config.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine over cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's static policy.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate applies every rule to req.
func (e *Engine) Evaluate(req Request) Decision {
	cfg := e.cfg
	tier := req.Tier
	if tier == "" {
		tier = TierOperator
	}
	var admin AdminFields
	if tier == TierAdmin && req.Admin != nil {
		admin = *req.Admin
	}

	decision := Decision{
		EffectiveDryRun: req.DryRun || cfg.DefaultDryRun,
		Reasons:         []string{},
		Normalized: Normalized{
			Tier:           tier,
			ScriptID:       ScriptID(req.Targets.ScriptCommand),
			PluginFunction: strings.TrimSpace(req.Targets.PluginFunction),
		},
	}
	if tier == TierAdmin {
		decision.Normalized.Domain = admin.Domain
		decision.Normalized.MaintenanceWindowID = strings.TrimSpace(admin.MaintenanceWindowID)
		decision.Normalized.ChangeTicketID = strings.TrimSpace(admin.ChangeTicketID)
		decision.Normalized.RiskLevel = strings.TrimSpace(admin.RiskLevel)
	}

	deny := func(format string, args ...any) {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf(format, args...))
	}

	if cfg.ReadOnly && !decision.EffectiveDryRun {
		deny("server is in read-only mode; only dry-run requests are allowed")
	}
	if !req.DryRun {
		if cfg.RequireConfirm && !req.Confirm {
			deny("confirm=true is required for non-dry-run mutations")
		}
		if strings.TrimSpace(req.Intent) == "" {
			deny("intent is required for non-dry-run mutations")
		}
		if strings.TrimSpace(req.Reason) == "" {
			deny("reason is required for non-dry-run mutations")
		}
	}

	t := req.Targets
	if missing := missingInts(cfg.AllowedDeviceRefs, t.DeviceRefs); len(missing) > 0 {
		deny("device refs not in allowlist: %s", strings.Join(missing, ", "))
	}
	if missing := missingInts(cfg.AllowedEventIDs, t.EventIDs); len(missing) > 0 {
		deny("event ids not in allowlist: %s", strings.Join(missing, ", "))
	}
	if missing := missingInts(cfg.AllowedCameraIDs, t.CameraIDs); len(missing) > 0 {
		deny("camera ids not in allowlist: %s", strings.Join(missing, ", "))
	}
	if cfg.AllowedScripts != nil && strings.TrimSpace(t.ScriptCommand) != "" {
		switch script := decision.Normalized.ScriptID; {
		case script == "":
			deny("script not in allowlist: no script name in command")
		case !containsFold(cfg.AllowedScripts, script):
			deny("script not in allowlist: %s", script)
		}
	}
	if fn := decision.Normalized.PluginFunction; fn != "" && cfg.AllowedPluginFunctions != nil && !slices.Contains(cfg.AllowedPluginFunctions, fn) {
		deny("plugin function not in allowlist: %s", fn)
	}
	if missing := missingStrings(cfg.Admin.AllowedUserIDs, t.UserIDs); len(missing) > 0 {
		deny("user ids not in allowlist: %s", strings.Join(missing, ", "))
	}
	if missing := missingStrings(cfg.Admin.AllowedPluginIDs, t.PluginIDs); len(missing) > 0 {
		deny("plugin ids not in allowlist: %s", strings.Join(missing, ", "))
	}
	if missing := missingStrings(cfg.Admin.AllowedInterfaceIDs, t.InterfaceIDs); len(missing) > 0 {
		deny("interface ids not in allowlist: %s", strings.Join(missing, ", "))
	}
	if missing := missingStrings(cfg.Admin.AllowedCategoryIDs, t.CategoryIDs); len(missing) > 0 {
		deny("category ids not in allowlist: %s", strings.Join(missing, ", "))
	}

	if tier == TierAdmin {
		n := decision.Normalized
		if kind, configured, named := adminTargetScope(cfg, n.Domain, t); configured && !named {
			deny("%s allowlist is configured but the payload names no %s id", kind, kind)
		}
		if !cfg.Admin.Enabled {
			deny("admin operations are disabled")
		}
		switch {
		case n.Domain == "":
			deny("admin domain is required")
		case !slices.Contains(Domains, n.Domain):
			deny("unknown admin domain: %s", n.Domain)
		case !slices.Contains(cfg.Admin.EnabledDomains, n.Domain):
			deny("admin domain is disabled: %s", n.Domain)
		}
		if n.MaintenanceWindowID == "" {
			deny("maintenanceWindowId is required for admin operations")
		} else {
			if required := strings.TrimSpace(cfg.Admin.MaintenanceWindowID); required != "" && n.MaintenanceWindowID != required {
				deny("maintenanceWindowId does not match the active window")
			}
			if cfg.Admin.MaintenanceWindowIDs != nil && !slices.Contains(cfg.Admin.MaintenanceWindowIDs, n.MaintenanceWindowID) {
				deny("maintenanceWindowId not in allowlist: %s", n.MaintenanceWindowID)
			}
		}
		if cfg.Admin.RequireChangeTicket && n.ChangeTicketID == "" {
			deny("changeTicketId is required for admin operations")
		}
	}

	decision.Allowed = len(decision.Reasons) == 0
	return decision
}

func missingInts(allowed, requested []int) []string {
	if allowed == nil {
		return nil
	}
	var missing []string
	for _, v := range requested {
		if !slices.Contains(allowed, v) {
			missing = append(missing, strconv.Itoa(v))
		}
	}
	return missing
}

func missingStrings(allowed, requested []string) []string {
	if allowed == nil {
		return nil
	}
	var missing []string
	for _, v := range requested {
		if !slices.Contains(allowed, v) {
			missing = append(missing, v)
		}
	}
	return missing
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

// adminTargetScope reports, for domains guarded by an id allowlist, whether
// that allowlist is configured and whether the request names an id for it.
func adminTargetScope(cfg Config, domain Domain, t Targets) (kind string, configured, named bool) {
	switch domain {
	case DomainUsers:
		return "user", cfg.Admin.AllowedUserIDs != nil, len(t.UserIDs) > 0
	case DomainPlugins:
		return "plugin", cfg.Admin.AllowedPluginIDs != nil, len(t.PluginIDs) > 0
	case DomainInterfaces:
		return "interface", cfg.Admin.AllowedInterfaceIDs != nil, len(t.InterfaceIDs) > 0
	case DomainCategories:
		return "category", cfg.Admin.AllowedCategoryIDs != nil, len(t.CategoryIDs) > 0
	case DomainCameras:
		return "camera", cfg.AllowedCameraIDs != nil, len(t.CameraIDs) > 0
	case DomainEvents:
		return "event", cfg.AllowedEventIDs != nil, len(t.EventIDs) > 0
	}
	return "", false, false
}
