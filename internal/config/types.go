package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/ssh"

	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/vmid"
)

// Policy decides what happens when a qm step exits non-zero.
type Policy string

const (
	// PolicyBestEffort logs the failure and runs the remaining steps.
	PolicyBestEffort Policy = "best-effort"
	// PolicyFailFast aborts the template at the first failing step.
	PolicyFailFast Policy = "fail-fast"
)

// Config is the complete kiln configuration after defaults, config file,
// environment and flags have been merged.
type Config struct {
	Hardware  Hardware `mapstructure:"hardware" yaml:"hardware"`
	Network   Network  `mapstructure:"network" yaml:"network"`
	Naming    Naming   `mapstructure:"naming" yaml:"naming"`
	Disk      Disk     `mapstructure:"disk" yaml:"disk"`
	Storage   Storage  `mapstructure:"storage" yaml:"storage"`
	Policy    Policy   `mapstructure:"policy" yaml:"policy"`
	Catalog   string   `mapstructure:"catalog" yaml:"catalog,omitempty"` // file path or URL; empty means the embedded catalog
	Workdir   string   `mapstructure:"workdir" yaml:"workdir,omitempty"`
	Checklist bool     `mapstructure:"checklist" yaml:"checklist"`
	Log       Log      `mapstructure:"log" yaml:"log"`
}

// Hardware is the VM hardware profile applied to every template.
type Hardware struct {
	Memory  int    `mapstructure:"memory" yaml:"memory"` // MiB
	Cores   int    `mapstructure:"cores" yaml:"cores"`
	Sockets int    `mapstructure:"sockets" yaml:"sockets"`
	CPU     string `mapstructure:"cpu" yaml:"cpu"`
}

// Network is the template's first NIC and its cloud-init addressing.
type Network struct {
	Bridge string `mapstructure:"bridge" yaml:"bridge"`
	IPv4   string `mapstructure:"ipv4" yaml:"ipv4"` // dhcp or address/prefix
	IPv6   string `mapstructure:"ipv6" yaml:"ipv6"` // auto, dhcp or address/prefix
}

// Naming controls template names and ID allocation.
type Naming struct {
	Prefix  string `mapstructure:"prefix" yaml:"prefix"`
	StartID int    `mapstructure:"start_id" yaml:"start_id"`
}

// Disk holds the boot disk settings.
type Disk struct {
	Size string `mapstructure:"size" yaml:"size"` // qm resize syntax, e.g. 10G or +5G
}

// Storage names the Proxmox storages to use. Empty values are chosen
// interactively.
type Storage struct {
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	Snippets string `mapstructure:"snippets" yaml:"snippets,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var (
	diskSizePattern = regexp.MustCompile(`^\+?[0-9]+(\.[0-9]+)?[KMGT]?$`)
	cpuPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.+-]*$`)
	usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*[$]?$`)
)

// Normalize sanitizes user input to consistent formats.
func (c *Config) Normalize() {
	c.Hardware.CPU = strings.TrimSpace(c.Hardware.CPU)
	c.Network.Bridge = strings.TrimSpace(c.Network.Bridge)
	c.Network.IPv4 = strings.ToLower(strings.TrimSpace(c.Network.IPv4))
	c.Network.IPv6 = strings.ToLower(strings.TrimSpace(c.Network.IPv6))
	c.Naming.Prefix = naming.Slug(c.Naming.Prefix)
	c.Disk.Size = strings.ToUpper(strings.TrimSpace(c.Disk.Size))
	c.Storage.Name = strings.TrimSpace(c.Storage.Name)
	c.Storage.Snippets = strings.TrimSpace(c.Storage.Snippets)
	c.Policy = Policy(strings.ToLower(strings.TrimSpace(string(c.Policy))))
	c.Catalog = strings.TrimSpace(c.Catalog)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	if c.Naming.Prefix == "" {
		c.Naming.Prefix = naming.DefaultPrefix
	}
	if c.Naming.StartID < vmid.MinID {
		c.Naming.StartID = vmid.MinID
	}
	if c.Policy == "" {
		c.Policy = PolicyBestEffort
	}
}

// Validate checks the configuration for errors. It does not consult the
// Proxmox host; storages and bridges are checked when they are used.
func (c *Config) Validate() error {
	if err := c.Hardware.Validate(); err != nil {
		return fmt.Errorf("hardware: %w", err)
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if !diskSizePattern.MatchString(c.Disk.Size) {
		return fmt.Errorf("disk.size must look like 10G or +5G, got %q", c.Disk.Size)
	}

	switch c.Policy {
	case PolicyBestEffort, PolicyFailFast:
	default:
		return fmt.Errorf("policy must be %q or %q, got %q", PolicyBestEffort, PolicyFailFast, c.Policy)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	return nil
}

// Validate checks the hardware profile.
func (h *Hardware) Validate() error {
	if h.Memory < 16 {
		return fmt.Errorf("memory must be at least 16 MiB, got %d", h.Memory)
	}
	if h.Cores <= 0 {
		return fmt.Errorf("cores must be > 0, got %d", h.Cores)
	}
	if h.Sockets <= 0 {
		return fmt.Errorf("sockets must be > 0, got %d", h.Sockets)
	}
	if !cpuPattern.MatchString(h.CPU) {
		return fmt.Errorf("invalid cpu model %q", h.CPU)
	}
	return nil
}

// Validate checks the network profile.
func (n *Network) Validate() error {
	if n.Bridge == "" {
		return fmt.Errorf("bridge is required")
	}
	if strings.ContainsAny(n.Bridge, " ,=") {
		return fmt.Errorf("invalid bridge name %q", n.Bridge)
	}

	if n.IPv4 != "dhcp" {
		ip, _, err := net.ParseCIDR(n.IPv4)
		if err != nil || ip.To4() == nil {
			return fmt.Errorf("ipv4 must be dhcp or an IPv4 address with prefix, got %q", n.IPv4)
		}
	}

	switch n.IPv6 {
	case "auto", "dhcp":
	default:
		ip, _, err := net.ParseCIDR(n.IPv6)
		if err != nil || ip.To4() != nil {
			return fmt.Errorf("ipv6 must be auto, dhcp or an IPv6 address with prefix, got %q", n.IPv6)
		}
	}
	return nil
}

// IPConfig renders the value for `qm set --ipconfig0`.
func (n *Network) IPConfig() string {
	return fmt.Sprintf("ip=%s,ip6=%s", n.IPv4, n.IPv6)
}

// ValidateSSHKey checks that key parses as a single authorized_keys line.
func ValidateSSHKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("SSH public key is required")
	}
	if strings.Contains(key, "\n") {
		return fmt.Errorf("expected a single SSH public key line")
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("not a valid SSH public key: %w", err)
	}
	return nil
}

// ValidateUsername checks a cloud-init default user name.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if len(name) > 32 || !usernamePattern.MatchString(name) {
		return fmt.Errorf("username must be lowercase letters, digits, '-' or '_' and start with a letter, got %q", name)
	}
	return nil
}
