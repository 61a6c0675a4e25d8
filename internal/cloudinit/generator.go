// Package cloudinit provides cloud-init configuration generation for VM provisioning.
//
// This package generates the NoCloud seed files (user-data, meta-data,
// network-config) for the same default user and addressing kiln applies to
// templates through qm, so a cloud image can be booted outside Proxmox with
// identical first-boot behavior.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/kiln/internal/config"
)

// Seed is everything needed to render a NoCloud seed.
type Seed struct {
	Hostname   string
	InstanceID string // generated when empty
	Username   string
	Password   string // plain text; empty leaves the account locked for passwords
	SSHKeys    []string
	Network    config.Network
}

// Validate checks the seed before rendering.
func (s *Seed) Validate() error {
	if s.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if err := config.ValidateUsername(s.Username); err != nil {
		return err
	}
	if s.Password == "" && len(s.SSHKeys) == 0 {
		return fmt.Errorf("a password or at least one SSH key is required")
	}
	for i, key := range s.SSHKeys {
		if err := config.ValidateSSHKey(key); err != nil {
			return fmt.Errorf("ssh_keys[%d]: %w", i, err)
		}
	}
	if err := s.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	return nil
}

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
type UserData struct {
	Hostname        string    `yaml:"hostname"`
	Users           []User    `yaml:"users"`
	Chpasswd        *Chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth bool      `yaml:"ssh_pwauth"`
	Output          *Output   `yaml:"output,omitempty"`
}

// User is an entry of the cloud-config users list.
type User struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo"`
	Shell             string   `yaml:"shell"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool           `yaml:"expire"`
	Users  []UserPassword `yaml:"users"`
}

// UserPassword sets one user's password.
type UserPassword struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Type     string `yaml:"type"`
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// MetaData represents the cloud-init meta-data structure.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// NetworkConfig represents the netplan v2 network configuration.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/network-config-format-v2.html
type NetworkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]EthernetConfig `yaml:"ethernets"`
}

// EthernetConfig represents a single ethernet interface configuration.
type EthernetConfig struct {
	Match     MatchConfig `yaml:"match"`
	DHCP4     bool        `yaml:"dhcp4"`
	DHCP6     bool        `yaml:"dhcp6"`
	AcceptRA  *bool       `yaml:"accept-ra,omitempty"`
	Addresses []string    `yaml:"addresses,omitempty"`
}

// MatchConfig matches interfaces by name pattern.
type MatchConfig struct {
	Name string `yaml:"name"`
}

// GenerateUserData generates the user-data YAML content for the seed.
//
// Returns the complete user-data file content including the "#cloud-config" header.
func GenerateUserData(s *Seed) (string, error) {
	if s == nil {
		return "", fmt.Errorf("seed cannot be nil")
	}

	userData := UserData{
		Hostname: s.Hostname,
		Users: []User{{
			Name:              s.Username,
			Sudo:              "ALL=(ALL) NOPASSWD:ALL",
			Shell:             "/bin/bash",
			LockPasswd:        s.Password == "",
			SSHAuthorizedKeys: s.SSHKeys,
		}},
		SSHPasswordAuth: s.Password != "",
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	if s.Password != "" {
		userData.Chpasswd = &Chpasswd{
			Expire: false,
			Users:  []UserPassword{{Name: s.Username, Password: s.Password, Type: "text"}},
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	// cloud-init only treats the file as cloud-config with this header
	return "#cloud-config\n" + string(yamlBytes), nil
}

// GenerateMetaData generates the meta-data YAML content for the seed.
//
// A fresh instance-id is generated when the seed has none, so every seed
// triggers a first boot.
func GenerateMetaData(s *Seed) (string, error) {
	if s == nil {
		return "", fmt.Errorf("seed cannot be nil")
	}

	instanceID := s.InstanceID
	if instanceID == "" {
		instanceID = "iid-" + uuid.NewString()
	}

	metaData := MetaData{
		InstanceID:    instanceID,
		LocalHostname: s.Hostname,
	}

	yamlBytes, err := yaml.Marshal(&metaData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}

	return string(yamlBytes), nil
}

// GenerateNetworkConfig generates the network-config YAML content.
//
// The first ethernet-like interface gets DHCP or the static address for each
// family, mirroring qm's ipconfig0 semantics: ipv6 "auto" means SLAAC.
func GenerateNetworkConfig(s *Seed) (string, error) {
	if s == nil {
		return "", fmt.Errorf("seed cannot be nil")
	}

	eth := EthernetConfig{Match: MatchConfig{Name: "e*"}}

	switch s.Network.IPv4 {
	case "dhcp":
		eth.DHCP4 = true
	default:
		if _, _, err := net.ParseCIDR(s.Network.IPv4); err != nil {
			return "", fmt.Errorf("invalid ipv4 %q: %w", s.Network.IPv4, err)
		}
		eth.Addresses = append(eth.Addresses, s.Network.IPv4)
	}

	switch s.Network.IPv6 {
	case "dhcp":
		eth.DHCP6 = true
	case "auto":
		acceptRA := true
		eth.AcceptRA = &acceptRA
	default:
		if _, _, err := net.ParseCIDR(s.Network.IPv6); err != nil {
			return "", fmt.Errorf("invalid ipv6 %q: %w", s.Network.IPv6, err)
		}
		eth.Addresses = append(eth.Addresses, s.Network.IPv6)
	}

	networkConfig := NetworkConfig{
		Version:   2,
		Ethernets: map[string]EthernetConfig{"primary": eth},
	}

	yamlBytes, err := yaml.Marshal(&networkConfig)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}

	return string(yamlBytes), nil
}
