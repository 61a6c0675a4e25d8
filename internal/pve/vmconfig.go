package pve

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// VMConfig is the subset of a VM's configuration kiln reads back.
type VMConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Template    int    `json:"template"`
}

// IsTemplate reports whether the VM has been converted to a template.
func (c VMConfig) IsTemplate() bool {
	return c.Template == 1
}

// VMConfig reads the configuration of VM id on the local node.
func (c *Client) VMConfig(ctx context.Context, id int) (*VMConfig, error) {
	path := "/nodes/localhost/qemu/" + strconv.Itoa(id) + "/config"
	res, err := c.runner.Run(ctx, "pvesh", "get", path, "--output-format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to read config of VM %d: %w", id, err)
	}

	var cfg VMConfig
	if err := json.Unmarshal([]byte(res.Stdout), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config of VM %d: %w", id, err)
	}
	return &cfg, nil
}
