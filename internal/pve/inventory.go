package pve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoStorage means no active storage accepts VM disk images.
	ErrNoStorage = errors.New("no storage available for VM images")

	// ErrNoSnippets means no cloud-init snippet files were found.
	ErrNoSnippets = errors.New("no cloud-init snippets found")
)

// fileBasedTypes are storage types backed by a filesystem. qm needs an
// explicit format for import-from on these; block storages pick their own.
var fileBasedTypes = map[string]bool{
	"dir":       true,
	"nfs":       true,
	"cifs":      true,
	"glusterfs": true,
	"cephfs":    true,
	"btrfs":     true,
}

// Storage is one row of `pvesm status`.
type Storage struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"`
	Active bool   `json:"active" yaml:"active"`
}

// FileBased reports whether the storage keeps images as files.
func (s Storage) FileBased() bool {
	return fileBasedTypes[s.Type]
}

// Snippet is a cloud-init snippet file on a storage.
type Snippet struct {
	Storage string `json:"storage" yaml:"storage"`
	File    string `json:"file" yaml:"file"`
}

// Ref is the volume reference accepted by `qm set --cicustom user=...`.
func (s Snippet) Ref() string {
	return s.Storage + ":snippets/" + s.File
}

// Inventory answers questions about the Proxmox host.
type Inventory interface {
	// UsedIDs lists every VM and container ID currently defined.
	UsedIDs(ctx context.Context) ([]int, error)
	// Storages lists active storages that accept VM disk images.
	Storages(ctx context.Context) ([]Storage, error)
	// Snippets lists cloud-init snippet files across snippet storages.
	Snippets(ctx context.Context) ([]Snippet, error)
}

// Client implements Inventory by running qm, pct and pvesm.
type Client struct {
	runner Runner
}

// NewClient returns a Client that shells out through runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// Runner returns the runner the client uses.
func (c *Client) Runner() Runner {
	return c.runner
}

// UsedIDs merges the IDs from `qm list` and `pct list`, sorted ascending.
func (c *Client) UsedIDs(ctx context.Context) ([]int, error) {
	seen := make(map[int]bool)
	for _, tool := range []string{"qm", "pct"} {
		res, err := c.runner.Run(ctx, tool, "list")
		if err != nil {
			return nil, fmt.Errorf("failed to list IDs with %s: %w", tool, err)
		}
		for _, id := range ParseIDList(res.Stdout) {
			seen[id] = true
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Storages returns active storages whose content includes images.
func (c *Client) Storages(ctx context.Context) ([]Storage, error) {
	res, err := c.runner.Run(ctx, "pvesm", "status", "--content", "images")
	if err != nil {
		return nil, fmt.Errorf("failed to list storages: %w", err)
	}

	var active []Storage
	for _, s := range ParseStorageStatus(res.Stdout) {
		if s.Active {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoStorage
	}
	return active, nil
}

// Snippets lists every snippet file on every active snippet storage.
func (c *Client) Snippets(ctx context.Context) ([]Snippet, error) {
	res, err := c.runner.Run(ctx, "pvesm", "status", "--content", "snippets")
	if err != nil {
		return nil, fmt.Errorf("failed to list snippet storages: %w", err)
	}

	var snippets []Snippet
	for _, s := range ParseStorageStatus(res.Stdout) {
		if !s.Active {
			continue
		}
		list, err := c.runner.Run(ctx, "pvesm", "list", s.Name, "--content", "snippets")
		if err != nil {
			return nil, fmt.Errorf("failed to list snippets on %s: %w", s.Name, err)
		}
		snippets = append(snippets, ParseSnippetList(s.Name, list.Stdout)...)
	}

	if len(snippets) == 0 {
		return nil, ErrNoSnippets
	}
	return snippets, nil
}

// ParseIDList extracts the numeric first column of `qm list` or `pct list`
// output. Header and malformed lines are skipped.
func ParseIDList(out string) []int {
	var ids []int
	for _, fields := range tableRows(out) {
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParseStorageStatus parses `pvesm status` output:
//
//	Name             Type     Status           Total            Used       Available        %
//	local             dir     active        98559220        10719376        82790296   10.88%
func ParseStorageStatus(out string) []Storage {
	var storages []Storage
	for _, fields := range tableRows(out) {
		if len(fields) < 3 || fields[0] == "Name" {
			continue
		}
		storages = append(storages, Storage{
			Name:   fields[0],
			Type:   fields[1],
			Active: fields[2] == "active",
		})
	}
	return storages
}

// ParseSnippetList parses `pvesm list <storage> --content snippets` output,
// keeping only volumes on storage.
//
//	Volid                      Format  Type            Size VMID
//	local:snippets/user.yaml   snippet snippets         512
func ParseSnippetList(storage, out string) []Snippet {
	prefix := storage + ":snippets/"
	var snippets []Snippet
	for _, fields := range tableRows(out) {
		volid := fields[0]
		if !strings.HasPrefix(volid, prefix) {
			continue
		}
		file := strings.TrimPrefix(volid, prefix)
		if file == "" {
			continue
		}
		snippets = append(snippets, Snippet{Storage: storage, File: file})
	}
	return snippets
}

func tableRows(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, fields)
	}
	return rows
}
