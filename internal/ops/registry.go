/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package ops

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup represents the operational classification of commands
type CommandGroup string

const (
	GroupKit     CommandGroup = "kit"     // check, upgrade, apply, status
	GroupAuthor  CommandGroup = "author"  // lint, init: kit authoring aids
	GroupSupport CommandGroup = "support" // version, help
)

// CommandCategory refines a group into the kind of work a command does
type CommandCategory string

const (
	// Kit categories
	CategoryReconciliation CommandCategory = "reconciliation" // writes to a destination
	CategoryInspection     CommandCategory = "inspection"     // reads a destination or registry

	// Author categories
	CategoryValidation  CommandCategory = "validation"
	CategoryScaffolding CommandCategory = "scaffolding"

	// Support categories
	CategoryInformation CommandCategory = "information"
)

// CommandCapabilities declares what a command may do so help output and
// taxonomy validation can reason about it without running it.
type CommandCapabilities struct {
	MutatesDestination bool
	RequiresNetwork    bool
	SupportsDryRun     bool
	SupportsJSON       bool
}

// GetDefaultCapabilities returns the baseline capabilities for a
// group/category pair. Commands can override individual fields before
// registering.
func GetDefaultCapabilities(group CommandGroup, category CommandCategory) CommandCapabilities {
	caps := CommandCapabilities{SupportsJSON: true}
	switch category {
	case CategoryReconciliation:
		caps.MutatesDestination = true
		caps.SupportsDryRun = true
	case CategoryInspection:
		caps.RequiresNetwork = group == GroupKit
	case CategoryScaffolding:
		caps.MutatesDestination = true
		caps.SupportsDryRun = true
	}
	return caps
}

// CommandRegistration represents a registered command with its classification
type CommandRegistration struct {
	Name         string
	Group        CommandGroup
	Category     CommandCategory
	Capabilities CommandCapabilities
	Command      *cobra.Command
	Description  string
}

// Registry manages command classifications and registrations
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*CommandRegistration
	groupIndex map[CommandGroup][]*CommandRegistration
}

// NewRegistry returns an empty registry. Production code shares the
// global instance; tests build their own to stay isolated.
func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]*CommandRegistration),
		groupIndex: make(map[CommandGroup][]*CommandRegistration),
	}
}

// Global registry instance
var globalRegistry = NewRegistry()

// GetRegistry returns the global command registry
func GetRegistry() *Registry {
	return globalRegistry
}

// RegisterCommand registers a command with its operational classification
func RegisterCommand(name string, group CommandGroup, cmd *cobra.Command, description string) error {
	return globalRegistry.Register(name, group, cmd, description)
}

// RegisterCommandWithTaxonomy registers a command with full taxonomy
// information on the global registry
func RegisterCommandWithTaxonomy(name string, group CommandGroup, category CommandCategory, caps CommandCapabilities, cmd *cobra.Command, description string) error {
	return globalRegistry.RegisterWithTaxonomy(name, group, category, caps, cmd, description)
}

// Register adds a command to the registry without taxonomy detail
func (r *Registry) Register(name string, group CommandGroup, cmd *cobra.Command, description string) error {
	return r.RegisterWithTaxonomy(name, group, "", CommandCapabilities{}, cmd, description)
}

// RegisterWithTaxonomy adds a command to the registry
func (r *Registry) RegisterWithTaxonomy(name string, group CommandGroup, category CommandCategory, caps CommandCapabilities, cmd *cobra.Command, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}

	registration := &CommandRegistration{
		Name:         name,
		Group:        group,
		Category:     category,
		Capabilities: caps,
		Command:      cmd,
		Description:  description,
	}

	r.commands[name] = registration
	r.groupIndex[group] = append(r.groupIndex[group], registration)

	return nil
}

// GetCommand returns a registered command by name
func (r *Registry) GetCommand(name string) (*CommandRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommandsByGroup returns all commands in a specific group, sorted by
// name so grouped help output stays stable
func (r *Registry) GetCommandsByGroup(group CommandGroup) []*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*CommandRegistration, len(r.groupIndex[group]))
	copy(result, r.groupIndex[group])
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetKitCommands returns all commands classified as kit operations
func (r *Registry) GetKitCommands() []*CommandRegistration {
	return r.GetCommandsByGroup(GroupKit)
}

// GetAllCommands returns all registered commands
func (r *Registry) GetAllCommands() map[string]*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*CommandRegistration)
	for k, v := range r.commands {
		result[k] = v
	}
	return result
}

// ListGroups returns all command groups and their command counts
func (r *Registry) ListGroups() map[CommandGroup]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[CommandGroup]int)
	for group, commands := range r.groupIndex {
		result[group] = len(commands)
	}
	return result
}
