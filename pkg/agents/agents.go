// Package agents describes the interview phases as static agent
// definitions and the handoff graph between them.
package agents

import (
	"fmt"

	"github.com/vango-go/mensetsu/pkg/core"
)

// TransferToolName is the function tool the remote model calls to
// request a handoff to a downstream agent.
const TransferToolName = "transferAgents"

// Tool is a callable action definition sent to the remote model in
// the session configuration.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Agent is one interview phase: a directive text for the remote model,
// the actions it may invoke, and the agents it may hand off to. An
// empty downstream set marks a terminal agent.
type Agent struct {
	Name              string
	PublicDescription string
	Instructions      string
	Tools             []Tool
	DownstreamAgents  []string
}

// Registry is the immutable set of agents for a session. Allowed
// transitions are encoded as outgoing edges on each agent, so every
// phase declares its own exit points and an illegal handoff attempt
// is a local contract violation rather than silent state corruption.
type Registry struct {
	agents map[string]Agent
	order  []string
	entry  string
}

// NewRegistry builds a registry from static configuration. The first
// agent is the entry point. Each agent with downstream targets gets
// the transfer tool injected; the handoff graph must be acyclic and
// every agent must be reachable from the entry.
func NewRegistry(defs ...Agent) (*Registry, error) {
	if len(defs) == 0 {
		return nil, core.NewInvalidRequestError("registry requires at least one agent")
	}

	r := &Registry{
		agents: make(map[string]Agent, len(defs)),
		order:  make([]string, 0, len(defs)),
		entry:  defs[0].Name,
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, core.NewInvalidRequestError("agent name must not be empty")
		}
		if _, exists := r.agents[def.Name]; exists {
			return nil, core.NewInvalidRequestError(fmt.Sprintf("duplicate agent name %q", def.Name))
		}
		r.agents[def.Name] = def
		r.order = append(r.order, def.Name)
	}

	for name, def := range r.agents {
		for _, target := range def.DownstreamAgents {
			if _, ok := r.agents[target]; !ok {
				return nil, core.NewInvalidRequestError(fmt.Sprintf("agent %q declares unknown downstream %q", name, target))
			}
		}
		if len(def.DownstreamAgents) > 0 {
			def.Tools = append(def.Tools, transferTool(def))
			r.agents[name] = def
		}
	}

	if err := r.validateGraph(); err != nil {
		return nil, err
	}
	return r, nil
}

// transferTool builds the handoff tool for an agent, constraining the
// destination to its declared downstream set.
func transferTool(def Agent) Tool {
	destinations := make([]any, 0, len(def.DownstreamAgents))
	for _, name := range def.DownstreamAgents {
		destinations = append(destinations, name)
	}
	return Tool{
		Type:        "function",
		Name:        TransferToolName,
		Description: "Transfer the conversation to a more suitable agent. Call this immediately when your phase of the interview is complete.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"destination_agent": map[string]any{
					"type":        "string",
					"description": "The name of the agent to transfer to.",
					"enum":        destinations,
				},
				"rationale_for_transfer": map[string]any{
					"type":        "string",
					"description": "Why the conversation is being transferred.",
				},
			},
			"required": []any{"destination_agent"},
		},
	}
}

func (r *Registry) validateGraph() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(r.agents))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return core.NewInvalidRequestError(fmt.Sprintf("handoff graph has a cycle through %q", name))
		case done:
			return nil
		}
		state[name] = visiting
		for _, target := range r.agents[name].DownstreamAgents {
			if err := visit(target); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	if err := visit(r.entry); err != nil {
		return err
	}

	for _, name := range r.order {
		if state[name] != done {
			return core.NewInvalidRequestError(fmt.Sprintf("agent %q is not reachable from entry %q", name, r.entry))
		}
	}
	return nil
}

// Resolve returns the agent with the given name.
func (r *Registry) Resolve(name string) (Agent, error) {
	agent, ok := r.agents[name]
	if !ok {
		return Agent{}, core.NewUnknownAgentError(name)
	}
	return agent, nil
}

// CanHandoff reports whether from may hand off to to.
func (r *Registry) CanHandoff(from, to string) bool {
	agent, ok := r.agents[from]
	if !ok {
		return false
	}
	for _, target := range agent.DownstreamAgents {
		if target == to {
			return true
		}
	}
	return false
}

// Entry returns the entry agent.
func (r *Registry) Entry() Agent {
	return r.agents[r.entry]
}

// Names lists agent names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
