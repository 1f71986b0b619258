package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/prepzo/go-prepzo/pkg/convo"
	"github.com/prepzo/go-prepzo/pkg/inference"
	"github.com/prepzo/go-prepzo/pkg/kb"
	"github.com/prepzo/go-prepzo/pkg/resume"
	"github.com/prepzo/go-prepzo/pkg/room"
	"github.com/prepzo/go-prepzo/pkg/websearch"
)

// Tool represents a callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Handler     func(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry maps tool names to implementations and records every
// invocation in the conversation store.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	convo  *convo.Manager
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry bound to a conversation.
func NewRegistry(manager *convo.Manager, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		convo:  manager,
		logger: logger.With("component", "agent.registry"),
	}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns tool definitions in the shape the model expects.
func (r *Registry) Specs() []inference.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]inference.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{}
		}
		specs = append(specs, inference.NewTool(t.Name, t.Description, map[string]interface{}{
			"type":       "object",
			"properties": params,
			"required":   requiredParams(params),
		}))
	}
	return specs
}

// Invoke executes a structured tool call with full error containment.
// A tool_call message is recorded before execution and a tool_result
// after; errors are converted to an apology string so a failing tool
// never ends the conversation.
func (r *Registry) Invoke(ctx context.Context, call inference.ToolCall) string {
	args := parseArgs(call.Arguments)
	r.record(convo.ToolCallMessage(call.Name, call.Arguments))

	result, err := r.execute(ctx, call.Name, args)
	if err != nil {
		r.logger.Error("tool failed", "tool", call.Name, "error", err)
		result = toolFailureResponse
	}

	r.record(convo.ToolResultMessage(call.Name, result))
	return result
}

// Trigger executes a sentinel-initiated tool. Unlike Invoke, a handler
// error propagates to the caller: the turn ends without a spoken
// confirmation and only the tool_call record remains.
func (r *Registry) Trigger(ctx context.Context, name string) error {
	r.record(convo.ToolCallMessage(name, ""))

	result, err := r.execute(ctx, name, nil)
	if err != nil {
		return err
	}

	r.record(convo.ToolResultMessage(name, result))
	return nil
}

func (r *Registry) execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Handler(ctx, args)
}

func (r *Registry) record(msg convo.Message) {
	if r.convo != nil {
		r.convo.AddMessage(msg)
	}
}

// parseArgs decodes a JSON argument string, tolerating empty or
// malformed input.
func parseArgs(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}

func requiredParams(params map[string]interface{}) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

// ToolsConfig holds dependencies for Prepzo's tools. Nil fields
// degrade the matching tool to an unavailable response.
type ToolsConfig struct {
	Convo     *convo.Manager
	Store     convo.SessionStore
	Room      room.Room
	Search    *websearch.Service
	Knowledge *kb.Searcher
	Resume    *resume.Service
	Logger    *slog.Logger
}

// Tools returns all tools available to the coaching agent.
func Tools(cfg ToolsConfig) []Tool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent.tools")

	return []Tool{
		{
			Name:        "get_user_email",
			Description: "Returns the user's stored email address for this session, or 'email not found' if none is on file. Call this before ever asking for an email.",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if cfg.Convo != nil {
					if email := cfg.Convo.UserEmail(); email != "" {
						return email, nil
					}
				}
				if cfg.Store != nil && cfg.Convo != nil {
					email, err := cfg.Store.EmailForSession(ctx, cfg.Convo.SessionID())
					if err == nil && email != "" {
						return email, nil
					}
					if err != nil && !errors.Is(err, convo.ErrNoEmail) {
						logger.Error("email lookup failed", "error", err)
					}
				}
				return "email not found", nil
			},
		},
		{
			Name:        "request_email",
			Description: "Shows the email collection form to the user. Call when the user agrees to share their email.",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if cfg.Room == nil {
					return "", room.ErrNotConnected
				}
				payload, _ := json.Marshal(map[string]string{
					"action": "email_request",
					"prompt": "Please enter your email to stay connected",
				})
				if err := cfg.Room.PublishData(TopicEmailRequest, payload); err != nil {
					return "", err
				}
				return "Email request sent.", nil
			},
		},
		{
			Name:        "set_agent_state",
			Description: "Updates the agent state marker the frontend listens for.",
			Parameters: map[string]interface{}{
				"state": map[string]interface{}{
					"type":        "string",
					"description": "The new state to set",
				},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				state := stringArg(args, "state")
				if state == "" {
					return "Please specify a state.", nil
				}
				if cfg.Room == nil {
					return "I encountered an internal issue updating my state.", nil
				}
				if err := cfg.Room.SetMetadata(state); err != nil {
					logger.Error("state broadcast failed", "state", state, "error", err)
					return "I encountered an internal issue updating my state.", nil
				}
				return "Agent state updated.", nil
			},
		},
		{
			Name:        "web_search",
			Description: "Searches the web for current information: job markets, companies, salaries, news. The query should explain the current situation and what is being requested.",
			Parameters: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query with conversation context",
				},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				query := stringArg(args, "query")
				if cfg.Search == nil {
					return "I'm sorry, web search isn't available right now. Let's continue and I can look that up later.", nil
				}
				answer, err := cfg.Search.Search(ctx, query)
				if err != nil {
					logger.Error("web search failed", "error", err)
					return "I'm sorry, web search isn't available right now. Let's continue and I can look that up later.", nil
				}
				return answer, nil
			},
		},
		{
			Name:        "search_knowledge_base",
			Description: "Searches the coaching knowledge base for frameworks, interview techniques, and career advice.",
			Parameters: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look up",
				},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				query := stringArg(args, "query")
				if cfg.Knowledge == nil {
					return "I couldn't access my knowledge base just now, but I can still share general coaching guidance.", nil
				}
				knowledge, err := cfg.Knowledge.Search(ctx, query)
				if err != nil {
					logger.Error("knowledge base search failed", "error", err)
					return "I couldn't access my knowledge base just now, but I can still share general coaching guidance.", nil
				}
				return knowledge, nil
			},
		},
		{
			Name:        "request_resume",
			Description: "Shows the resume upload window to the user. Call when the user agrees to upload their resume.",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if cfg.Room == nil {
					return "", room.ErrNotConnected
				}
				payload, _ := json.Marshal(map[string]string{
					"action":  "request_resume",
					"message": "Please upload your resume to continue",
				})
				if err := cfg.Room.PublishData(TopicResumeRequest, payload); err != nil {
					return "", err
				}
				return "Resume request sent.", nil
			},
		},
		{
			Name:        "get_resume_information",
			Description: "Analyzes the user's previously uploaded resume and returns its key details. Call when the user asks about their resume or after an upload.",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if cfg.Resume == nil || cfg.Convo == nil {
					return "Resume analysis isn't available right now.", nil
				}
				analysis, err := cfg.Resume.Analyze(ctx, cfg.Convo.SessionID())
				if err != nil {
					if errors.Is(err, resume.ErrNoResume) {
						return "No resume found for this session. Please upload your resume first.", nil
					}
					logger.Error("resume analysis failed", "error", err)
					return "An unexpected error occurred while attempting to analyze your resume.", nil
				}
				return analysis, nil
			},
		},
	}
}
