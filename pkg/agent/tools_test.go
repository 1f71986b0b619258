package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prepzo/go-prepzo/pkg/convo"
	"github.com/prepzo/go-prepzo/pkg/inference"
	"github.com/prepzo/go-prepzo/pkg/kb"
	"github.com/prepzo/go-prepzo/pkg/resume"
	"github.com/prepzo/go-prepzo/pkg/room"
)

// scriptedIndex satisfies kb.Index with fixed responses.
type scriptedIndex struct {
	namespaces []string
	matches    []kb.Match
	searchErr  error
}

func (s *scriptedIndex) Namespaces(ctx context.Context) ([]string, error) {
	return s.namespaces, nil
}

func (s *scriptedIndex) Search(ctx context.Context, q kb.Query) ([]kb.Match, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.matches, nil
}

func (s *scriptedIndex) Close() error { return nil }

type toolsFixture struct {
	manager  *convo.Manager
	store    convo.SessionStore
	room     *room.Mock
	registry *Registry
}

func newToolsFixture(t *testing.T, cfg ToolsConfig) *toolsFixture {
	t.Helper()

	store := convo.NewMemoryStore()
	manager := convo.NewManager("room-1", store)
	t.Cleanup(func() { manager.Close() })

	mock := room.NewMock("room-1")
	if err := mock.Connect(context.Background()); err != nil {
		t.Fatalf("mock connect: %v", err)
	}

	cfg.Convo = manager
	cfg.Store = store
	cfg.Room = mock

	registry := NewRegistry(manager, nil)
	for _, tool := range Tools(cfg) {
		registry.Register(tool)
	}

	return &toolsFixture{manager: manager, store: store, room: mock, registry: registry}
}

func (f *toolsFixture) invoke(t *testing.T, name, args string) string {
	t.Helper()
	return f.registry.Invoke(context.Background(), inference.ToolCall{
		ID: "call-1", Name: name, Arguments: args,
	})
}

func TestRegistrySpecs(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	specs := f.registry.Specs()
	if len(specs) != 7 {
		t.Fatalf("Expected 7 tools, got %d", len(specs))
	}

	names := make(map[string]bool)
	for _, spec := range specs {
		names[spec.Function.Name] = true
		if spec.Type != "function" {
			t.Errorf("Expected function type, got %q", spec.Type)
		}
	}
	for _, want := range []string{
		"get_user_email", "request_email", "set_agent_state", "web_search",
		"search_knowledge_base", "request_resume", "get_resume_information",
	} {
		if !names[want] {
			t.Errorf("Missing tool %q", want)
		}
	}
}

func TestGetUserEmailFromConversation(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	f.manager.AddMessage(convo.NewMessage(convo.RoleUser, "my email is jane@example.com"))

	result := f.invoke(t, "get_user_email", "")
	if result != "jane@example.com" {
		t.Errorf("Expected jane@example.com, got %q", result)
	}
}

func TestGetUserEmailFromStore(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	if err := f.store.SaveEmail(context.Background(), "room-1", "user-1", "saved@example.com"); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}

	result := f.invoke(t, "get_user_email", "")
	if result != "saved@example.com" {
		t.Errorf("Expected saved@example.com, got %q", result)
	}
}

func TestGetUserEmailNotFound(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	if result := f.invoke(t, "get_user_email", ""); result != "email not found" {
		t.Errorf("Expected 'email not found', got %q", result)
	}
}

func TestRequestEmailPublishesDataMessage(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	result := f.invoke(t, "request_email", "")
	if result != "Email request sent." {
		t.Errorf("Unexpected result: %q", result)
	}

	data := f.room.Data()
	if len(data) != 1 || data[0].Topic != TopicEmailRequest {
		t.Fatalf("Expected one email_request message, got %+v", data)
	}

	var payload map[string]string
	if err := json.Unmarshal(data[0].Payload, &payload); err != nil {
		t.Fatalf("Payload not JSON: %v", err)
	}
	if payload["action"] != "email_request" {
		t.Errorf("Unexpected payload: %v", payload)
	}
}

func TestRequestResumePublishesDataMessage(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	result := f.invoke(t, "request_resume", "")
	if result != "Resume request sent." {
		t.Errorf("Unexpected result: %q", result)
	}

	data := f.room.Data()
	if len(data) != 1 || data[0].Topic != TopicResumeRequest {
		t.Fatalf("Expected one resume_request message, got %+v", data)
	}
}

func TestSetAgentState(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	result := f.invoke(t, "set_agent_state", `{"state":"email_requested"}`)
	if result != "Agent state updated." {
		t.Errorf("Unexpected result: %q", result)
	}

	states := f.room.States()
	if len(states) != 1 || states[0] != "email_requested" {
		t.Errorf("Unexpected states: %v", states)
	}
}

func TestWebSearchUnavailable(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	result := f.invoke(t, "web_search", `{"query":"latest tech jobs"}`)
	if !strings.Contains(result, "web search isn't available") {
		t.Errorf("Expected degraded response, got %q", result)
	}
}

func TestKnowledgeBaseErrorContainment(t *testing.T) {
	searcher, err := kb.NewSearcher(
		&scriptedIndex{searchErr: errors.New("index down")},
		inference.NewMock(),
	)
	if err != nil {
		t.Fatalf("NewSearcher failed: %v", err)
	}

	f := newToolsFixture(t, ToolsConfig{Knowledge: searcher})

	result := f.invoke(t, "search_knowledge_base", `{"query":"STAR method"}`)
	if !strings.Contains(result, "couldn't access my knowledge base") {
		t.Errorf("Expected apology string, got %q", result)
	}

	// The apology is still recorded as a tool_result.
	msgs := f.manager.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected tool_call and tool_result, got %d messages", len(msgs))
	}
	if msgs[1].Role != convo.RoleToolResult || msgs[1].Content != result {
		t.Errorf("tool_result not recorded: %+v", msgs[1])
	}
}

func TestKnowledgeBaseReturnsSnippets(t *testing.T) {
	searcher, err := kb.NewSearcher(
		&scriptedIndex{
			namespaces: []string{"books"},
			matches: []kb.Match{
				{ID: "1", Text: "The STAR method structures answers as Situation, Task, Action, Result.", Score: 0.9},
			},
		},
		inference.NewMock(),
	)
	if err != nil {
		t.Fatalf("NewSearcher failed: %v", err)
	}

	f := newToolsFixture(t, ToolsConfig{Knowledge: searcher})

	result := f.invoke(t, "search_knowledge_base", `{"query":"STAR method"}`)
	if !strings.Contains(result, "Situation, Task, Action, Result") {
		t.Errorf("Expected snippet content, got %q", result)
	}
}

func TestGetResumeInformationNoResume(t *testing.T) {
	svc, err := resume.NewService(t.TempDir(), inference.NewMock())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	f := newToolsFixture(t, ToolsConfig{Resume: svc})

	result := f.invoke(t, "get_resume_information", "")
	if !strings.Contains(result, "No resume found") {
		t.Errorf("Expected no-resume response, got %q", result)
	}
}

func TestRegistryInvokeRecordsCallAndResult(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})
	f.registry.Register(Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return stringArg(args, "text"), nil
		},
	})

	result := f.invoke(t, "echo", `{"text":"hello"}`)
	if result != "hello" {
		t.Errorf("Expected hello, got %q", result)
	}

	msgs := f.manager.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != convo.RoleToolCall || !strings.Contains(msgs[0].Content, "echo") {
		t.Errorf("Unexpected tool_call record: %+v", msgs[0])
	}
	if msgs[1].Role != convo.RoleToolResult || msgs[1].Content != "hello" {
		t.Errorf("Unexpected tool_result record: %+v", msgs[1])
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})

	result := f.invoke(t, "no_such_tool", "")
	if result != toolFailureResponse {
		t.Errorf("Expected apology string, got %q", result)
	}

	msgs := f.manager.Messages()
	if len(msgs) != 2 || msgs[1].Role != convo.RoleToolResult {
		t.Errorf("Failure should still record a tool_result: %+v", msgs)
	}
}

func TestRegistryInvokeHandlerError(t *testing.T) {
	f := newToolsFixture(t, ToolsConfig{})
	f.registry.Register(Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("boom")
		},
	})

	result := f.invoke(t, "broken", "")
	if result != toolFailureResponse {
		t.Errorf("Expected apology string, got %q", result)
	}
}
