package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/prepzo/go-prepzo/internal/log"
	"github.com/prepzo/go-prepzo/pkg/convo"
	"github.com/prepzo/go-prepzo/pkg/inference"
	"github.com/prepzo/go-prepzo/pkg/kb"
	"github.com/prepzo/go-prepzo/pkg/resume"
	"github.com/prepzo/go-prepzo/pkg/room"
	"github.com/prepzo/go-prepzo/pkg/tts"
	"github.com/prepzo/go-prepzo/pkg/websearch"
)

// maxToolRounds bounds structured tool-call loops within one turn.
const maxToolRounds = 4

// turnQueueSize bounds buffered user turns while one is processed.
const turnQueueSize = 8

// App is the main Prepzo application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Conversation persistence. Constructed first so everything else
	// can log into it.
	store        convo.SessionStore
	conversation *convo.Manager

	// Model and tool dependencies.
	llm       inference.Provider
	search    *websearch.Service
	knowledge *kb.Searcher
	resumeSvc *resume.Service

	// Session plumbing.
	registry    *Registry
	interceptor *Interceptor
	room        room.Room
	synth       tts.Synthesizer

	turns   chan string
	welcome sync.Once
}

// New creates a new Prepzo application with the given configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &App{
		config: cfg,
		logger: log.L().With("component", "agent.app"),
		turns:  make(chan string, turnQueueSize),
	}, nil
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init(ctx context.Context) error {
	a.initStore(ctx)

	a.conversation = convo.NewManager(a.config.RoomName, a.store,
		convo.WithManagerLogger(a.logger))

	if err := a.initLLM(); err != nil {
		return fmt.Errorf("inference init: %w", err)
	}

	a.initSearch()
	a.initKnowledge(ctx)
	a.initResume()

	if err := a.initSpeech(); err != nil {
		return fmt.Errorf("tts init: %w", err)
	}

	rm, err := room.NewClient(
		room.WithURL(a.config.RoomURL),
		room.WithToken(a.config.RoomToken),
		room.WithRoomName(a.config.RoomName),
		room.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("room init: %w", err)
	}
	a.room = rm

	a.registry = NewRegistry(a.conversation, a.logger)
	for _, tool := range Tools(ToolsConfig{
		Convo:     a.conversation,
		Store:     a.store,
		Room:      a.room,
		Search:    a.search,
		Knowledge: a.knowledge,
		Resume:    a.resumeSvc,
		Logger:    a.logger,
	}) {
		a.registry.Register(tool)
	}

	a.interceptor = NewInterceptor(a.registry, a.conversation, a, a.logger)

	return nil
}

// Run connects to the room and processes user turns.
// Blocks until the context is cancelled or a session-level error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := a.room.Connect(ctx); err != nil {
		return fmt.Errorf("room connect: %w", err)
	}

	a.room.OnParticipant(func(identity string) {
		a.conversation.InitializeSession(ctx, identity)
		a.welcome.Do(func() {
			if err := a.Say(ctx, WelcomeMessage); err != nil {
				a.logger.Error("welcome speech failed", "error", err)
			}
		})
	})

	a.room.OnTranscript(func(role, text string, final bool) {
		if role != "user" || !final || text == "" {
			return
		}
		select {
		case a.turns <- text:
		default:
			a.logger.Warn("turn queue full, dropping transcript", "text", text)
		}
	})

	a.room.OnError(func(err error) {
		a.logger.Error("room error", "error", err)
	})

	if err := a.room.SetMetadata(StateListening); err != nil {
		a.logger.Warn("state broadcast failed", "error", err)
	}

	a.logger.Info("session running", "room", a.config.RoomName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-a.turns:
			if err := a.runTurn(ctx, text); err != nil {
				// Session-level failures terminate the process so the
				// supervisor restarts it.
				a.logger.Error("turn failed", "error", err)
				return err
			}
		}
	}
}

// Shutdown gracefully shuts down all components, flushing the
// conversation store first.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.conversation != nil {
		if err := a.conversation.Flush(ctx); err != nil {
			a.logger.Warn("conversation flush failed", "error", err)
		}
		a.conversation.Close()
	}
	if a.room != nil {
		a.room.Close()
	}
	if a.synth != nil {
		a.synth.Close()
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// Resumes returns the resume service, or nil when document parsing
// is not configured. The HTTP upload endpoint shares this service so
// uploads land where the agent's tools can find them.
func (a *App) Resumes() *resume.Service {
	return a.resumeSvc
}

// Say synthesizes text and publishes the audio to the room.
func (a *App) Say(ctx context.Context, text string) error {
	if err := a.room.SetMetadata(StateSpeaking); err != nil {
		a.logger.Warn("state broadcast failed", "error", err)
	}
	defer func() {
		if err := a.room.SetMetadata(StateListening); err != nil {
			a.logger.Warn("state broadcast failed", "error", err)
		}
	}()

	result, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := a.room.PublishAudio(result.Audio); err != nil {
		return fmt.Errorf("publish audio: %w", err)
	}

	a.conversation.AddMessage(convo.NewMessage(convo.RoleAssistant, text))
	return nil
}

// runTurn processes one user utterance end to end: persist it,
// generate a response through the interceptor, invoke structured tool
// calls with results re-injected, and speak the final text.
func (a *App) runTurn(ctx context.Context, userText string) error {
	a.conversation.AddMessage(convo.NewMessage(convo.RoleUser, userText))

	if err := a.room.SetMetadata(StateThinking); err != nil {
		a.logger.Warn("state broadcast failed", "error", err)
	}

	messages := a.chatContext()

	for round := 0; round < maxToolRounds; round++ {
		stream, err := a.llm.Stream(ctx, &inference.ChatRequest{
			Messages: messages,
			Tools:    a.registry.Specs(),
		})
		if err != nil {
			return fmt.Errorf("model stream: %w", err)
		}

		result, err := a.interceptor.Run(ctx, stream, nil)
		stream.Close()
		if err != nil {
			return err
		}

		if result.Triggered {
			// The interceptor spoke the confirmation; the turn is done.
			return nil
		}

		if len(result.ToolCalls) > 0 {
			messages = append(messages, inference.Message{
				Role:      inference.RoleAssistant,
				Content:   result.Text,
				ToolCalls: result.ToolCalls,
			})
			for _, call := range result.ToolCalls {
				out := a.registry.Invoke(ctx, call)
				messages = append(messages, inference.NewToolMessage(call.ID, out))
			}
			continue
		}

		if result.Text != "" {
			if err := a.Say(ctx, result.Text); err != nil {
				a.logger.Error("speech failed", "error", err)
			}
		}
		return nil
	}

	a.logger.Warn("tool round limit reached", "limit", maxToolRounds)
	return nil
}

// chatContext rebuilds the model context from the conversation record.
// Tool results are carried as system notes so later turns keep their
// content without replaying the structured call protocol.
func (a *App) chatContext() []inference.Message {
	messages := []inference.Message{inference.NewSystemMessage(AgentInstructions)}

	for _, msg := range a.conversation.Messages() {
		switch msg.Role {
		case convo.RoleUser:
			messages = append(messages, inference.NewUserMessage(msg.Content))
		case convo.RoleAssistant:
			messages = append(messages, inference.NewAssistantMessage(msg.Content))
		case convo.RoleSystem:
			messages = append(messages, inference.NewSystemMessage(msg.Content))
		case convo.RoleToolResult:
			messages = append(messages, inference.NewSystemMessage("Tool result: "+msg.Content))
		}
	}
	return messages
}

// initStore constructs durable conversation storage. A storage failure
// never blocks a live conversation: it logs and falls back to memory.
func (a *App) initStore(ctx context.Context) {
	if a.config.DatabaseURL != "" {
		store, err := convo.NewPostgresStore(ctx, a.config.DatabaseURL)
		if err == nil {
			a.store = store
			a.logger.Info("conversation store: postgres")
			return
		}
		a.logger.Error("postgres unavailable, using in-memory store", "error", err)
	}
	a.store = convo.NewMemoryStore()
	a.logger.Info("conversation store: memory")
}

func (a *App) initSearch() {
	if a.config.PerplexityKey == "" {
		a.logger.Warn("web search disabled: no PERPLEXITY_API_KEY")
		return
	}
	search, err := websearch.NewPerplexityService(a.config.PerplexityKey,
		websearch.WithLogger(a.logger))
	if err != nil {
		a.logger.Error("web search init failed", "error", err)
		return
	}
	a.search = search
}

func (a *App) initKnowledge(ctx context.Context) {
	var index kb.Index

	switch {
	case a.config.PineconeHost != "" && a.config.PineconeKey != "":
		pc, err := kb.NewPineconeIndex(a.config.PineconeHost, a.config.PineconeKey)
		if err != nil {
			a.logger.Error("pinecone init failed", "error", err)
			return
		}
		index = pc
	case a.config.KBDataDir != "":
		local, err := kb.NewLocalIndex(a.config.KBDataDir, a.embeddingFunc())
		if err != nil {
			a.logger.Error("local index init failed", "error", err)
			return
		}
		index = local
	default:
		a.logger.Warn("knowledge base disabled: no index configured")
		return
	}

	searcher, err := kb.NewSearcher(index, a.llm, kb.WithSearcherLogger(a.logger))
	if err != nil {
		a.logger.Error("knowledge searcher init failed", "error", err)
		return
	}
	a.knowledge = searcher
}

// initLLM builds the model provider for the session. OpenAI is the
// primary; when a Gemini key is configured the two are chained so chat
// can fall back and document requests route to the provider that
// supports them.
func (a *App) initLLM() error {
	client, err := inference.NewClient(
		inference.WithAPIKey(a.config.OpenAIKey),
		inference.WithModel(a.config.ChatModel),
		inference.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	providers := []inference.Provider{client}
	if a.config.GeminiKey != "" {
		gemini, err := inference.NewGemini(
			inference.WithAPIKey(a.config.GeminiKey),
			inference.WithDocumentModel(DefaultDocumentModel),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			a.logger.Error("gemini init failed", "error", err)
		} else {
			providers = append(providers, gemini)
		}
	}

	if len(providers) == 1 {
		a.llm = client
		return nil
	}
	chain, err := inference.NewChainWithLogger(a.logger, providers...)
	if err != nil {
		return err
	}
	a.llm = chain
	return nil
}

func (a *App) initResume() {
	if !a.llm.Capabilities().Documents {
		a.logger.Warn("resume analysis disabled: no document-capable provider")
		return
	}
	svc, err := resume.NewService(a.config.ResumeDir, a.llm,
		resume.WithLogger(a.logger))
	if err != nil {
		a.logger.Error("resume service init failed", "error", err)
		return
	}
	a.resumeSvc = svc
}

func (a *App) initSpeech() error {
	opts := []tts.Option{
		tts.WithAPIKey(a.config.OpenAIKey),
		tts.WithLogger(a.logger),
	}
	if a.config.TTSVoice != "" {
		opts = append(opts, tts.WithVoice(a.config.TTSVoice))
	}
	synth, err := tts.NewOpenAI(opts...)
	if err != nil {
		return err
	}
	a.synth = synth
	return nil
}

// embeddingFunc adapts the inference provider to the local index's
// embedding contract.
func (a *App) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := a.llm.Embed(ctx, &inference.EmbedRequest{Input: []string{text}})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		vec := make([]float32, len(resp.Embeddings[0]))
		for i, v := range resp.Embeddings[0] {
			vec[i] = float32(v)
		}
		return vec, nil
	}
}
