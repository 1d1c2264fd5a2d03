package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modfin/bellman"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/services/anthropic"
	"github.com/modfin/bellman/services/openai"
	"github.com/modfin/bellman/services/vertexai"
)

type APICredentials struct {
	BellmanURL     string `cli:"bellman-url"`
	BellmanKeyName string `cli:"bellman-key-name"`
	BellmanKey     string `cli:"bellman-key"`

	VertexAICredential string `cli:"vertexai-credential"`
	VertexAIProject    string `cli:"vertexai-project"`
	VertexAIRegion     string `cli:"vertexai-region"`

	OpenAIKey    string `cli:"openai-key"`
	AnthropicKey string `cli:"anthropic-key"`
}

// New registers a generator for every provider that has credentials.
func New(credentials APICredentials, logger *slog.Logger) (*Proxy, error) {
	proxy := newProxy()

	if credentials.AnthropicKey != "" {
		client := anthropic.New(credentials.AnthropicKey)
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())
	}

	if credentials.OpenAIKey != "" {
		client := openai.New(credentials.OpenAIKey)
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())
	}

	if credentials.VertexAIRegion != "" && credentials.VertexAIProject != "" {
		client, err := vertexai.New(vertexai.GoogleConfig{
			Project:    credentials.VertexAIProject,
			Region:     credentials.VertexAIRegion,
			Credential: credentials.VertexAICredential,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vertexai client: %w", err)
		}
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())
	}

	if credentials.BellmanKey != "" && credentials.BellmanURL != "" {
		client := bellman.New(credentials.BellmanURL, bellman.Key{
			Name:  credentials.BellmanKeyName,
			Token: credentials.BellmanKey,
		})
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())
	}

	return proxy, nil
}

var ErrNoModelProvided = errors.New("no model was provided")
var ErrClientNotFound = errors.New("client not found")

type Proxy struct {
	gens map[string]gen.Gen
}

func newProxy() *Proxy {
	return &Proxy{
		gens: map[string]gen.Gen{},
	}
}

func (p *Proxy) RegisterGen(llm gen.Gen) {
	p.gens[llm.Provider()] = llm
}

// Providers lists the registered provider names, sorted.
func (p *Proxy) Providers() []string {
	var names []string
	for name := range p.gens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseModel splits "Provider/name" into a gen.Model. Names routed through a
// bellman server keep their own "provider/name" suffix.
func ParseModel(s string) (gen.Model, error) {
	provider, name, found := strings.Cut(s, "/")
	if !found || provider == "" || name == "" {
		return gen.Model{}, fmt.Errorf("invalid model '%s', expected provider/name, %w", s, ErrNoModelProvided)
	}
	return gen.Model{Provider: provider, Name: name}, nil
}

func (p *Proxy) Gen(mod gen.Model) (*gen.Generator, error) {
	client, ok := p.gens[mod.Provider]
	if !ok {
		return nil, fmt.Errorf("no client registerd for provider '%s' (have: %s), %w", mod.Provider, strings.Join(p.Providers(), ", "), ErrClientNotFound)
	}

	if client == nil {
		return nil, ErrClientNotFound
	}

	if mod.Provider == bellman.Provider {
		provider, name, found := strings.Cut(mod.Name, "/")

		if !found {
			return nil, fmt.Errorf("invalid bellman model name '%s', %w", mod.Name, ErrNoModelProvided)
		}
		mod.Provider = provider
		mod.Name = name
	}

	if mod.Name == "" {
		return nil, fmt.Errorf("mod.Name is not set, %w", ErrNoModelProvided)
	}

	return client.Generator(gen.WithModel(mod)), nil
}
