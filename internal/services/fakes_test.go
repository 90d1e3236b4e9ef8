package services

import (
	"context"
	"errors"
	"sync"

	"finpilot/internal/core"
)

type fakeAI struct {
	mu       sync.Mutex
	holdings []core.Asset
	err      error
	answer   string
	system   string
	history  []core.ChatMessage
	texts    []string
}

func (f *fakeAI) StreamChat(_ context.Context, system string, history []core.ChatMessage, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system = system
	f.history = append([]core.ChatMessage(nil), history...)
	if f.err != nil {
		return "", f.err
	}
	if onDelta != nil {
		if err := onDelta(f.answer); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

func (f *fakeAI) ExtractHoldings(_ context.Context, text string) ([]core.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.Asset, len(f.holdings))
	copy(out, f.holdings)
	return out, nil
}

type fakePublisher struct {
	calls []string
	err   error
}

func (p *fakePublisher) PublishStatement(_ context.Context, statementID, _ string) error {
	p.calls = append(p.calls, statementID)
	return p.err
}

type fakeContexts struct {
	json string
	err  error
}

func (f fakeContexts) BuildJSON(context.Context, string) (string, error) {
	return f.json, f.err
}

var errBoom = errors.New("boom")
