package llm

import (
	"context"
	"fmt"
	"sync"
)

// Generator answers questions about a diagnosis. History is keyed by scan
// id and mutated only under that scan's lock, so concurrent questions on
// the same scan cannot interleave their read-then-append and questions on
// different scans never share context. Both maps live in process memory
// for the process lifetime: history does not survive a restart, and
// entries are only reclaimed when the process exits. The durable record
// of every exchange is the scan's explanation column.
type Generator struct {
	client *Client

	mu      sync.Mutex
	locks   map[int]*sync.Mutex
	history map[int][]Turn
}

// NewGenerator creates a Generator backed by the given client.
func NewGenerator(client *Client) *Generator {
	return &Generator{
		client:  client,
		locks:   make(map[int]*sync.Mutex),
		history: make(map[int][]Turn),
	}
}

func (g *Generator) scanLock(scanId int) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[scanId]
	if !ok {
		l = &sync.Mutex{}
		g.locks[scanId] = l
	}
	return l
}

// History returns a copy of the scan's conversation history.
func (g *Generator) History(scanId int) []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Turn{}, g.history[scanId]...)
}

func (g *Generator) appendTurns(scanId int, turns ...Turn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history[scanId] = append(g.history[scanId], turns...)
}

// Answer asks the text-generation service one question about the scan's
// diagnosis. On success exactly two turns are recorded: the user turn and
// the model turn. On failure the history is left untouched and the
// ErrService is returned for the caller to render inline.
func (g *Generator) Answer(ctx context.Context, scanId int, diagnosis, question string, clinical bool) (string, error) {
	lock := g.scanLock(scanId)
	lock.Lock()
	defer lock.Unlock()

	history := g.History(scanId)
	prompt := renderPrompt(diagnosis, question, history, clinical)

	text, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	g.appendTurns(scanId,
		Turn{Role: "user", Content: fmt.Sprintf("Diagnosis: %s. Question: %s", diagnosis, question)},
		Turn{Role: "assistant", Content: text},
	)
	return text, nil
}
