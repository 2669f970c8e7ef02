package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/quarryhq/quarry/pkg/boundary"
	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/llmclient"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/research"
	"github.com/quarryhq/quarry/pkg/retrieval"
	"github.com/quarryhq/quarry/pkg/scheduler"
	"github.com/quarryhq/quarry/pkg/store"
)

// researchDeps holds the collaborators every chat request's research.Deps
// is built from. A single LLM client backs all three of Deps' named slots
// (see main's buildLLMClient comment); TopK/MaxConcurrency/context sizing
// are fixed process-wide defaults rather than per-search-space settings.
type researchDeps struct {
	client         llmclient.Client
	reranker       retrieval.Reranker
	packer         *hashing.Packer
	contextWindow  int
	reservedOutput int
	topK           int
	maxConcurrency int
}

// handlers holds every collaborator the HTTP surface needs, built once in
// main and passed in rather than reached for through globals.
type handlers struct {
	store     *store.Store
	registry  *connector.Registry
	scheduler *scheduler.Scheduler
	manager   *events.ConnectionManager
	publisher *events.EventPublisher
	research  researchDeps
}

// connectorLastIndexed adapts *store.Store to boundary.ConnectorLastIndexed,
// the narrow slice pkg/boundary's trigger handler needs to report back the
// date window a run resolved to.
type connectorLastIndexed struct {
	store *store.Store
}

func (c connectorLastIndexed) LastIndexedAt(ctx context.Context, connectorID int64) (*time.Time, error) {
	conn, err := c.store.GetConnector(ctx, connectorID)
	if err != nil {
		return nil, err
	}
	return conn.LastIndexedAt, nil
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := h.store.Health(ctx)
	status := http.StatusOK
	body := map[string]any{"status": "healthy"}
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}
	body["database"] = dbHealth
	body["active_connections"] = h.manager.ActiveConnections()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *handlers) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req boundary.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	resp, err := boundary.HandleTrigger(r.Context(), &req, h.scheduler, connectorLastIndexed{h.store})
	if err != nil {
		var verr *boundary.ValidationError
		if errors.As(err, &verr) {
			writeJSONError(w, http.StatusBadRequest, verr)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	var req boundary.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		var verr *boundary.ValidationError
		if errors.As(err, &verr) {
			writeJSONError(w, http.StatusBadRequest, verr)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	searchSpaceID := int64(req.Data.SearchSpaceID)

	targets, err := h.resolveTargets(ctx, searchSpaceID, req.Data.SelectedConnectors)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	threadID, err := h.store.CreateChatThread(ctx, searchSpaceID, "api")
	if err != nil {
		http.Error(w, "failed to start chat thread", http.StatusInternalServerError)
		return
	}
	threadKey := fmt.Sprintf("%d", threadID)

	if _, err := h.store.AppendChatMessage(ctx, models.ChatMessage{
		ThreadID: threadID,
		Role:     models.ChatRoleUser,
		Content:  req.UserQuery(),
	}); err != nil {
		slog.Warn("failed to persist user chat message", "thread_id", threadID, "error", err)
	}
	if err := h.publisher.PublishChatUserMessage(ctx, threadKey, events.ChatUserMessagePayload{
		Type: "chat.user_message", ThreadID: threadKey, Content: req.UserQuery(), Timestamp: timestamp(),
	}); err != nil {
		slog.Warn("failed to publish chat user message", "thread_id", threadID, "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	seq := 0
	emit := func(ev research.Event) {
		seq++
		frame, err := boundary.EncodeEvent(seq, ev)
		if err != nil {
			slog.Warn("failed to encode research event", "error", err)
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		h.publishResearchEvent(ctx, threadKey, ev)
	}

	deps := &research.Deps{
		FastLLM:        h.research.client,
		StrategicLLM:   h.research.client,
		LongContextLLM: h.research.client,
		Reranker:       h.research.reranker,
		Packer:         h.research.packer,
		ContextWindow:  h.research.contextWindow,
		ReservedOutput: h.research.reservedOutput,
		TopK:           h.research.topK,
		MaxConcurrency: h.research.maxConcurrency,
		Emit:           emit,
	}

	state, err := research.Run(ctx, req.ToResearchRequest(targets, nil), deps)
	if err != nil {
		emit(research.ErrorEvent{Message: err.Error(), Fatal: true})
		return
	}

	if _, err := h.store.AppendChatMessage(ctx, models.ChatMessage{
		ThreadID: threadID,
		Role:     models.ChatRoleAssistant,
		Content:  state.FinalAnswer,
	}); err != nil {
		slog.Warn("failed to persist assistant chat message", "thread_id", threadID, "error", err)
	}
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	h.manager.HandleConnection(r.Context(), conn)
}

// resolveTargets looks selected (connector names, empty meaning "every
// connector in the space") up against the search space's configured
// connectors, keeping only the ones whose adapter implements
// connector.Searcher — the rest are ingested by pkg/indexer but have no
// retrieval-time search path yet (see DESIGN.md).
func (h *handlers) resolveTargets(ctx context.Context, searchSpaceID int64, selected []string) ([]retrieval.Target, error) {
	connectors, err := h.store.ListConnectorsBySearchSpace(ctx, searchSpaceID)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}

	wanted := make(map[string]bool, len(selected))
	for _, name := range selected {
		wanted[name] = true
	}

	var targets []retrieval.Target
	for _, c := range connectors {
		if len(wanted) > 0 && !wanted[c.Name] {
			continue
		}
		adapter, err := h.registry.Build(c.Type, c.Config)
		if err != nil {
			slog.Warn("skipping connector with unbuildable adapter", "connector_id", c.ID, "error", err)
			continue
		}
		searcher, ok := adapter.(connector.Searcher)
		if !ok {
			continue
		}
		targets = append(targets, retrieval.Target{
			ConnectorID:   c.ID,
			ConnectorName: c.Name,
			Type:          c.Type,
			Searcher:      searcher,
		})
	}
	return targets, nil
}

// publishResearchEvent mirrors the frame just streamed to the HTTP caller
// into a Postgres NOTIFY on the thread's channel, so a WebSocket client
// watching the same chat (e.g. a second browser tab) sees it live too.
func (h *handlers) publishResearchEvent(ctx context.Context, threadKey string, ev research.Event) {
	ts := timestamp()
	var err error
	switch e := ev.(type) {
	case research.TerminalInfoEvent:
		err = h.publisher.PublishResearchTerminalInfo(ctx, threadKey, events.ResearchTerminalInfoPayload{
			Type: "research.terminal_info", ThreadID: threadKey, Message: e.Message, Timestamp: ts,
		})
	case research.SourcesEvent:
		err = h.publisher.PublishResearchSources(ctx, threadKey, events.ResearchSourcesPayload{
			Type: "research.sources", ThreadID: threadKey, Groups: researchSourceGroups(e.Groups), Timestamp: ts,
		})
	case research.TextChunkEvent:
		err = h.publisher.PublishResearchTextChunk(ctx, threadKey, events.ResearchTextChunkPayload{
			Type: "research.text_chunk", ThreadID: threadKey, Delta: e.Delta, Timestamp: ts,
		})
	case research.FollowUpsEvent:
		err = h.publisher.PublishResearchFollowUps(ctx, threadKey, events.ResearchFollowUpsPayload{
			Type: "research.follow_ups", ThreadID: threadKey, FollowUps: researchFollowUps(e.FollowUps), Timestamp: ts,
		})
	case research.ErrorEvent:
		err = h.publisher.PublishResearchError(ctx, threadKey, events.ResearchErrorPayload{
			Type: "research.error", ThreadID: threadKey, Message: e.Message, Fatal: e.Fatal, Timestamp: ts,
		})
	}
	if err != nil {
		slog.Warn("failed to publish research event", "thread", threadKey, "error", err)
	}
}

func researchSourceGroups(groups []retrieval.Group) []events.ResearchSourceGroup {
	out := make([]events.ResearchSourceGroup, len(groups))
	for i, g := range groups {
		sources := make([]events.ResearchSource, len(g.SourceIDs))
		for j, id := range g.SourceIDs {
			sources[j] = events.ResearchSource{ID: id}
		}
		out[i] = events.ResearchSourceGroup{
			ID:      g.Key.GroupID,
			Name:    g.ConnectorName,
			Type:    string(g.Key.Type),
			Sources: sources,
		}
	}
	return out
}

func researchFollowUps(followUps []research.FollowUp) []events.ResearchFollowUp {
	out := make([]events.ResearchFollowUp, len(followUps))
	for i, f := range followUps {
		out[i] = events.ResearchFollowUp{ID: f.ID, Question: f.Question}
	}
	return out
}

func writeJSONError(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
