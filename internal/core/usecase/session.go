package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/parse"
	"github.com/stitchworks/atelier/internal/core/ports"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

// SessionManager owns the interactive editing sessions. Each session
// wraps one item collection plus the review flags accumulated during
// extraction; a session has a single editor, so per-session state is
// guarded by the manager lock, and at most one generation call may be
// in flight per session at a time.
type SessionManager struct {
	registry  *domain.Registry
	generator ports.TextGenerator
	store     ports.RecordStore
	exporter  ports.SheetExporter
	policy    RetryPolicy

	mu       sync.Mutex
	sessions map[string]*editSession
}

type editSession struct {
	collection *domain.Collection
	flags      []domain.ReviewFlag
	inflight   *inflightExtraction
}

// inflightExtraction marks the session's one outstanding generation.
// The marker is cleared by the extraction that installed it, or by an
// explicit cancel; a finished extraction must never clear a marker a
// later extraction installed after a cancel/restart.
type inflightExtraction struct {
	cancel context.CancelFunc
}

// SessionView is the read model handed to the UI: the full ordered item
// sequence with computed yardage totals and outstanding flags.
type SessionView struct {
	ID           string              `json:"id"`
	Items        []domain.ParsedItem `json:"items"`
	ItemYardage  []float64           `json:"item_yardage"`
	TotalYardage float64             `json:"total_yardage"`
	ReviewFlags  []domain.ReviewFlag `json:"review_flags"`
}

func NewSessionManager(
	registry *domain.Registry,
	generator ports.TextGenerator,
	store ports.RecordStore,
	exporter ports.SheetExporter,
	policy RetryPolicy,
) *SessionManager {
	return &SessionManager{
		registry:  registry,
		generator: generator,
		store:     store,
		exporter:  exporter,
		policy:    policy.normalize(),
		sessions:  make(map[string]*editSession),
	}
}

// Create opens an empty session and returns its id.
func (m *SessionManager) Create() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.sessions[id] = &editSession{collection: domain.NewCollection(m.registry)}
	return id
}

// CreateFromResult opens a session seeded with a finished extraction
// result, carrying its review flags into the editing state.
func (m *SessionManager) CreateFromResult(result domain.ExtractionResult) (string, error) {
	if result.Kind != domain.KindItemExtraction {
		return "", domain.WrapError(domain.ErrInvalidRequest, "create session", fmt.Errorf("result kind %q has no item collection", result.Kind))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	collection := domain.NewCollection(m.registry)
	for _, item := range result.Items {
		collection.Add(item)
	}
	m.sessions[id] = &editSession{
		collection: collection,
		flags:      append([]domain.ReviewFlag(nil), result.ReviewFlags...),
	}
	return id, nil
}

// Close discards a session, cancelling any in-flight generation.
func (m *SessionManager) Close(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if session.inflight != nil {
		session.inflight.cancel()
	}
	delete(m.sessions, sessionID)
	return nil
}

// View returns the session's full editor state.
func (m *SessionManager) View(sessionID string) (SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	items := session.collection.Items()
	yardage := make([]float64, len(items))
	for i, item := range items {
		yardage[i] = item.TotalYardage()
	}
	flags := append([]domain.ReviewFlag(nil), session.flags...)
	if flags == nil {
		flags = []domain.ReviewFlag{}
	}
	return SessionView{
		ID:           sessionID,
		Items:        items,
		ItemYardage:  yardage,
		TotalYardage: session.collection.TotalYardage(),
		ReviewFlags:  flags,
	}, nil
}

// AddDefaultItem appends a synthesized generic item.
func (m *SessionManager) AddDefaultItem(sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return 0, err
	}
	return session.collection.AddDefault(), nil
}

// EditItem updates one field; a successful edit resolves any review
// flag attached to that exact field.
func (m *SessionManager) EditItem(sessionID string, index int, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if err := session.collection.Edit(index, field, value); err != nil {
		return err
	}
	session.dropFlagsAt(fmt.Sprintf("items[%d].%s", index, field))
	return nil
}

// EditMeasurement updates one measurement cell; a successful edit
// resolves the flag for that cell.
func (m *SessionManager) EditMeasurement(sessionID string, index int, size, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if err := session.collection.EditMeasurement(index, size, field, value); err != nil {
		return err
	}
	session.dropFlagsAt(fmt.Sprintf("items[%d].measurements.%s.%s", index, size, field))
	return nil
}

// ChangeCategory re-derives the measurement grid for the new category,
// preserving values for fields shared between the old and new schema.
// Flags about the old grid or the old category guess are resolved by
// the explicit change.
func (m *SessionManager) ChangeCategory(sessionID string, index int, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if err := session.collection.ChangeCategory(index, category); err != nil {
		return err
	}
	session.dropFlagsAt(fmt.Sprintf("items[%d].category", index))
	session.dropFlagsWithPrefix(fmt.Sprintf("items[%d].measurements.", index))
	return nil
}

// RemoveItem deletes one item and reindexes the flags of the items that
// shifted down.
func (m *SessionManager) RemoveItem(sessionID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if err := session.collection.Remove(index); err != nil {
		return err
	}
	session.flags = removeItemFlags(session.flags, index)
	return nil
}

// Extract runs a synchronous item extraction and merges the result into
// the session. Only one generation per session may be outstanding; a
// second call fails with ErrExtractionInFlight until the first finishes
// or is cancelled. On cancellation the collection is left unchanged.
func (m *SessionManager) Extract(ctx context.Context, sessionID, freeText string) ([]domain.ReviewFlag, error) {
	req, err := prompt.ItemExtraction(prompt.ItemExtractionParams{FreeText: freeText})
	if err != nil {
		return nil, err
	}

	genCtx, token, err := m.beginExtraction(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer m.endExtraction(sessionID, token)

	raw, err := generateWithRetry(genCtx, m.generator, req, m.policy, "session_id", sessionID)
	if err != nil {
		return nil, err
	}

	items, flags, err := parse.Items(m.registry, raw)
	if err != nil {
		return nil, err
	}
	if err := genCtx.Err(); err != nil {
		return nil, err
	}
	return m.mergeExtraction(sessionID, items, flags)
}

// CancelExtraction aborts the session's in-flight generation, if any.
// No partial result reaches the collection.
func (m *SessionManager) CancelExtraction(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if session.inflight != nil {
		session.inflight.cancel()
		session.inflight = nil
	}
	return nil
}

// Persist maps the session's items into storage shape and hands them to
// the record store. Blocking flags abort before anything is written.
func (m *SessionManager) Persist(ctx context.Context, sessionID, actorID string) ([]string, error) {
	m.mu.Lock()
	session, err := m.get(sessionID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	items := session.collection.Items()
	flags := append([]domain.ReviewFlag(nil), session.flags...)
	m.mu.Unlock()

	records, err := domain.BuildOrderItemRecords(items, flags, actorID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		id, err := m.store.CreateOrderItem(ctx, record)
		if err != nil {
			return ids, fmt.Errorf("persist order item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ExportSheet renders the session's items as a measurement workbook.
func (m *SessionManager) ExportSheet(sessionID string) ([]byte, error) {
	m.mu.Lock()
	session, err := m.get(sessionID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	items := session.collection.Items()
	m.mu.Unlock()

	data, err := m.exporter.Export(items)
	if err != nil {
		return nil, fmt.Errorf("export measurement sheet: %w", err)
	}
	return data, nil
}

// ActiveItems reports the total item count across open sessions, for
// the session gauge.
func (m *SessionManager) ActiveItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, session := range m.sessions {
		total += session.collection.Len()
	}
	return total
}

func (m *SessionManager) get(sessionID string) (*editSession, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", fmt.Errorf("id %s", sessionID))
	}
	return session, nil
}

func (m *SessionManager) beginExtraction(ctx context.Context, sessionID string) (context.Context, *inflightExtraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.inflight != nil {
		return nil, nil, domain.WrapError(domain.ErrExtractionInFlight, "start extraction", fmt.Errorf("session %s", sessionID))
	}

	genCtx, cancel := context.WithCancel(ctx)
	token := &inflightExtraction{cancel: cancel}
	session.inflight = token
	return genCtx, token, nil
}

func (m *SessionManager) endExtraction(sessionID string, token *inflightExtraction) {
	token.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok && session.inflight == token {
		session.inflight = nil
	}
}

func (m *SessionManager) mergeExtraction(sessionID string, items []domain.ParsedItem, flags []domain.ReviewFlag) ([]domain.ReviewFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	base := session.collection.Len()
	shifted := shiftItemFlags(flags, base)
	for _, item := range items {
		session.collection.Add(item)
	}
	session.flags = append(session.flags, shifted...)
	return shifted, nil
}

func (s *editSession) dropFlagsAt(path string) {
	kept := s.flags[:0]
	for _, flag := range s.flags {
		if flag.Path != path {
			kept = append(kept, flag)
		}
	}
	s.flags = kept
}

func (s *editSession) dropFlagsWithPrefix(prefix string) {
	kept := s.flags[:0]
	for _, flag := range s.flags {
		if !strings.HasPrefix(flag.Path, prefix) {
			kept = append(kept, flag)
		}
	}
	s.flags = kept
}

// itemFlagIndex parses the leading "items[N]" of a flag path.
func itemFlagIndex(path string) (int, string, bool) {
	if !strings.HasPrefix(path, "items[") {
		return 0, "", false
	}
	rest := path[len("items["):]
	closing := strings.IndexByte(rest, ']')
	if closing < 0 {
		return 0, "", false
	}
	index, err := strconv.Atoi(rest[:closing])
	if err != nil {
		return 0, "", false
	}
	return index, rest[closing+1:], true
}

func shiftItemFlags(flags []domain.ReviewFlag, offset int) []domain.ReviewFlag {
	if offset == 0 {
		return append([]domain.ReviewFlag(nil), flags...)
	}
	out := make([]domain.ReviewFlag, 0, len(flags))
	for _, flag := range flags {
		if index, rest, ok := itemFlagIndex(flag.Path); ok {
			flag.Path = fmt.Sprintf("items[%d]%s", index+offset, rest)
		}
		out = append(out, flag)
	}
	return out
}

func removeItemFlags(flags []domain.ReviewFlag, removed int) []domain.ReviewFlag {
	out := make([]domain.ReviewFlag, 0, len(flags))
	for _, flag := range flags {
		index, rest, ok := itemFlagIndex(flag.Path)
		if !ok {
			out = append(out, flag)
			continue
		}
		switch {
		case index == removed:
			// flags of the deleted item go with it
		case index > removed:
			flag.Path = fmt.Sprintf("items[%d]%s", index-1, rest)
			out = append(out, flag)
		default:
			out = append(out, flag)
		}
	}
	return out
}

// PersistResearch maps an explicitly edited research record plus the
// flags from its extraction into storage shape and stores it.
func (m *SessionManager) PersistResearch(ctx context.Context, record domain.FabricResearchRecord, flags []domain.ReviewFlag, actorID string) (string, error) {
	storage, err := domain.BuildResearchStorageRecord(record, flags, actorID)
	if err != nil {
		return "", err
	}
	id, err := m.store.CreateResearch(ctx, storage)
	if err != nil {
		return "", fmt.Errorf("persist research record: %w", err)
	}
	return id, nil
}

// DecodeResearchEdit decodes a client-edited research record, rejecting
// unknown fields so a stale editor cannot silently drop data.
func DecodeResearchEdit(raw []byte) (domain.FabricResearchRecord, error) {
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	var record domain.FabricResearchRecord
	if err := decoder.Decode(&record); err != nil {
		return domain.FabricResearchRecord{}, domain.WrapError(domain.ErrInvalidRequest, "decode research edit", err)
	}
	return record, nil
}
