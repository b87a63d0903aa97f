package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	KeyClientID       = "client_user_id"
	KeyOnboarded      = "onboarded"
	KeyActiveContract = "active_contract"
	editsKeyPrefix    = "edits:"
)

// EditsKey is the key of the clause override map of one contract.
func EditsKey(contractID string) string {
	return editsKeyPrefix + contractID
}

// ContractMeta describes the active contract. A new upload replaces it wholesale.
type ContractMeta struct {
	ContractID string    `json:"contract_id"`
	Filename   string    `json:"filename"`
	PageCount  int       `json:"pages"`
	ChunkCount int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ClauseOverride is the accepted replacement text of one clause.
type ClauseOverride struct {
	ClauseIndex     int       `json:"clause_index"`
	FinalText       string    `json:"final_text"`
	GuidanceSummary string    `json:"guidance_summary"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// Overrides maps clause index to its override within a single contract.
type Overrides map[int]ClauseOverride

// Clone returns a copy that can be mutated without touching the receiver.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Session gives typed access to the keys a desk keeps in its Store.
// Reads are permissive: a value that does not decode is logged and treated as absent.
type Session struct {
	store  Store
	logger *zap.Logger
	newID  func() string
}

func New(store Store, logger *zap.Logger) *Session {
	return &Session{store: store, logger: logger, newID: uuid.NewString}
}

func (s *Session) ClientID() (string, bool) {
	id, ok := s.store.Get(KeyClientID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EnsureClientID returns the stored client identity, minting and persisting one on first use.
func (s *Session) EnsureClientID() (string, error) {
	if id, ok := s.ClientID(); ok {
		return id, nil
	}
	id := s.newID()
	if err := s.store.Set(KeyClientID, id); err != nil {
		return "", fmt.Errorf("failed to persist client id: %w", err)
	}
	return id, nil
}

func (s *Session) Onboarded() bool {
	v, ok := s.store.Get(KeyOnboarded)
	if !ok {
		return false
	}
	onboarded, err := strconv.ParseBool(v)
	if err != nil {
		s.logger.Warn("ignoring malformed onboarding flag", zap.String("value", v))
		return false
	}
	return onboarded
}

func (s *Session) MarkOnboarded() error {
	return s.store.Set(KeyOnboarded, "true")
}

func (s *Session) ActiveContract() (*ContractMeta, bool) {
	raw, ok := s.store.Get(KeyActiveContract)
	if !ok || raw == "" {
		return nil, false
	}
	var meta ContractMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.logger.Warn("ignoring malformed active contract", zap.Error(err))
		return nil, false
	}
	if meta.ContractID == "" {
		return nil, false
	}
	return &meta, true
}

func (s *Session) SetActiveContract(meta ContractMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode active contract: %w", err)
	}
	return s.store.Set(KeyActiveContract, string(raw))
}

// Overrides returns the override map of a contract. It is never nil.
func (s *Session) Overrides(contractID string) Overrides {
	out := make(Overrides)
	raw, ok := s.store.Get(EditsKey(contractID))
	if !ok || raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("ignoring malformed clause overrides",
			zap.String("contract_id", contractID), zap.Error(err))
		return make(Overrides)
	}
	return out
}

func (s *Session) SaveOverrides(contractID string, overrides Overrides) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to encode clause overrides: %w", err)
	}
	return s.store.Set(EditsKey(contractID), string(raw))
}

// PutOverride creates or replaces the override of one clause. Concurrent writers
// of the same contract are last-write-wins on the whole map.
func (s *Session) PutOverride(contractID string, override ClauseOverride) error {
	overrides := s.Overrides(contractID)
	overrides[override.ClauseIndex] = override
	return s.SaveOverrides(contractID, overrides)
}

func (s *Session) DeleteOverride(contractID string, clauseIndex int) error {
	overrides := s.Overrides(contractID)
	if _, ok := overrides[clauseIndex]; !ok {
		return nil
	}
	delete(overrides, clauseIndex)
	return s.SaveOverrides(contractID, overrides)
}

// Logout forgets the identity, the onboarding flag, the active contract and the
// override map of the active contract.
func (s *Session) Logout() error {
	keys := []string{KeyOnboarded, KeyClientID}
	if meta, ok := s.ActiveContract(); ok {
		keys = append(keys, EditsKey(meta.ContractID))
	}
	keys = append(keys, KeyActiveContract)
	for _, key := range keys {
		if err := s.store.Remove(key); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return nil
}
