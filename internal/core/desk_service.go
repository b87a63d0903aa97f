package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"go.uber.org/zap"
)

// ContractGateway is the part of the backend used for uploads and questions.
type ContractGateway interface {
	Upload(ctx context.Context, file *gateway.UploadFile) (*gateway.UploadResult, error)
	Ask(ctx context.Context, contractID, question string) (*gateway.Answer, error)
}

type Identity struct {
	ClientID  string `json:"client_id"`
	Onboarded bool   `json:"onboarded"`
}

type OnboardingForm struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Profession string `json:"profession"`
}

// DeskService covers everything around negotiation: identity, onboarding, uploads,
// questions and the question history.
type DeskService struct {
	contracts ContractGateway
	session   *session.Session
	activity  store.ActivityLog
	logger    *zap.Logger
	now       func() time.Time
}

func NewDeskService(contracts ContractGateway, sess *session.Session, activity store.ActivityLog, logger *zap.Logger) *DeskService {
	return &DeskService{
		contracts: contracts,
		session:   sess,
		activity:  activity,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Identity returns the client identity, minting one on first use.
func (s *DeskService) Identity() (Identity, error) {
	id, err := s.session.EnsureClientID()
	if err != nil {
		return Identity{}, err
	}
	return Identity{ClientID: id, Onboarded: s.session.Onboarded()}, nil
}

// Onboard records the onboarding form. Unlike the other activity records, this one
// is the action itself, so a failed write is returned and the flag stays unset.
func (s *DeskService) Onboard(ctx context.Context, form OnboardingForm) error {
	name := strings.TrimSpace(form.Name)
	profession := strings.TrimSpace(form.Profession)
	if name == "" || form.Age <= 0 || profession == "" {
		return &ValidationError{Message: "Please fill in all onboarding fields."}
	}
	clientID, err := s.session.EnsureClientID()
	if err != nil {
		return err
	}
	_, err = s.activity.RecordOnboarding(ctx, store.OnboardingRecord{
		ClientUserID: clientID,
		Name:         name,
		Age:          form.Age,
		Profession:   profession,
	})
	if err != nil {
		s.logger.Error("failed to record onboarding", zap.String("client_user_id", clientID), zap.Error(err))
		return &ActionError{Message: "Failed to save onboarding. Please try again.", Err: err}
	}
	return s.session.MarkOnboarded()
}

// Upload sends a contract to the backend and makes it the active contract.
func (s *DeskService) Upload(ctx context.Context, file *gateway.UploadFile) (*session.ContractMeta, error) {
	res, err := s.contracts.Upload(ctx, file)
	if err != nil {
		return nil, err
	}
	meta := session.ContractMeta{
		ContractID: res.ContractID,
		Filename:   res.Filename,
		PageCount:  res.PageCount,
		ChunkCount: res.ChunkCount,
		UploadedAt: s.now(),
	}
	if err := s.session.SetActiveContract(meta); err != nil {
		return nil, fmt.Errorf("failed to store active contract: %w", err)
	}

	if clientID, err := s.session.EnsureClientID(); err == nil {
		_, err := s.activity.RecordDocumentSummary(ctx, store.DocumentRecord{
			ClientUserID: clientID,
			ContractID:   meta.ContractID,
			Title:        meta.Filename,
			Pages:        meta.PageCount,
			Chunks:       meta.ChunkCount,
		})
		if err != nil {
			s.logger.Warn("failed to record document summary", zap.String("contract_id", meta.ContractID), zap.Error(err))
		}
	}
	return &meta, nil
}

func (s *DeskService) ActiveContract() (*session.ContractMeta, bool) {
	return s.session.ActiveContract()
}

// Ask puts a question to the active contract. The answer is recorded in the activity
// log when possible; otherwise a local entry is returned in its place.
func (s *DeskService) Ask(ctx context.Context, question string) (*store.QAEntry, error) {
	contractID := ""
	if meta, ok := s.session.ActiveContract(); ok {
		contractID = meta.ContractID
	}
	answer, err := s.contracts.Ask(ctx, contractID, question)
	if err != nil {
		return nil, err
	}

	entry := store.QAEntry{
		ContractID: contractID,
		Question:   strings.TrimSpace(question),
		Answer:     answer.Answer,
	}
	clientID, err := s.session.EnsureClientID()
	if err == nil {
		entry.ClientUserID = clientID
		saved, err := s.activity.RecordQA(ctx, entry)
		if err == nil {
			return saved, nil
		}
		s.logger.Warn("failed to record question", zap.String("contract_id", contractID), zap.Error(err))
	}
	now := s.now()
	entry.ID = fmt.Sprintf("local-%d", now.UnixMilli())
	entry.CreatedAt = now
	return &entry, nil
}

// History lists the client's questions and answers, newest first.
func (s *DeskService) History(ctx context.Context) ([]store.QAEntry, error) {
	clientID, ok := s.session.ClientID()
	if !ok {
		return nil, ErrNoIdentity
	}
	return s.activity.ListQA(ctx, clientID)
}

func (s *DeskService) Logout() error {
	if err := s.session.Logout(); err != nil {
		return err
	}
	s.logger.Info("session cleared")
	return nil
}
