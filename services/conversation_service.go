package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"backend/models"
	"backend/utils"

	"go.uber.org/zap"
)

// User-facing failure strings, matching the client's language.
const (
	chatFailureMessage  = "요청을 처리하는 중 오류가 발생했습니다."
	imageFailureMessage = "이미지 분석에 실패했습니다. 다시 시도해주세요."
)

// ChatResult is what one user action produced: the assistant reply that was
// recorded, the log entry it touched (if any), and whether a mutation was
// actually applied.
type ChatResult struct {
	Reply   *models.ChatMessage `json:"reply"`
	Log     *models.ProteinLog  `json:"log,omitempty"`
	Action  string              `json:"action,omitempty"`
	Applied bool                `json:"applied"`
}

// ConversationService sequences one user action end to end: record the user
// message, consult the inference gateway, apply at most one log mutation,
// record the assistant reply. One in-flight request per path (chat / image);
// concurrent submissions are rejected, not queued.
type ConversationService struct {
	gateway InferenceGateway
	logs    *LogService
	hub     *RealtimeHub
	log     *zap.SugaredLogger

	mu        sync.Mutex
	chatBusy  bool
	imageBusy bool
}

func NewConversationService(gateway InferenceGateway, logs *LogService, hub *RealtimeHub, logger *zap.SugaredLogger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ConversationService{gateway: gateway, logs: logs, hub: hub, log: logger}
}

func (s *ConversationService) acquire(flag *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (s *ConversationService) release(flag *bool) {
	s.mu.Lock()
	*flag = false
	s.mu.Unlock()
}

// HandleChat runs the text path. Gateway errors never escape: they degrade to
// a recorded assistant failure message.
func (s *ConversationService) HandleChat(ctx context.Context, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if !s.acquire(&s.chatBusy) {
		return nil, ErrBusy
	}
	defer s.release(&s.chatBusy)

	// User message is recorded before the request is issued.
	if _, err := s.logs.AddMessage(models.RoleUser, message, ""); err != nil {
		s.log.Warnf("failed to record user message: %v", err)
	}

	now := time.Now()
	history, err := s.logs.HistorySummary(now)
	if err != nil {
		s.log.Warnf("failed to build history summary: %v", err)
	}

	decision, err := s.gateway.ProcessChatMessage(ctx, message, history)
	if err != nil {
		s.log.Warnf("chat inference failed: %v", err)
		return s.failure(chatFailureMessage), nil
	}

	result := &ChatResult{Action: decision.Action}
	switch decision.Action {
	case ActionAdd:
		entry, err := s.logs.AddEntry(decision.FoodName, decision.ProteinAmount, now.UnixMilli(), "")
		if err != nil {
			s.log.Warnf("failed to add log entry: %v", err)
			return s.failure(chatFailureMessage), nil
		}
		result.Log = entry
		result.Applied = true
		// Entry exists before the confirmation that references it.
		result.Reply = s.reply(decision.ResponseMessage, entry.ID)

	case ActionUpdate:
		entry, err := s.logs.UpdateEntry(decision.TargetID, EntryPatch{
			FoodName:      &decision.FoodName,
			ProteinAmount: &decision.ProteinAmount,
		})
		if err == nil {
			result.Log = entry
			result.Applied = true
		} else {
			// Unresolvable target degrades to a no-op; the model's message
			// is still surfaced.
			s.log.Warnf("update target not applied: %v", err)
		}
		result.Reply = s.reply(decision.ResponseMessage, "")

	case ActionDelete:
		if decision.TargetID != "" {
			if _, err := s.logs.GetEntry(decision.TargetID); err == nil {
				if err := s.logs.DeleteEntry(decision.TargetID); err != nil {
					s.log.Warnf("failed to delete log entry: %v", err)
				} else {
					result.Applied = true
				}
			} else {
				s.log.Warnf("delete target not applied: %v", err)
			}
		}
		result.Reply = s.reply(decision.ResponseMessage, "")
	}

	if result.Applied && s.hub != nil {
		s.hub.BroadcastLogUpdated(strings.ToLower(decision.Action))
	}
	return result, nil
}

// HandleImage runs the photo path. A photo always creates a new entry, never
// an update or delete.
func (s *ConversationService) HandleImage(ctx context.Context, image []byte) (*ChatResult, error) {
	if len(image) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "missing image payload"}
	}
	if !s.acquire(&s.imageBusy) {
		return nil, ErrBusy
	}
	defer s.release(&s.imageBusy)

	analysis, err := s.gateway.AnalyzeFoodImage(ctx, image)
	if err != nil {
		s.log.Warnf("image inference failed: %v", err)
		return s.failure(imageFailureMessage), nil
	}

	entry, err := s.logs.AddEntry(analysis.FoodName, analysis.ProteinAmount, time.Now().UnixMilli(), utils.MealImageURL(image))
	if err != nil {
		s.log.Warnf("failed to add log entry: %v", err)
		return s.failure(imageFailureMessage), nil
	}

	// The reply carries no text, only the log card reference.
	reply := s.reply("", entry.ID)
	if s.hub != nil {
		s.hub.BroadcastLogUpdated("add")
	}
	return &ChatResult{Reply: reply, Log: entry, Action: ActionAdd, Applied: true}, nil
}

func (s *ConversationService) reply(text, logID string) *models.ChatMessage {
	msg, err := s.logs.AddMessage(models.RoleAssistant, text, logID)
	if err != nil {
		s.log.Warnf("failed to record assistant message: %v", err)
		// Keep the in-memory flow alive even if persistence failed.
		return &models.ChatMessage{Role: models.RoleAssistant, Text: text, LogID: logID, Timestamp: time.Now().UnixMilli()}
	}
	return msg
}

func (s *ConversationService) failure(text string) *ChatResult {
	return &ChatResult{Reply: s.reply(text, "")}
}
