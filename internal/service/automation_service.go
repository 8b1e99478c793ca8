package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"codexcity/internal/classifier"
	"codexcity/internal/lock"
	"codexcity/internal/logger"
	"codexcity/internal/metrics"
	"codexcity/internal/model"
	"codexcity/internal/personalize"
	"codexcity/internal/repository"
)

const (
	EventEmailProcessed      = "email_processed"
	EventAutomationCompleted = "automation_completed"

	defaultSubject = "No Subject"
	defaultSender  = "Unknown Sender"
	defaultName    = "Customer"
	defaultLockTTL = 5 * time.Minute
)

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	errNoRecipient = errors.New("no reply address")
)

type AutomationConfig struct {
	MaxPollResults int64
	LockTTL        time.Duration
	Now            func() time.Time
}

type automationService struct {
	userRepo     repository.UserRepository
	templateRepo repository.TemplateRepository
	logRepo      repository.EmailLogRepository
	tokens       TokenService
	gateway      GmailGateway
	locker       RunLocker
	events       EventPublisher
	logger       *logger.Logger
	cfg          AutomationConfig
}

func NewAutomationService(
	cfg AutomationConfig,
	userRepo repository.UserRepository,
	templateRepo repository.TemplateRepository,
	logRepo repository.EmailLogRepository,
	tokens TokenService,
	gateway GmailGateway,
	locker RunLocker,
	events EventPublisher,
	logger *logger.Logger,
) AutomationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &automationService{
		userRepo:     userRepo,
		templateRepo: templateRepo,
		logRepo:      logRepo,
		tokens:       tokens,
		gateway:      gateway,
		locker:       locker,
		events:       events,
		logger:       logger.With("automation"),
		cfg:          cfg,
	}
}

func (s *automationService) Run(ctx context.Context, userID string, lastPoll *time.Time) (*model.RunResult, error) {
	runStart := s.cfg.Now()
	result := &model.RunResult{NewLastPollTimestamp: lastPoll}

	release, err := s.locker.Acquire(ctx, "automation:"+userID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			err = ErrRunInProgress
		}
		return s.abort(userID, result, err)
	}
	defer release()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return s.abort(userID, result, fmt.Errorf("failed to load user: %w", err))
	}

	since := lastPoll
	if since == nil {
		since = user.LastPollAt
	}
	result.NewLastPollTimestamp = since

	if user.ManualOverrideActive {
		if since == nil {
			result.NewLastPollTimestamp = &runStart
		}
		s.logger.Info("Manual override active, skipping run for user:", userID)
		metrics.IncrementAutomationRun("skipped")
		s.publish(userID, EventAutomationCompleted, result)
		return result, nil
	}

	accessToken, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return s.abort(userID, result, err)
	}

	refs, err := s.gateway.PollMessages(ctx, accessToken, since, s.cfg.MaxPollResults)
	if err != nil {
		return s.abort(userID, result, fmt.Errorf("failed to poll messages: %w", err))
	}

	if len(refs) == 0 {
		s.logger.Info("No new messages for user:", userID)
		return s.complete(ctx, userID, result, since, &runStart)
	}

	templates, err := s.templateRepo.FindByUserID(ctx, userID)
	if err != nil {
		return s.abort(userID, result, fmt.Errorf("failed to load templates: %w", err))
	}
	active := make(map[model.Category]*model.Template)
	for _, t := range templates {
		if _, ok := active[t.Category]; t.IsActive && !ok {
			active[t.Category] = t
		}
	}
	if len(active) == 0 {
		s.logger.Info("No active templates for user:", userID)
		return s.complete(ctx, userID, result, since, &runStart)
	}

	s.logger.Infof("Processing %d messages for user %s", len(refs), userID)
	var retry retryWindow
	for _, ref := range refs {
		outcome, internalDate, err := s.processMessage(ctx, userID, accessToken, ref, active)
		if err != nil {
			s.logger.Errorf("Failed to process message %s: %v", ref.ID, err)
			s.recordFailure(ctx, userID, ref.ID)
			metrics.IncrementEmailProcessed(metrics.OutcomeFailed)
			retry.add(internalDate)
			continue
		}
		if outcome == "" {
			continue
		}
		metrics.IncrementEmailProcessed(outcome)

		switch outcome {
		case metrics.OutcomeReplied:
			result.ProcessedCount++
			result.SentCount++
		case metrics.OutcomeSendFailed:
			result.ProcessedCount++
			retry.add(internalDate)
		case metrics.OutcomeNoTemplate, metrics.OutcomeNoRecipient:
			result.ProcessedCount++
		}
	}

	return s.complete(ctx, userID, result, since, retry.watermark(since, runStart))
}

// retryWindow remembers the oldest message of a run whose reply still has
// to be attempted again, so the next poll reaches back to it.
type retryWindow struct {
	failed  bool
	unknown bool
	oldest  time.Time
}

// add records a failed message. internalDate is 0 when the message was
// never fetched.
func (w *retryWindow) add(internalDate int64) {
	w.failed = true
	if internalDate <= 0 {
		w.unknown = true
		return
	}
	at := time.UnixMilli(internalDate)
	if w.oldest.IsZero() || at.Before(w.oldest) {
		w.oldest = at
	}
}

// watermark is the run start when nothing failed. Otherwise it stops one
// second before the oldest failed message, and stays at since when a
// failed message has no known timestamp.
func (w *retryWindow) watermark(since *time.Time, runStart time.Time) *time.Time {
	if !w.failed {
		return &runStart
	}
	if w.unknown {
		return since
	}
	at := w.oldest.Add(-time.Second)
	if since != nil && !at.After(*since) {
		return since
	}
	return &at
}

// processMessage handles one polled message. It returns the metrics
// outcome, or "" when the message was skipped without a log row, along
// with the message's internal date once it is known. A non-nil error
// means no log row was written for the message.
func (s *automationService) processMessage(ctx context.Context, userID, accessToken string, ref model.MessageRef, templates map[model.Category]*model.Template) (string, int64, error) {
	done, err := s.logRepo.HasSentResponse(ctx, userID, ref.ID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to check log: %w", err)
	}
	if done {
		s.logger.Debugf("Already replied to message %s", ref.ID)
		metrics.IncrementEmailProcessed(metrics.OutcomeDuplicate)
		return "", 0, nil
	}

	detail, err := s.gateway.GetMessageDetail(ctx, accessToken, ref.ID)
	if err != nil {
		return "", 0, err
	}
	if !detail.HasPayload {
		s.logger.Warnf("Message %s has no payload", ref.ID)
		return "", detail.InternalDate, nil
	}

	subject, ok := detail.Header("Subject")
	if !ok || subject == "" {
		subject = defaultSubject
	}
	from, ok := detail.Header("From")
	if !ok || from == "" {
		from = defaultSender
	}
	messageID, _ := detail.Header("Message-ID")

	threadID := detail.ThreadID
	if threadID == "" {
		threadID = ref.ThreadID
	}
	senderEmail := personalize.SenderAddress(from)
	processedAt := detail.ReceivedAt(s.cfg.Now())

	body := extractBody(detail)
	if body == "" {
		entry := model.NewEmailLog(userID, ref.ID, senderEmail, subject, model.CategoryGeneral, 0, processedAt)
		if err := s.writeLog(ctx, entry); err != nil {
			return "", detail.InternalDate, err
		}
		return metrics.OutcomeEmptyBody, detail.InternalDate, nil
	}

	classification := classifier.Classify(subject, body)
	entry := model.NewEmailLog(userID, ref.ID, senderEmail, subject, classification.Category, classification.Confidence, processedAt)

	template, ok := templates[classification.Category]
	if !ok {
		s.logger.Infof("No active template for category %s", classification.Category)
		if err := s.writeLog(ctx, entry); err != nil {
			return "", detail.InternalDate, err
		}
		return metrics.OutcomeNoTemplate, detail.InternalDate, nil
	}

	name := personalize.SenderName(from)
	if name == "" {
		name = defaultName
	}
	vars := map[string]string{
		"Name":        name,
		"Email":       senderEmail,
		"Subject":     subject,
		"TicketID":    threadID,
		"OrderNumber": "N/A",
	}

	entry.ResponseTemplateID = template.ID
	outcome := metrics.OutcomeReplied
	if sendErr := s.sendReply(ctx, accessToken, model.OutgoingMessage{
		To:        senderEmail,
		Subject:   personalize.Personalize(template.Subject, vars),
		Body:      personalize.Personalize(template.Body, vars),
		ThreadID:  threadID,
		InReplyTo: messageID,
	}); errors.Is(sendErr, errNoRecipient) {
		s.logger.Warnf("Not replying to message %s: %v", ref.ID, sendErr)
		outcome = metrics.OutcomeNoRecipient
	} else if sendErr != nil {
		s.logger.Errorf("Failed to send reply to message %s: %v", ref.ID, sendErr)
		outcome = metrics.OutcomeSendFailed
	} else {
		entry.ResponseSent = true
	}

	if err := s.writeLog(ctx, entry); err != nil {
		return "", detail.InternalDate, err
	}
	return outcome, detail.InternalDate, nil
}

func (s *automationService) sendReply(ctx context.Context, accessToken string, msg model.OutgoingMessage) error {
	if !strings.Contains(msg.To, "@") {
		return fmt.Errorf("%w in %q", errNoRecipient, msg.To)
	}
	sent, err := s.gateway.SendMessage(ctx, accessToken, msg)
	if err != nil {
		return err
	}
	s.logger.Info("Sent reply:", sent.ID, "to:", msg.To)
	return nil
}

func (s *automationService) writeLog(ctx context.Context, entry *model.EmailLog) error {
	if err := s.logRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write email log: %w", err)
	}
	s.publish(entry.UserID, EventEmailProcessed, entry)
	return nil
}

// recordFailure writes the placeholder row for a message whose processing
// failed part way.
func (s *automationService) recordFailure(ctx context.Context, userID, messageID string) {
	entry := model.NewEmailLog(userID, messageID, defaultSender, "Processing Error", model.CategoryGeneral, 0, s.cfg.Now())
	if err := s.writeLog(ctx, entry); err != nil {
		s.logger.Error("Failed to record processing error:", err)
	}
}

// complete records next as the watermark and persists it when it moved.
// next is nil when a failed message left no safe point to advance to.
func (s *automationService) complete(ctx context.Context, userID string, result *model.RunResult, since, next *time.Time) (*model.RunResult, error) {
	result.NewLastPollTimestamp = next
	if next != nil && (since == nil || !next.Equal(*since)) {
		if err := s.userRepo.SetLastPollAt(ctx, userID, *next); err != nil {
			s.logger.Warnf("Failed to persist watermark for user %s: %v", userID, err)
		}
	}

	s.logger.Infof("Automation run completed for user %s: processed=%d sent=%d", userID, result.ProcessedCount, result.SentCount)
	metrics.IncrementAutomationRun("completed")
	s.publish(userID, EventAutomationCompleted, result)
	return result, nil
}

// abort ends a run without touching the watermark already in result.
func (s *automationService) abort(userID string, result *model.RunResult, err error) (*model.RunResult, error) {
	result.ProcessedCount = 0
	result.SentCount = 0
	result.Error = err.Error()

	s.logger.Error("Automation run aborted for user:", userID, err)
	metrics.IncrementAutomationRun("aborted")
	if !errors.Is(err, ErrRunInProgress) {
		s.publish(userID, EventAutomationCompleted, result)
	}
	return result, err
}

func (s *automationService) publish(userID, eventType string, data interface{}) {
	if s.events != nil {
		s.events.Publish(userID, eventType, data)
	}
}

// extractBody prefers the plain text part and falls back to the HTML part
// converted to text.
func extractBody(detail *model.MessageDetail) string {
	if body := strings.TrimSpace(detail.PlainBody); body != "" {
		return body
	}
	if detail.HTMLBody == "" {
		return ""
	}
	text, err := html2text.FromString(detail.HTMLBody, html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		text = tagPattern.ReplaceAllString(detail.HTMLBody, " ")
	}
	return strings.TrimSpace(text)
}
