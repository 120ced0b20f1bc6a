package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/storage"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// Messenger delivers outbound messages. Implementations swallow and log
// delivery failures.
type Messenger interface {
	SendText(ctx context.Context, to, body string)
	SendMedia(ctx context.Context, to, filePath, caption string)
	SendButtons(ctx context.Context, to, body string, options []string)
}

// Banner images under the assets directory
const (
	bannerJoin    = "JOIN.png"
	bannerRent    = "Rent.png"
	bannerEB      = "EB Banner.png"
	bannerPayment = "Payment Banner.png"
	bannerStart   = "START BANNER.png"
	imageUPIQR    = "qr scan.jpeg"
)

// AssistantDeps are the collaborators of the Assistant
type AssistantDeps struct {
	Store     storage.Store
	Sessions  SessionStore
	Messenger Messenger
	Validator Validator
	Responder Responder
	Recorder  activity.Recorder
	Billing   *BillingService
}

// Assistant is the conversational engine: it classifies every inbound
// message and runs the matching dialog step, command or fallback reply.
type Assistant struct {
	cfg        *config.Config
	store      storage.Store
	sessions   SessionStore
	messenger  Messenger
	validator  Validator
	responder  Responder
	recorder   activity.Recorder
	billing    *BillingService
	classifier *Classifier
	now        func() time.Time
}

func NewAssistant(cfg *config.Config, deps AssistantDeps) *Assistant {
	if deps.Validator == nil {
		deps.Validator = NewLLMValidator(nil, "")
	}
	if deps.Responder == nil {
		deps.Responder = NewLLMResponder(nil, "", cfg.BusinessName)
	}
	if deps.Recorder == nil {
		deps.Recorder = activity.Nop{}
	}
	if deps.Billing == nil {
		deps.Billing = NewBillingService(cfg, deps.Store, deps.Messenger, nil, nil, deps.Recorder)
	}
	return &Assistant{
		cfg:        cfg,
		store:      deps.Store,
		sessions:   deps.Sessions,
		messenger:  deps.Messenger,
		validator:  deps.Validator,
		responder:  deps.Responder,
		recorder:   deps.Recorder,
		billing:    deps.Billing,
		classifier: NewClassifier(deps.Sessions, deps.Store, cfg.IsOwner),
		now:        time.Now,
	}
}

// HandleIncoming processes one inbound message to completion
func (a *Assistant) HandleIncoming(ctx context.Context, msg models.InboundMessage) {
	msg.From = utils.NormalizePhone(msg.From)
	if msg.From == "" {
		return
	}
	logger.Info("📱 Incoming message", "from", msg.From, "body", msg.Body, "image", msg.Image != nil, "channel", msg.Channel)
	a.recorder.Record(activity.Incoming(msg))

	cls := a.classifier.Classify(ctx, msg)
	logger.Debug("Classified message", "from", msg.From, "intent", cls.Intent, "keyword", cls.Keyword)

	switch cls.Intent {
	case IntentContinueDialog:
		a.continueDialog(ctx, msg, cls.Session)
	case IntentSmartPayment:
		a.handleSmartPayment(ctx, msg, cls)
	case IntentFixedCommand:
		a.handleCommand(ctx, msg, cls)
	case IntentAdminParametric:
		a.handleAdminCommand(ctx, msg.From, cls.Keyword, cls.Args)
	default:
		a.fallback(ctx, msg)
	}
}

func (a *Assistant) reply(ctx context.Context, to, text string) {
	a.messenger.SendText(ctx, to, text)
}

func (a *Assistant) notifyOwner(ctx context.Context, text string) {
	if a.cfg.OwnerPhone == "" {
		return
	}
	a.messenger.SendText(ctx, a.cfg.OwnerPhone, text)
}

// sendAsset sends an image from the assets directory when it exists
func (a *Assistant) sendAsset(ctx context.Context, to, name, caption string) {
	path := filepath.Join(a.cfg.AssetsDir, name)
	if _, err := os.Stat(path); err != nil {
		logger.Debug("Asset not found, skipping", "path", path)
		return
	}
	a.messenger.SendMedia(ctx, to, path, caption)
}

// startDialog opens a flow at step, keeping any disambiguating context
func (a *Assistant) startDialog(phone, step string, current *models.Session) *models.Session {
	s := models.NewSession(phone, step)
	if current != nil {
		s.ContextName = current.ContextName
	}
	a.sessions.Set(phone, s)
	return s
}

// lookupTenant finds the sender's tenant record; a miss is reported as nil without error
func (a *Assistant) lookupTenant(phone, contextName string) (*models.Tenant, error) {
	t, err := a.store.GetTenantByPhone(phone, contextName)
	if errors.Is(err, storage.ErrTenantNotFound) {
		return nil, nil
	}
	return t, err
}

// requireTenant looks up the sender and answers the miss or failure itself
func (a *Assistant) requireTenant(ctx context.Context, phone, contextName string) *models.Tenant {
	t, err := a.lookupTenant(phone, contextName)
	if err != nil {
		logger.Error("❌ Tenant lookup failed", "phone", phone, "error", err)
		a.reply(ctx, phone, MsgSomethingWrong)
		return nil
	}
	if t == nil {
		a.reply(ctx, phone, MsgNotRegistered)
	}
	return t
}

func (a *Assistant) fallback(ctx context.Context, msg models.InboundMessage) {
	if msg.Body == "" {
		a.reply(ctx, msg.From, MsgNotUnderstood)
		return
	}
	text, err := a.responder.Reply(ctx, msg.Body)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("⚠️ Assistant reply failed", "from", msg.From, "error", err)
		}
		text = MsgAssistantDown
	}
	a.reply(ctx, msg.From, text)
}
