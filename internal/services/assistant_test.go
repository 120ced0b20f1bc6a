package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

const (
	ownerPhone  = "919000000001"
	tenantPhone = "919876543210"
)

type outbound struct {
	Kind    string
	To      string
	Body    string
	File    string
	Options []string
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []outbound
}

func (m *recordingMessenger) SendText(_ context.Context, to, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outbound{Kind: "text", To: to, Body: body})
}

func (m *recordingMessenger) SendMedia(_ context.Context, to, filePath, caption string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outbound{Kind: "media", To: to, File: filePath, Body: caption})
}

func (m *recordingMessenger) SendButtons(_ context.Context, to, body string, options []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outbound{Kind: "buttons", To: to, Body: body, Options: options})
}

func (m *recordingMessenger) to(phone string) []outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbound
	for _, s := range m.sent {
		if s.To == phone {
			out = append(out, s)
		}
	}
	return out
}

func (m *recordingMessenger) lastText(phone string) string {
	msgs := m.to(phone)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == "text" {
			return msgs[i].Body
		}
	}
	return ""
}

func (m *recordingMessenger) reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// scriptedValidator rejects the listed kinds and accepts everything else
type scriptedValidator struct {
	reject map[string]string
}

func (v scriptedValidator) Validate(_ context.Context, kind, _ string) ValidationResult {
	if msg, ok := v.reject[kind]; ok {
		return ValidationResult{IsValid: false, Message: msg}
	}
	return ValidationResult{IsValid: true}
}

type stubResponder struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []string
}

func (r *stubResponder) Reply(_ context.Context, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, body)
	return r.reply, r.err
}

type harness struct {
	cfg       *config.Config
	store     *storage.MemoryStore
	sessions  *SessionManager
	messenger *recordingMessenger
	responder *stubResponder
	validator *scriptedValidator
	assistant *Assistant
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		BusinessName: "StayFlow",
		OwnerPhone:   ownerPhone,
		UPIID:        "owner@upi",
		RentDueDay:   5,
		EBDueDay:     10,
		EBUnitRate:   15,
		AssetsDir:    t.TempDir(),
	}
	h := &harness{
		cfg:       cfg,
		store:     storage.NewMemoryStore(),
		sessions:  NewSessionManager(0),
		messenger: &recordingMessenger{},
		responder: &stubResponder{reply: "Namaste! How can I help?"},
		validator: &scriptedValidator{reject: map[string]string{}},
	}
	h.assistant = NewAssistant(cfg, AssistantDeps{
		Store:     h.store,
		Sessions:  h.sessions,
		Messenger: h.messenger,
		Validator: h.validator,
		Responder: h.responder,
	})
	return h
}

func (h *harness) send(from, body string) {
	h.assistant.HandleIncoming(context.Background(), models.InboundMessage{From: from, Body: body})
}

func (h *harness) sendImage(from, body, mediaID string) {
	h.assistant.HandleIncoming(context.Background(), models.InboundMessage{
		From:  from,
		Body:  body,
		Image: &models.MediaRef{ID: mediaID, MimeType: "image/jpeg"},
	})
}

func (h *harness) addTenant(t *testing.T, name, phone, room string, rent float64) *models.Tenant {
	t.Helper()
	tenant, err := h.store.CreateTenant(&models.TenantRegistration{
		Name:        name,
		Phone:       phone,
		Room:        room,
		SharingType: "Two Sharing",
		MonthlyRent: rent,
		Advance:     5000,
	})
	require.NoError(t, err)
	return tenant
}

func (h *harness) tenant(t *testing.T, phone, name string) *models.Tenant {
	t.Helper()
	tenant, err := h.store.GetTenantByPhone(phone, name)
	require.NoError(t, err)
	return tenant
}

func TestSmartPaymentCashWithAmount(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "paid 7000 cash")

	got := h.tenant(t, tenantPhone, "")
	assert.Equal(t, models.TenantStatusPaid, got.Status)
	assert.Equal(t, models.PaymentModeCash, got.PaymentMode)
	assert.Equal(t, "CASH-PMT", got.TransactionID)

	history, err := h.store.GetPaymentHistory(tenantPhone, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7000.0, history[0].TotalAmount)

	_, open := h.sessions.Get(tenantPhone)
	assert.False(t, open)
	assert.Contains(t, h.messenger.lastText(tenantPhone), "Payment Recorded")
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Cash Payment Confirmed")
}

func TestSmartPaymentCashWithoutAmountOpensDialog(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "paid cash")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepCashAmount, s.Step)
	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "").Status)
	assert.Equal(t, MsgSmartAskAmount, h.messenger.lastText(tenantPhone))

	h.send(tenantPhone, "7000")
	s, ok = h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepCashDate, s.Step)

	h.send(tenantPhone, "02/03/2025")
	_, ok = h.sessions.Get(tenantPhone)
	assert.False(t, ok)

	got := h.tenant(t, tenantPhone, "")
	assert.Equal(t, models.TenantStatusPaid, got.Status)
	assert.Equal(t, models.PaymentModeCash, got.PaymentMode)
	assert.Equal(t, "CASH-7000", got.TransactionID)
	assert.Equal(t, "02/03/2025", got.PaidDate)
	assert.Equal(t, "✅ Cash payment of ₹7000 recorded.", h.messenger.lastText(tenantPhone))
}

func TestSmartPaymentUPITransaction(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "paid TRX123456789")

	got := h.tenant(t, tenantPhone, "")
	assert.Equal(t, models.TenantStatusPaid, got.Status)
	assert.Equal(t, models.PaymentModeUPI, got.PaymentMode)
	assert.Equal(t, "TRX123456789", got.TransactionID)

	history, err := h.store.GetPaymentHistory(tenantPhone, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7000.0, history[0].TotalAmount)
	assert.Contains(t, h.messenger.lastText(ownerPhone), "TRX ID: TRX123456789")
}

func TestBarePaidFallsThroughToCommand(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "paid")

	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "").Status)
	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepPaymentProof, s.Step)
	assert.Equal(t, MsgAskProof, h.messenger.lastText(tenantPhone))
}

func TestPaymentProofWithScreenshot(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.send(tenantPhone, "PAID")

	h.sendImage(tenantPhone, "", "IMG42")

	got := h.tenant(t, tenantPhone, "")
	assert.Equal(t, models.TenantStatusPaid, got.Status)
	assert.Equal(t, "IMAGE_UPLOAD", got.TransactionID)
	assert.Equal(t, "IMG42", got.PaymentProof)
	_, ok := h.sessions.Get(tenantPhone)
	assert.False(t, ok)
	assert.Equal(t, MsgPaymentThanks, h.messenger.lastText(tenantPhone))
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Proof ID: IMG42")
}

func TestPaymentProofRejectedTransactionReprompts(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.validator.reject[ValidateTransID] = ""
	h.send(tenantPhone, "PAID")

	h.send(tenantPhone, "hello")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepPaymentProof, s.Step)
	assert.Equal(t, "❌ Please provide a valid Transaction ID.", h.messenger.lastText(tenantPhone))
	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "").Status)
}

func TestSmartPaymentIgnoredForUnregisteredSender(t *testing.T) {
	h := newHarness(t)

	h.send(tenantPhone, "paid 7000 cash")

	_, ok := h.sessions.Get(tenantPhone)
	assert.False(t, ok)
	assert.Equal(t, []string{"paid 7000 cash"}, h.responder.calls)
	assert.Equal(t, "Namaste! How can I help?", h.messenger.lastText(tenantPhone))
}

func TestRegistrationFlow(t *testing.T) {
	h := newHarness(t)
	from := "919111111111"

	h.send(from, "JOIN")
	s, ok := h.sessions.Get(from)
	require.True(t, ok)
	assert.Equal(t, models.StepName, s.Step)

	h.send(from, "Ravi Kumar")
	assert.Equal(t, MsgAskPhone, h.messenger.lastText(from))
	h.send(from, "9111111111")
	assert.Equal(t, MsgAskRoom, h.messenger.lastText(from))
	h.send(from, "101")
	assert.Equal(t, MsgAskSharing, h.messenger.lastText(from))
	h.send(from, "2")
	assert.Equal(t, MsgAskAdvance, h.messenger.lastText(from))
	h.send(from, "5000")
	assert.Equal(t, MsgAskAadhaar, h.messenger.lastText(from))

	h.send(from, "here it is")
	assert.Equal(t, MsgNeedAadhaar, h.messenger.lastText(from))

	h.sendImage(from, "", "AADHAAR1")

	tenants, err := h.store.GetAllTenants()
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	got := tenants[0]
	assert.Equal(t, "Ravi Kumar", got.Name)
	assert.Equal(t, "919111111111", got.Phone)
	assert.Equal(t, "101", got.Room)
	assert.Equal(t, "Two Sharing", got.SharingType)
	assert.Equal(t, 7000.0, got.MonthlyRent)
	assert.Equal(t, 5000.0, got.Advance)
	assert.Equal(t, "AADHAAR1", got.AadhaarImage)

	_, ok = h.sessions.Get(from)
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(h.messenger.lastText(from), "✅ Registration successful."))
	assert.Contains(t, h.messenger.lastText(ownerPhone), "New Tenant Registered")
}

func TestRegistrationInvalidSharingChoice(t *testing.T) {
	h := newHarness(t)
	h.sessions.Set(tenantPhone, &models.Session{Step: models.StepSharingType, Data: map[string]string{}})

	h.send(tenantPhone, "5")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepSharingType, s.Step)
	assert.Equal(t, MsgInvalidSharing, h.messenger.lastText(tenantPhone))
}

func TestValidationRejectionDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.validator.reject[models.StepName] = "That doesn't look like a name."
	h.send(tenantPhone, "JOIN")

	h.send(tenantPhone, "asdf")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepName, s.Step)
	assert.Equal(t, "❌ That doesn't look like a name.", h.messenger.lastText(tenantPhone))
}

func TestOpenDialogCapturesCommandKeywords(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.send(tenantPhone, "JOIN")
	h.messenger.reset()

	h.send(tenantPhone, "RENT")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepPhoneNumber, s.Step)
	assert.Equal(t, "RENT", s.Data[models.FieldName])
	assert.Equal(t, MsgAskPhone, h.messenger.lastText(tenantPhone))
}

func TestOpenDialogCapturesPaymentText(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.send(tenantPhone, "HELP")

	h.send(tenantPhone, "paid 7000 cash")

	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "").Status)
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Category: paid 7000 cash")
}

func TestCancelEndsDialog(t *testing.T) {
	h := newHarness(t)
	h.send(tenantPhone, "JOIN")

	h.send(tenantPhone, "cancel")

	_, ok := h.sessions.Get(tenantPhone)
	assert.False(t, ok)
	assert.Equal(t, MsgDialogCancelled, h.messenger.lastText(tenantPhone))
}

func TestContextOnlySessionDoesNotCapture(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.addTenant(t, "Sita", tenantPhone, "102", 6500)
	h.sessions.SetContext(tenantPhone, "Sita")

	h.send(tenantPhone, "RENT")

	assert.Contains(t, h.messenger.to(tenantPhone)[0].Body, "Hi Sita,")

	h.send(tenantPhone, "paid 6500 cash")
	assert.Equal(t, models.TenantStatusPaid, h.tenant(t, tenantPhone, "Sita").Status)
	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "Ravi").Status)
}

func TestAdminCommandFromNonOwnerFallsBack(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "SEND REMINDER")
	h.send(tenantPhone, "VACATE 101")
	h.send(tenantPhone, "MARK CASH 9876543210")

	assert.Equal(t, []string{"SEND REMINDER", "VACATE 101", "MARK CASH 9876543210"}, h.responder.calls)
	assert.Equal(t, models.TenantStatusActive, h.tenant(t, tenantPhone, "").Status)
	assert.Empty(t, h.messenger.to(ownerPhone))
}

func TestFallbackApologyOnResponderError(t *testing.T) {
	h := newHarness(t)
	h.responder.err = errors.New("rate limited")

	h.send(tenantPhone, "what is the wifi password")

	assert.Equal(t, MsgAssistantDown, h.messenger.lastText(tenantPhone))
}

func TestRentWithoutPaymentLinks(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "rent")

	msgs := h.messenger.to(tenantPhone)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi Ravi,\n\nYour Current Bill:\n\nRent: ₹7000\nEB: ₹0\nTotal: ₹7000", msgs[0].Body)
	assert.Contains(t, msgs[1].Body, "UPI: owner@upi")
}

func TestRentForUnregisteredSender(t *testing.T) {
	h := newHarness(t)

	h.send(tenantPhone, "RENT")

	assert.Equal(t, MsgNotRegistered, h.messenger.lastText(tenantPhone))
}

func TestHelpSendsButtonsAndForwards(t *testing.T) {
	h := newHarness(t)

	h.send(tenantPhone, "HELP")
	msgs := h.messenger.to(tenantPhone)
	require.Len(t, msgs, 1)
	assert.Equal(t, "buttons", msgs[0].Kind)
	assert.Equal(t, helpOptions, msgs[0].Options)

	h.send(tenantPhone, "Food")
	_, ok := h.sessions.Get(tenantPhone)
	assert.False(t, ok)
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Category: Food")
}

func TestGreetingShowsDashboardOrWelcome(t *testing.T) {
	h := newHarness(t)

	h.send(tenantPhone, "hi")
	assert.Contains(t, h.messenger.lastText(tenantPhone), "Type *JOIN* to Register")

	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)
	h.send(tenantPhone, "HELLO")
	assert.Contains(t, h.messenger.lastText(tenantPhone), "Welcome back, *Ravi*!")
}

func TestOwnerSetEBSplitsRoom(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", "919111111111", "101", 7000)
	h.addTenant(t, "Arun", "919222222222", "101", 7000)
	h.addTenant(t, "Meena", "919333333333", "102", 6500)

	h.send(ownerPhone, "SET EB 101 15")

	ravi := h.tenant(t, "919111111111", "")
	assert.Equal(t, 113.0, ravi.EBAmount) // ceil(15*15/2)
	assert.Equal(t, 7113.0, ravi.TotalAmount)
	assert.Equal(t, 0.0, h.tenant(t, "919333333333", "").EBAmount)
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Split per head (2): ₹113")
	assert.Contains(t, h.messenger.lastText("919222222222"), "Electricity Bill Updated")
}

func TestOwnerSetEBUsage(t *testing.T) {
	h := newHarness(t)

	h.send(ownerPhone, "SET EB 101")

	assert.Equal(t, MsgSetEBUsage, h.messenger.lastText(ownerPhone))
}

func TestOwnerVacateRoomAndMarkCash(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", "919111111111", "101", 7000)
	h.addTenant(t, "Meena", "919333333333", "102", 6500)

	h.send(ownerPhone, "VACATE 101")
	assert.Equal(t, models.TenantStatusVacated, h.tenant(t, "919111111111", "").Status)
	assert.Equal(t, models.TenantStatusActive, h.tenant(t, "919333333333", "").Status)

	h.send(ownerPhone, "MARK CASH 9333333333")
	meena := h.tenant(t, "919333333333", "")
	assert.Equal(t, models.TenantStatusPaid, meena.Status)
	assert.Equal(t, models.PaymentModeCash, meena.PaymentMode)
	assert.Contains(t, h.messenger.lastText("919333333333"), "recorded as CASH by the owner")
}

func TestOwnerDashboardAndAnnouncement(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", "919111111111", "101", 7000)
	h.addTenant(t, "Meena", "919333333333", "102", 6500)
	h.send("919111111111", "paid 7000 cash")

	h.send(ownerPhone, "DASHBOARD")
	dash := h.messenger.lastText(ownerPhone)
	assert.Contains(t, dash, "Total Strength: 2")
	assert.Contains(t, dash, "Paid: 1")
	assert.Contains(t, dash, "Total Revenue: ₹7000")

	h.send(ownerPhone, "ANNOUNCE")
	h.send(ownerPhone, "Water supply off on Sunday")
	assert.Equal(t, MsgAnnounceSent, h.messenger.lastText(ownerPhone))
	assert.Equal(t, "📢 *ANNOUNCEMENT*\n\nWater supply off on Sunday", h.messenger.lastText("919333333333"))
}

// failingStore refuses to create tenants
type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) CreateTenant(*models.TenantRegistration) (*models.Tenant, error) {
	return nil, errors.New("sheet unavailable")
}

func TestRegistrationCreateFailureEndsDialog(t *testing.T) {
	h := newHarness(t)
	h.assistant = NewAssistant(h.cfg, AssistantDeps{
		Store:     failingStore{h.store},
		Sessions:  h.sessions,
		Messenger: h.messenger,
		Validator: h.validator,
		Responder: h.responder,
	})
	from := "919111111111"
	s := models.NewSession(from, models.StepAadhaarUpload)
	s.Data[models.FieldName] = "Ravi Kumar"
	s.Data[models.FieldRoom] = "101"
	h.sessions.Set(from, s)

	h.sendImage(from, "", "AADHAAR1")

	assert.Equal(t, MsgRegisterFailed, h.messenger.lastText(from))
	_, ok := h.sessions.Get(from)
	assert.False(t, ok)
	assert.Empty(t, h.messenger.to(ownerPhone))
}

func TestAdvanceChoiceForwardsToOwner(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", tenantPhone, "101", 7000)

	h.send(tenantPhone, "ADVANCE")
	msgs := h.messenger.to(tenantPhone)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "buttons", msgs[len(msgs)-1].Kind)
	assert.Equal(t, []string{"ADJUST", "REFUND"}, msgs[len(msgs)-1].Options)

	h.send(tenantPhone, "REFUND")
	assert.Contains(t, h.messenger.lastText(tenantPhone), "*REFUND* of advance")
	assert.Contains(t, h.messenger.lastText(ownerPhone), "ADVANCE REQUEST")
	_, ok := h.sessions.Get(tenantPhone)
	assert.False(t, ok)
}

func TestUnknownDialogStepIsDropped(t *testing.T) {
	h := newHarness(t)
	h.sessions.Set(tenantPhone, models.NewSession(tenantPhone, "SOMETHING_OLD"))

	h.send(tenantPhone, "hello")

	assert.Empty(t, h.messenger.to(tenantPhone))
	assert.Empty(t, h.responder.calls)
}

func TestOwnerSetEBRejectsInfiniteUnits(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Ravi", "919111111111", "101", 7000)

	h.send(ownerPhone, "SET EB 101 Inf")

	assert.Equal(t, MsgBadUnits, h.messenger.lastText(ownerPhone))
	ravi := h.tenant(t, "919111111111", "")
	assert.Equal(t, 0.0, ravi.EBAmount)
	assert.Equal(t, 7000.0, ravi.TotalAmount)
	assert.Empty(t, h.messenger.to("919111111111"))
}

func TestOwnerMarkCashJoinsSpacedNumber(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "Meena", "919333333333", "102", 6500)

	h.send(ownerPhone, "MARK CASH 93333 33333")

	assert.Equal(t, models.TenantStatusPaid, h.tenant(t, "919333333333", "").Status)
	assert.Contains(t, h.messenger.lastText(ownerPhone), "Marked 9333333333 as PAID")
}

func TestCashPaidFromUnregisteredSenderOpensAmountDialog(t *testing.T) {
	h := newHarness(t)

	h.send(tenantPhone, "CASH PAID")

	s, ok := h.sessions.Get(tenantPhone)
	require.True(t, ok)
	assert.Equal(t, models.StepCashAmount, s.Step)
	assert.Empty(t, h.responder.calls)
}
