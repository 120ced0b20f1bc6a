package services

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// Intent is the route chosen for one inbound message
type Intent int

const (
	IntentFallback Intent = iota
	IntentContinueDialog
	IntentSmartPayment
	IntentFixedCommand
	IntentAdminParametric
)

func (i Intent) String() string {
	switch i {
	case IntentContinueDialog:
		return "continue_dialog"
	case IntentSmartPayment:
		return "smart_payment"
	case IntentFixedCommand:
		return "fixed_command"
	case IntentAdminParametric:
		return "admin_parametric"
	default:
		return "fallback"
	}
}

var intentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stayflow_intent_total",
	Help: "Inbound messages by classified intent.",
}, []string{"intent"})

// Tenant command keywords
const (
	CmdJoin         = "JOIN"
	CmdRent         = "RENT"
	CmdEB           = "EB"
	CmdStatus       = "STATUS"
	CmdPaid         = "PAID"
	CmdCashPaid     = "CASH PAID"
	CmdHelp         = "HELP"
	CmdAdvance      = "ADVANCE"
	CmdLeave        = "LEAVE"
	CmdVacate       = "VACATE"
	CmdVacating     = "VACATING"
	CmdHistory      = "HISTORY"
	CmdPreviousPay  = "PREVIOUS PAYMENT"
	CmdHi           = "HI"
	CmdHello        = "HELLO"
	CmdCancel       = "CANCEL"
	CmdTotalTenants = "TOTAL TENANTS"
	CmdPaidList     = "PAID LIST"
	CmdPendingList  = "PENDING LIST"
	CmdDashboard    = "DASHBOARD"
	CmdSendBill     = "SEND BILL"
	CmdSendReminder = "SEND REMINDER"
	CmdAnnounce     = "ANNOUNCE"
	CmdSetEB        = "SET EB"
	CmdVacateRoom   = "VACATE"
	CmdMarkCash     = "MARK CASH"
)

var tenantCommands = map[string]bool{
	CmdJoin: true, CmdRent: true, CmdEB: true, CmdStatus: true, CmdPaid: true,
	CmdCashPaid: true, CmdHelp: true, CmdAdvance: true, CmdLeave: true, CmdVacate: true,
	CmdVacating: true, CmdHistory: true, CmdPreviousPay: true, CmdHi: true, CmdHello: true,
}

var adminCommands = map[string]bool{
	CmdTotalTenants: true, CmdPaidList: true, CmdPendingList: true, CmdDashboard: true,
	CmdSendBill: true, CmdSendReminder: true, CmdAnnounce: true,
}

// Classification is the classifier's decision for one message
type Classification struct {
	Intent  Intent
	Keyword string
	Args    []string
	Claim   PaymentClaim
	Session *models.Session // the open dialog, or the context-only session
}

// ContextName returns the disambiguating tenant name attached to the contact, if any
func (c Classification) ContextName() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.ContextName
}

// Classifier decides how an inbound message is handled. First match wins:
// open dialog, smart payment, fixed keyword, owner parametric command, fallback.
type Classifier struct {
	sessions SessionStore
	store    storage.Store
	isOwner  func(phone string) bool
}

func NewClassifier(sessions SessionStore, store storage.Store, isOwner func(string) bool) *Classifier {
	if isOwner == nil {
		isOwner = func(string) bool { return false }
	}
	return &Classifier{sessions: sessions, store: store, isOwner: isOwner}
}

func (c *Classifier) Classify(ctx context.Context, msg models.InboundMessage) Classification {
	out := c.classify(ctx, msg)
	intentTotal.WithLabelValues(out.Intent.String()).Inc()
	return out
}

func (c *Classifier) classify(_ context.Context, msg models.InboundMessage) Classification {
	session, _ := c.sessions.Get(msg.From)
	if session.InDialog() {
		return Classification{Intent: IntentContinueDialog, Session: session}
	}
	out := Classification{Session: session}

	if claim := DetectPaymentClaim(msg.Body); claim.Kind != ClaimNone {
		tenant, err := c.store.GetTenantByPhone(msg.From, out.ContextName())
		switch {
		case err == nil:
			claim.Tenant = tenant
			out.Intent = IntentSmartPayment
			out.Claim = claim
			return out
		case !errors.Is(err, storage.ErrTenantNotFound):
			logger.Warn("⚠️ Tenant lookup failed during payment detection", "phone", msg.From, "error", err)
		}
	}

	keyword := strings.ToUpper(strings.TrimSpace(msg.Body))
	if tenantCommands[keyword] {
		out.Intent = IntentFixedCommand
		out.Keyword = keyword
		return out
	}

	owner := c.isOwner(msg.From)
	if adminCommands[keyword] {
		if owner {
			out.Intent = IntentFixedCommand
			out.Keyword = keyword
		}
		return out
	}

	if owner {
		if kw, args, ok := parseAdminCommand(keyword); ok {
			out.Intent = IntentAdminParametric
			out.Keyword = kw
			out.Args = args
			return out
		}
	}

	return out
}

// parseAdminCommand splits "SET EB 101 100", "VACATE 101" and "MARK CASH <phone>"
func parseAdminCommand(clean string) (string, []string, bool) {
	parts := strings.Fields(clean)
	switch {
	case strings.HasPrefix(clean, CmdSetEB+" ") || clean == CmdSetEB:
		return CmdSetEB, parts[2:], true
	case strings.HasPrefix(clean, CmdMarkCash+" ") && len(parts) >= 3:
		return CmdMarkCash, parts[2:], true
	case strings.HasPrefix(clean, CmdVacateRoom+" ") && len(parts) >= 2:
		return CmdVacateRoom, parts[1:], true
	}
	return "", nil, false
}
