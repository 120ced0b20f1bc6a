package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

func (a *Assistant) handleCommand(ctx context.Context, msg models.InboundMessage, cls Classification) {
	phone := msg.From
	contextName := cls.ContextName()

	switch cls.Keyword {
	case CmdJoin:
		a.handleJoin(ctx, phone, cls.Session)
	case CmdRent:
		a.handleRent(ctx, phone, contextName)
	case CmdEB:
		a.handleEB(ctx, phone, contextName)
	case CmdStatus:
		a.handleStatus(ctx, phone, contextName)
	case CmdPaid:
		a.startDialog(phone, models.StepPaymentProof, cls.Session)
		a.reply(ctx, phone, MsgAskProof)
	case CmdCashPaid:
		a.startDialog(phone, models.StepCashAmount, cls.Session)
		a.reply(ctx, phone, MsgAskCashAmount)
	case CmdHelp:
		a.messenger.SendButtons(ctx, phone, MsgHelpPrompt, helpOptions)
		a.startDialog(phone, models.StepHelpReason, cls.Session)
	case CmdAdvance:
		a.handleAdvance(ctx, phone, cls.Session)
	case CmdLeave, CmdVacate, CmdVacating:
		a.handleVacateRequest(ctx, phone, contextName)
	case CmdHistory, CmdPreviousPay:
		a.handleHistory(ctx, phone, contextName)
	case CmdHi, CmdHello:
		a.handleGreeting(ctx, phone, contextName)

	case CmdTotalTenants, CmdPaidList, CmdPendingList, CmdDashboard, CmdSendBill, CmdSendReminder, CmdAnnounce:
		a.handleOwnerCommand(ctx, phone, cls.Keyword, cls.Session)
	}
}

func (a *Assistant) handleJoin(ctx context.Context, phone string, current *models.Session) {
	a.sendAsset(ctx, phone, bannerJoin, "")

	text := fmt.Sprintf("Welcome 👋\nLet's get you registered with %s right here.\n\nPlease send your *Full Name*.", a.cfg.BusinessName)
	if a.cfg.FormURL != "" {
		text += fmt.Sprintf("\n\nPrefer a form? 👉 %s", a.cfg.FormURL)
	}
	text += "\n\n_Type CANCEL anytime to stop._"

	a.startDialog(phone, models.StepName, current)
	a.reply(ctx, phone, text)
}

func (a *Assistant) handleRent(ctx context.Context, phone, contextName string) {
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}

	a.sendAsset(ctx, phone, bannerRent, "")
	a.reply(ctx, phone, billMessage(t))

	if link := a.billing.PaymentLink(ctx, t, t.Due()); link != "" {
		a.reply(ctx, phone, razorpayMessage(link))
		return
	}
	a.reply(ctx, phone, manualPaymentMessage(a.cfg.UPIID))
	a.sendAsset(ctx, phone, imageUPIQR, "")
}

func (a *Assistant) handleEB(ctx context.Context, phone, contextName string) {
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}
	a.sendAsset(ctx, phone, bannerEB, "")
	a.reply(ctx, phone, fmt.Sprintf("Your EB Bill for this month is %s.\nPlease pay before %s.", rupees(t.EBAmount), ordinal(a.cfg.EBDueDay)))
}

func (a *Assistant) handleStatus(ctx context.Context, phone, contextName string) {
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}
	a.reply(ctx, phone, statusMessage(t))

	history, err := a.store.GetPaymentHistory(t.Phone, 3)
	if err != nil {
		logger.Warn("⚠️ Failed to load payment history", "phone", phone, "error", err)
		return
	}
	if len(history) == 0 {
		return
	}
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("📅 %s: %s (%s)", h.MonthYear, rupees(h.TotalAmount), h.Status))
	}
	a.reply(ctx, phone, "📊 *Recent Payment History:*\n"+strings.Join(lines, "\n"))
}

func (a *Assistant) handleAdvance(ctx context.Context, phone string, current *models.Session) {
	contextName := ""
	if current != nil {
		contextName = current.ContextName
	}
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}
	a.messenger.SendButtons(ctx, phone, fmt.Sprintf("Your Advance Balance: %s\n\nWhat would you like to do?", rupees(t.Advance)), advanceOptions)
	a.startDialog(phone, models.StepAdvanceChoice, current)
}

func (a *Assistant) handleVacateRequest(ctx context.Context, phone, contextName string) {
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}
	a.reply(ctx, phone, fmt.Sprintf("We have received your request to vacate Room %s. The owner has been notified and will contact you shortly regarding the settlement and advance refund. 🙏", t.Room))
	a.notifyOwner(ctx, fmt.Sprintf("🏃 *VACATE REQUEST*\n\nResident: %s\nPhone: %s\nRoom: %s\nAction Required: Please check documentation and settle advance.", t.Name, phone, t.Room))
}

func (a *Assistant) handleHistory(ctx context.Context, phone, contextName string) {
	t := a.requireTenant(ctx, phone, contextName)
	if t == nil {
		return
	}
	history, err := a.store.GetPaymentHistory(t.Phone, 6)
	if err != nil {
		logger.Error("❌ History lookup failed", "phone", phone, "error", err)
		a.reply(ctx, phone, "Unable to fetch history. Please try again later.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *Payment History*\n" + divider + "\n\n")
	if len(history) == 0 {
		sb.WriteString("No payment history found yet.\n\n")
	}
	for _, h := range history {
		fmt.Fprintf(&sb, "%s *%s*\n   Amount: %s\n   Mode: %s\n\n", historyEmoji(h.Status), h.MonthYear, rupees(h.TotalAmount), h.PaymentMode)
	}
	sb.WriteString(divider + "\n_Paid by cash or UPI? Just tell me, e.g. \"paid 7000 cash\"._")
	a.reply(ctx, phone, sb.String())
}

func (a *Assistant) handleGreeting(ctx context.Context, phone, contextName string) {
	t, err := a.lookupTenant(phone, contextName)
	if err != nil {
		logger.Error("❌ Tenant lookup failed", "phone", phone, "error", err)
	}
	if t == nil || t.IsVacated() {
		a.sendAsset(ctx, phone, bannerStart, "")
		a.reply(ctx, phone, fmt.Sprintf("Hello! 👋 Welcome to %s.\n\nTo get started, please register with us:\n\n👉 Type *JOIN* to Register\n\nIf you are already a member, please contact the admin if your number has changed.", a.cfg.BusinessName))
		return
	}

	a.reply(ctx, phone, a.dashboardMessage(t))
	a.recorder.Record(activity.Notification(phone, t.Name, NotifyDashboardView, "Tenant viewed dashboard via HI command"))
}

func (a *Assistant) dashboardMessage(t *models.Tenant) string {
	status := t.Status
	if status == "" {
		status = models.TenantStatusActive
	}
	month := a.now().Format("January")

	var history string
	if past, err := a.store.GetPaymentHistory(t.Phone, 3); err != nil {
		logger.Warn("⚠️ Failed to load payment history", "phone", t.Phone, "error", err)
	} else if len(past) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n📊 *Past Payments:*\n")
		for _, h := range past {
			fmt.Fprintf(&sb, "%s %s: %s\n", historyEmoji(h.Status), h.MonthYear, rupees(h.TotalAmount))
		}
		history = strings.TrimRight(sb.String(), "\n")
	}

	return fmt.Sprintf(`%[1]s
🏠 *%[2]s Portal*
%[1]s

Welcome back, *%[3]s*! 👋

📍 *Your Details:*
🚪 Room: %[4]s
📌 Location: %[5]s
%[6]s Status: *%[7]s*

💰 *Upcoming Bill - %[8]s:*
🏠 Rent: %[9]s
⚡ EB: %[10]s
💵 *Total Due: %[11]s*
📅 *Due Date: %[12]s %[8]s*%[13]s

%[1]s
⚡ *Quick Actions:*
%[1]s
📋 Type *RENT* - View bill & pay
📜 Type *HISTORY* - Full payment history
🚪 Type *VACATE* - Request to leave
🆘 Type *HELP* - Raise complaint

_Reply with any option above_`,
		divider, a.cfg.BusinessName, t.Name, t.Room, t.LocationOrDefault(), statusEmoji(status), status,
		month, rupees(t.MonthlyRent), rupees(t.EBAmount), rupees(t.Due()), ordinal(a.cfg.RentDueDay), history)
}
