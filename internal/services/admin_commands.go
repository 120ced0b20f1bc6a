package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// handleOwnerCommand runs the owner's fixed keywords. The classifier has
// already checked the sender is the owner.
func (a *Assistant) handleOwnerCommand(ctx context.Context, phone, keyword string, current *models.Session) {
	switch keyword {
	case CmdTotalTenants:
		tenants, err := a.store.GetAllTenants()
		if err != nil {
			a.ownerFailure(ctx, phone, keyword, err)
			return
		}
		a.reply(ctx, phone, fmt.Sprintf("TOTAL TENANTS: %d", len(tenants)))

	case CmdPaidList:
		a.sendStatusList(ctx, phone, models.TenantStatusPaid)
	case CmdPendingList:
		a.sendStatusList(ctx, phone, models.TenantStatusPending)

	case CmdDashboard:
		tenants, err := a.store.GetAllTenants()
		if err != nil {
			a.ownerFailure(ctx, phone, keyword, err)
			return
		}
		a.reply(ctx, phone, ownerDashboard(tenants))

	case CmdSendBill:
		tenants, err := activeTenants(a.store)
		if err != nil {
			a.ownerFailure(ctx, phone, keyword, err)
			return
		}
		a.reply(ctx, phone, fmt.Sprintf("⏳ Sending bills to %d tenants...", len(tenants)))
		if _, err := a.billing.SendBills(ctx); err != nil {
			a.ownerFailure(ctx, phone, keyword, err)
			return
		}
		a.reply(ctx, phone, "✅ Bills sent to all tenants.")

	case CmdSendReminder:
		n, err := a.billing.SendReminders(ctx, ReminderManual)
		if err != nil {
			a.ownerFailure(ctx, phone, keyword, err)
			return
		}
		a.reply(ctx, phone, fmt.Sprintf("✅ Reminders sent to %d tenants.", n))

	case CmdAnnounce:
		a.startDialog(phone, models.StepAnnounceMessage, current)
		a.reply(ctx, phone, MsgAnnouncePrompt)
	}
}

func (a *Assistant) ownerFailure(ctx context.Context, phone, keyword string, err error) {
	logger.Error("❌ Owner command failed", "command", keyword, "error", err)
	a.reply(ctx, phone, MsgSomethingWrong)
}

func (a *Assistant) sendStatusList(ctx context.Context, phone, status string) {
	tenants, err := a.store.GetAllTenants()
	if err != nil {
		a.ownerFailure(ctx, phone, status+" LIST", err)
		return
	}
	var lines []string
	for _, t := range tenants {
		if t.Status == status {
			lines = append(lines, fmt.Sprintf("- %s (%s)", t.Name, t.Room))
		}
	}
	text := "None"
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	a.reply(ctx, phone, fmt.Sprintf("%s LIST:\n%s", status, text))
}

// ownerDashboard counts ACTIVE|PAID as strength and PENDING|ACTIVE as pending;
// revenue is the sum of paid tenants' totals
func ownerDashboard(tenants []*models.Tenant) string {
	var strength, paid, pending int
	var revenue float64
	for _, t := range tenants {
		switch t.Status {
		case models.TenantStatusPaid:
			strength++
			paid++
			revenue += t.TotalAmount
		case models.TenantStatusActive:
			strength++
			pending++
		case models.TenantStatusPending:
			pending++
		}
	}
	return fmt.Sprintf("📊 *STAYFLOW DASHBOARD*\n\nTotal Strength: %d\nPaid: %d\nPending: %d\nTotal Revenue: %s\n\nType PAID LIST or PENDING LIST for details.",
		strength, paid, pending, rupees(revenue))
}

// handleAdminCommand runs SET EB, VACATE <room> and MARK CASH for the owner
func (a *Assistant) handleAdminCommand(ctx context.Context, phone, keyword string, args []string) {
	switch keyword {
	case CmdSetEB:
		if len(args) != 2 {
			a.reply(ctx, phone, MsgSetEBUsage)
			return
		}
		units, err := strconv.ParseFloat(args[1], 64)
		if err != nil || math.IsInf(units, 0) || math.IsNaN(units) {
			a.reply(ctx, phone, MsgBadUnits)
			return
		}
		a.SetEB(ctx, phone, args[0], units)

	case CmdVacateRoom:
		a.vacateRoom(ctx, phone, args[0])

	case CmdMarkCash:
		// "MARK CASH 98765 43210" carries the number split by spaces
		a.markCash(ctx, phone, strings.Join(args, ""))
	}
}

// SetEB splits a room's electricity units and reports the result to replyTo
func (a *Assistant) SetEB(ctx context.Context, replyTo, room string, units float64) {
	split, err := a.billing.SplitEB(ctx, room, units)
	if errors.Is(err, ErrNoActiveTenants) {
		a.reply(ctx, replyTo, fmt.Sprintf("❌ No active tenants found in room %s", strings.ToUpper(room)))
		return
	}
	if err != nil {
		a.ownerFailure(ctx, replyTo, CmdSetEB, err)
		return
	}
	a.reply(ctx, replyTo, fmt.Sprintf("✅ *EB Updated for Room %s*\n\nTotal Room bill: %s\nSplit per head (%d): %s\n\nTenants updated: %s",
		split.Room, rupees(split.RoomTotal), len(split.Tenants), rupees(split.PerHead), strings.Join(split.Tenants, ", ")))
}

func (a *Assistant) vacateRoom(ctx context.Context, phone, room string) {
	tenants, err := a.store.GetAllTenants()
	if err != nil {
		a.ownerFailure(ctx, phone, CmdVacateRoom, err)
		return
	}
	vacated := 0
	for _, t := range tenants {
		if !strings.EqualFold(strings.TrimSpace(t.Room), room) || t.IsVacated() {
			continue
		}
		if err := a.store.UpdateTenantByID(t.ID, models.StatusUpdate(models.TenantStatusVacated)); err != nil {
			logger.Error("❌ Failed to vacate tenant", "tenant", t.Name, "error", err)
			continue
		}
		vacated++
	}
	logger.Info("🚪 Room vacated", "room", room, "tenants", vacated)
	a.reply(ctx, phone, fmt.Sprintf("✅ Room %s marked as VACATED. All tenants inactive.", room))
}

func (a *Assistant) markCash(ctx context.Context, phone, tenantPhone string) {
	t, err := a.store.GetTenantByPhone(tenantPhone, "")
	if errors.Is(err, storage.ErrTenantNotFound) {
		a.reply(ctx, phone, fmt.Sprintf("❌ Tenant with phone %s not found.", tenantPhone))
		return
	}
	if err != nil {
		a.ownerFailure(ctx, phone, CmdMarkCash, err)
		return
	}

	if _, err := a.billing.RecordPayment(t, t.TotalAmount, models.PaymentModeCash, "CASH-OWNER", a.billing.today(), ""); err != nil {
		a.ownerFailure(ctx, phone, CmdMarkCash, err)
		return
	}
	a.reply(ctx, phone, fmt.Sprintf("✅ Marked %s as PAID by Cash.", tenantPhone))
	a.reply(ctx, t.Phone, "✅ Your payment has been recorded as CASH by the owner. Thank you!")
}
