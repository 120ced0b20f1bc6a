package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/invoice"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/payments"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// ErrNoActiveTenants is returned when a room has nobody to bill
var ErrNoActiveTenants = errors.New("no active tenants in room")

// Notification types written to the activity log
const (
	NotifyBill          = "BILL"
	NotifyReminder      = "REMINDER"
	NotifyFinalReminder = "FINAL_REMINDER"
	NotifyInvoice       = "INVOICE"
	NotifyReceipt       = "RECEIPT"
	NotifyEBUpdate      = "EB_UPDATE"
	NotifyBroadcast     = "BROADCAST"
	NotifyDashboardView = "DASHBOARD_VIEW"
)

// ReminderKind selects the reminder wording
type ReminderKind int

const (
	// ReminderManual is the owner's SEND REMINDER command
	ReminderManual ReminderKind = iota
	// ReminderFriendly goes out a couple of days before the due date
	ReminderFriendly
	// ReminderFinal goes out on the due date
	ReminderFinal
)

// InvoiceRenderer draws bill images
type InvoiceRenderer interface {
	Render(b invoice.Bill) (string, error)
}

// PaymentLinker creates online payment links
type PaymentLinker interface {
	Configured() bool
	CreateLink(ctx context.Context, req payments.LinkRequest) (string, error)
}

// BillingService sends bills, reminders and receipts. It is shared by the
// chat commands, the admin API and the scheduled jobs.
type BillingService struct {
	cfg       *config.Config
	store     storage.Store
	messenger Messenger
	renderer  InvoiceRenderer // may be nil
	links     PaymentLinker   // may be nil
	recorder  activity.Recorder
	now       func() time.Time
}

func NewBillingService(cfg *config.Config, store storage.Store, messenger Messenger, renderer InvoiceRenderer, links PaymentLinker, recorder activity.Recorder) *BillingService {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &BillingService{
		cfg:       cfg,
		store:     store,
		messenger: messenger,
		renderer:  renderer,
		links:     links,
		recorder:  recorder,
		now:       time.Now,
	}
}

// PaymentLink returns a Razorpay link for the tenant's due amount, or "" when
// links are unavailable
func (b *BillingService) PaymentLink(ctx context.Context, t *models.Tenant, amount float64) string {
	if b.links == nil || !b.links.Configured() || amount <= 0 {
		return ""
	}
	link, err := b.links.CreateLink(ctx, payments.LinkRequest{
		Amount: amount,
		Name:   t.Name,
		Phone:  t.Phone,
		Room:   t.Room,
	})
	if err != nil {
		logger.Warn("⚠️ Razorpay link generation failed", "tenant", t.Name, "error", err)
		return ""
	}
	return link
}

func (b *BillingService) upiLink(amount float64) string {
	return UPILink(b.cfg.UPIID, b.cfg.BusinessName, amount)
}

func (b *BillingService) dueDate() string {
	return fmt.Sprintf("%s %s", ordinal(b.cfg.RentDueDay), b.now().Format("January"))
}

func (b *BillingService) renderBill(t *models.Tenant, status string) string {
	if b.renderer == nil {
		return ""
	}
	path, err := b.renderer.Render(invoice.Bill{
		BusinessName: b.cfg.BusinessName,
		TenantName:   t.Name,
		Phone:        t.Phone,
		Room:         t.Room,
		Location:     t.LocationOrDefault(),
		Period:       models.MonthYearOf(b.now()),
		Rent:         t.MonthlyRent,
		EB:           t.EBAmount,
		Total:        t.Due(),
		DueDate:      b.dueDate(),
		UPIID:        b.cfg.UPIID,
		Status:       status,
		IssuedAt:     b.now(),
	})
	if err != nil {
		logger.Warn("⚠️ Invoice rendering failed", "tenant", t.Name, "error", err)
		return ""
	}
	return path
}

// sendWithInvoice sends the caption on the invoice image, or as text when no image could be drawn
func (b *BillingService) sendWithInvoice(ctx context.Context, t *models.Tenant, caption string) {
	if path := b.renderBill(t, "PENDING"); path != "" {
		b.messenger.SendMedia(ctx, t.Phone, path, caption)
		return
	}
	b.messenger.SendText(ctx, t.Phone, caption)
}

// NotifyTenant sends one tenant the current invoice with payment options
func (b *BillingService) NotifyTenant(ctx context.Context, t *models.Tenant) {
	total := t.Due()
	month := b.now().Format("January")

	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 *Invoice & Payment Options*\n\nHi %s,\nHere is your bill for *%s*.\n\n🏠 Rent: %s\n⚡ EB: %s\n💰 *Total Due: %s*\n\n📅 *Due Date:* %s",
		t.Name, month, rupees(t.MonthlyRent), rupees(t.EBAmount), rupees(total), b.dueDate())
	if link := b.PaymentLink(ctx, t, total); link != "" {
		fmt.Fprintf(&sb, "\n\n💳 *Pay Online (Card/UPI/Netbanking):*\n%s", link)
	}
	fmt.Fprintf(&sb, "\n\n👇 *Quick UPI Pay:*\n%s", b.upiLink(total))

	b.sendWithInvoice(ctx, t, sb.String())
	b.recorder.Record(activity.Notification(t.Phone, t.Name, NotifyInvoice, fmt.Sprintf("Invoice for %s: %s", month, rupees(total))))
}

func activeTenants(store storage.Store) ([]*models.Tenant, error) {
	all, err := store.GetAllTenants()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Tenant, 0, len(all))
	for _, t := range all {
		if t.IsVacated() || t.Phone == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// SendBills sends every non-vacated tenant this month's bill and returns how many were sent
func (b *BillingService) SendBills(ctx context.Context) (int, error) {
	tenants, err := activeTenants(b.store)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	month := b.now().Format("January")
	sent := 0
	for _, t := range tenants {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		total := t.Due()

		var sb strings.Builder
		fmt.Fprintf(&sb, "🔔 *Bill Reminder*\n\nHi %s,\nHere is your pending invoice for *%s*.\nTotal Due: *%s*\n\n📅 *Due Date: %s*",
			t.Name, month, rupees(total), b.dueDate())
		if link := b.PaymentLink(ctx, t, total); link != "" {
			fmt.Fprintf(&sb, "\n\n💳 *Pay Online:* %s", link)
		}
		fmt.Fprintf(&sb, "\n\n👇 *Pay via UPI:*\n%s", b.upiLink(total))

		b.sendWithInvoice(ctx, t, sb.String())
		b.recorder.Record(activity.Notification(t.Phone, t.Name, NotifyBill, fmt.Sprintf("Bill for %s: %s", month, rupees(total))))
		sent++
	}
	logger.Info("📨 Bills sent", "count", sent)
	return sent, nil
}

// SendReminders messages every tenant who is neither paid nor vacated
func (b *BillingService) SendReminders(ctx context.Context, kind ReminderKind) (int, error) {
	tenants, err := activeTenants(b.store)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	due := ordinal(b.cfg.RentDueDay)
	sent := 0
	for _, t := range tenants {
		if t.Status == models.TenantStatusPaid {
			continue
		}
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		total := t.TotalAmount

		var msg, notifyType string
		switch kind {
		case ReminderManual:
			notifyType = NotifyReminder
			msg = fmt.Sprintf("🔔 *PAYMENT REMINDER*\n\nHi %s, this is a friendly reminder to pay your dues.\nTotal: %s\n\nType RENT for payment options.", t.Name, rupees(total))
		case ReminderFriendly:
			notifyType = NotifyReminder
			msg = fmt.Sprintf("🔔 *Friendly Reminder*\n\nHi %s, your rent payment of *%s* is due by the %s.", t.Name, rupees(total), due)
			if link := b.PaymentLink(ctx, t, total); link != "" {
				msg += "\n\n💳 *Pay Online Now:* " + link
			}
			msg += "\n\nIf you have already paid, please ignore this or send the transaction ID."
		case ReminderFinal:
			notifyType = NotifyFinalReminder
			msg = fmt.Sprintf("⚠️ *FINAL REMINDER*\n\nHi %s, today is the last date to pay your rent of *%s* without late fees.", t.Name, rupees(total))
			if link := b.PaymentLink(ctx, t, total); link != "" {
				msg += "\n\n💳 *Pay Online Now:* " + link
			}
			msg += "\n\nType *PAID* once you have paid."
		}

		b.messenger.SendText(ctx, t.Phone, msg)
		b.recorder.Record(activity.Notification(t.Phone, t.Name, notifyType, msg))
		sent++
	}
	logger.Info("🔔 Reminders sent", "kind", kind, "count", sent)
	return sent, nil
}

// Broadcast sends text to every non-vacated tenant
func (b *BillingService) Broadcast(ctx context.Context, text string) (int, error) {
	tenants, err := activeTenants(b.store)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}
	for _, t := range tenants {
		b.messenger.SendText(ctx, t.Phone, text)
		b.recorder.Record(activity.Notification(t.Phone, t.Name, NotifyBroadcast, text))
	}
	return len(tenants), nil
}

// EBSplit is the outcome of dividing a room's electricity bill
type EBSplit struct {
	Room      string   `json:"room"`
	Units     float64  `json:"units"`
	RoomTotal float64  `json:"room_total"`
	PerHead   float64  `json:"per_head"`
	Tenants   []string `json:"tenants"`
}

// SplitEB charges units × EB rate to a room, split evenly (rounded up) between
// its non-vacated occupants, and messages each of them
func (b *BillingService) SplitEB(ctx context.Context, room string, units float64) (*EBSplit, error) {
	if units < 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return nil, fmt.Errorf("invalid units %v", units)
	}
	all, err := b.store.GetAllTenants()
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	roomID := strings.ToUpper(strings.TrimSpace(room))
	var occupants []*models.Tenant
	for _, t := range all {
		if !t.IsVacated() && strings.EqualFold(strings.TrimSpace(t.Room), roomID) {
			occupants = append(occupants, t)
		}
	}
	if len(occupants) == 0 {
		return nil, ErrNoActiveTenants
	}

	roomTotal := units * b.cfg.EBUnitRate
	perHead := math.Ceil(roomTotal / float64(len(occupants)))

	split := &EBSplit{Room: roomID, Units: units, RoomTotal: roomTotal, PerHead: perHead}
	for _, t := range occupants {
		total := t.MonthlyRent + perHead
		eb := perHead
		if err := b.store.UpdateTenantByID(t.ID, models.TenantUpdate{EBAmount: &eb, TotalAmount: &total}); err != nil {
			logger.Error("❌ Failed to update EB", "tenant", t.Name, "error", err)
			continue
		}
		msg := fmt.Sprintf("⚡ *Electricity Bill Updated*\n\nHi %s,\nEB for Room %s has been calculated:\n\nRent: %s\nEB (Split): %s\n*Total: %s*\n\n👇 *Pay via UPI:*\n%s\n\nType *PAID* after payment.",
			t.Name, roomID, rupees(t.MonthlyRent), rupees(perHead), rupees(total), b.upiLink(total))
		b.messenger.SendText(ctx, t.Phone, msg)
		b.recorder.Record(activity.Notification(t.Phone, t.Name, NotifyEBUpdate, fmt.Sprintf("EB %s, total %s", rupees(perHead), rupees(total))))
		split.Tenants = append(split.Tenants, t.Name)
	}
	return split, nil
}

// RecordPayment marks a tenant paid, appends the history row and returns the updated tenant
func (b *BillingService) RecordPayment(t *models.Tenant, amount float64, mode, txnID, paidDate, proof string) (*models.Tenant, error) {
	update := models.MarkPaid(mode, txnID, paidDate)
	if proof != "" {
		update.PaymentProof = &proof
	}
	if err := b.store.UpdateTenantByID(t.ID, update); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	updated, err := b.store.GetTenantByID(t.ID)
	if err != nil {
		return nil, fmt.Errorf("reload tenant: %w", err)
	}
	if err := b.store.AppendPaymentHistory(updated, amount, mode, txnID); err != nil {
		// the status change already happened; history is best-effort
		logger.Warn("⚠️ Failed to append payment history", "tenant", t.Name, "error", err)
	}
	return updated, nil
}

func (b *BillingService) today() string {
	return b.now().Format("02/01/2006")
}

// MarkPaid records a payment entered by the owner, sends the receipt and tells the owner
func (b *BillingService) MarkPaid(ctx context.Context, phone, name string, amount float64, mode string) (*models.Tenant, error) {
	t, err := b.store.GetTenantByPhone(phone, name)
	if err != nil {
		return nil, err
	}
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if mode == "" {
		mode = models.PaymentModeCash
	}
	if amount <= 0 {
		amount = t.Due()
	}
	txn := fmt.Sprintf("%s-%04d", mode, b.now().UnixMilli()%10000)

	updated, err := b.RecordPayment(t, amount, mode, txn, b.today(), "")
	if err != nil {
		return nil, err
	}

	b.messenger.SendText(ctx, updated.Phone, fmt.Sprintf("✅ *Payment Received*\n\nHi %s,\nWe have received your payment of %s via %s.\n\n📎 *Receipt:* Attached below.\n\nThank you for paying on time!",
		updated.Name, rupees(amount), mode))
	if path := b.renderBill(updated, models.TenantStatusPaid); path != "" {
		b.messenger.SendMedia(ctx, updated.Phone, path, "Here is your receipt")
	}
	b.recorder.Record(activity.Notification(updated.Phone, updated.Name, NotifyReceipt, fmt.Sprintf("%s via %s", rupees(amount), mode)))

	b.notifyOwner(ctx, fmt.Sprintf("💰 *Money In*\n\nTenant: %s (%s)\nAmount: %s\nMode: %s\nStatus: Marked PAID",
		updated.Name, updated.Room, rupees(amount), mode))
	return updated, nil
}

// RecordLinkPayment applies a paid Razorpay link
func (b *BillingService) RecordLinkPayment(ctx context.Context, p payments.LinkPayment) (*models.Tenant, error) {
	t, err := b.store.GetTenantByPhone(p.Phone, p.Name)
	if errors.Is(err, storage.ErrTenantNotFound) && p.Name != "" {
		t, err = b.store.GetTenantByPhone(p.Phone, "")
	}
	if err != nil {
		return nil, err
	}

	txn := p.PaymentID
	if txn == "" {
		txn = p.LinkID
	}
	updated, err := b.RecordPayment(t, p.Amount, models.PaymentModeOnline, txn, b.today(), "")
	if err != nil {
		return nil, err
	}

	b.messenger.SendText(ctx, updated.Phone, fmt.Sprintf("✅ *Online Payment Received!*\n\nThank you %s. We received %s via Razorpay.\nReference: *%s*", updated.Name, rupees(p.Amount), txn))
	b.notifyOwner(ctx, fmt.Sprintf("💳 *Online Payment Confirmed*\n\nTenant: %s\nAmount: %s\nRoom: %s\nReference: %s\nStatus: PAID",
		updated.Name, rupees(p.Amount), updated.Room, txn))
	return updated, nil
}

func (b *BillingService) notifyOwner(ctx context.Context, text string) {
	if b.cfg.OwnerPhone == "" {
		return
	}
	b.messenger.SendText(ctx, b.cfg.OwnerPhone, text)
}

// Invoice renders the tenant's current bill and returns the file path, or ""
// when no image could be drawn
func (b *BillingService) Invoice(t *models.Tenant) string {
	status := "PENDING"
	if t.Status == models.TenantStatusPaid {
		status = models.TenantStatusPaid
	}
	return b.renderBill(t, status)
}

// Welcome sends the house rules to a tenant added by the owner
func (b *BillingService) Welcome(ctx context.Context, t *models.Tenant) {
	b.messenger.SendText(ctx, t.Phone, fmt.Sprintf("🏠 *%s House Rules*\n\n1. *Gate Timings:* 10:30 PM.\n2. *Payments:* Before %s of every month.\n3. *Discipline:* maintain cleanliness.\n\nWelcome %s! Type *HI* to see your dashboard!",
		b.cfg.BusinessName, ordinal(b.cfg.RentDueDay), t.Name))
}
