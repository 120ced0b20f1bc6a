package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

type sharingOption struct {
	Label string
	Rent  float64
}

var sharingOptions = map[string]sharingOption{
	"1": {Label: "One Sharing", Rent: 9000},
	"2": {Label: "Two Sharing", Rent: 7000},
	"3": {Label: "Three Sharing", Rent: 6500},
	"4": {Label: "Four Sharing", Rent: 6500},
}

// continueDialog runs the current step of an open flow. Each message moves the
// flow forward by at most one step.
func (a *Assistant) continueDialog(ctx context.Context, msg models.InboundMessage, s *models.Session) {
	phone := msg.From
	input := strings.TrimSpace(msg.Body)

	if strings.EqualFold(input, CmdCancel) {
		a.sessions.Delete(phone)
		a.reply(ctx, phone, MsgDialogCancelled)
		return
	}

	logger.Debug("Continuing dialog", "phone", phone, "step", s.Step)

	switch s.Step {
	case models.StepName:
		a.askNext(ctx, s, models.StepName, input, models.FieldName, models.StepPhoneNumber, MsgAskPhone)
	case models.StepPhoneNumber:
		a.askNext(ctx, s, models.StepPhoneNumber, input, models.FieldPhone, models.StepRoom, MsgAskRoom)
	case models.StepRoom:
		a.askNext(ctx, s, models.StepRoom, input, models.FieldRoom, models.StepSharingType, MsgAskSharing)
	case models.StepSharingType:
		opt, ok := sharingOptions[input]
		if !ok {
			a.reply(ctx, phone, MsgInvalidSharing)
			return
		}
		s.Data[models.FieldSharingType] = opt.Label
		s.Data[models.FieldMonthlyRent] = formatAmount(opt.Rent)
		a.advance(s, models.StepAdvance)
		a.reply(ctx, phone, MsgAskAdvance)
	case models.StepAdvance:
		a.askNext(ctx, s, models.StepAdvance, input, models.FieldAdvance, models.StepAadhaarUpload, MsgAskAadhaar)
	case models.StepAadhaarUpload:
		a.finishRegistration(ctx, msg, s)
	case models.StepPaymentProof:
		a.handlePaymentProof(ctx, msg, s)
	case models.StepCashAmount:
		a.askNext(ctx, s, ValidateMoney, input, models.FieldAmount, models.StepCashDate, MsgAskCashDate)
	case models.StepCashDate:
		a.handleCashDate(ctx, phone, input, s)
	case models.StepHelpReason:
		a.sessions.Delete(phone)
		a.reply(ctx, phone, fmt.Sprintf("Thank you. Your request regarding *%s* has been forwarded to the owner. We will get back to you soon.", input))
		a.notifyOwner(ctx, fmt.Sprintf("🆘 *HELP REQUEST*\n\nTenant: %s\nCategory: %s\nTime: %s", phone, input, a.now().Format("02/01/2006 15:04")))
	case models.StepAdvanceChoice:
		a.sessions.Delete(phone)
		a.reply(ctx, phone, fmt.Sprintf("Your request for *%s* of advance has been sent to the owner for approval.", input))
		a.notifyOwner(ctx, fmt.Sprintf("💰 *ADVANCE REQUEST*\n\nTenant: %s\nAction: %s\nPlease approve/adjust in the records.", phone, input))
	case models.StepAnnounceMessage:
		a.sessions.Delete(phone)
		if _, err := a.billing.Broadcast(ctx, "📢 *ANNOUNCEMENT*\n\n"+input); err != nil {
			logger.Error("❌ Announcement failed", "error", err)
			a.reply(ctx, phone, MsgSomethingWrong)
			return
		}
		a.reply(ctx, phone, MsgAnnounceSent)
	default:
		logger.Warn("⚠️ Unknown dialog step, ignoring message", "phone", phone, "step", s.Step)
	}
}

// askNext validates input for kind, stores it under field and moves to next.
// A rejected answer re-prompts without advancing.
func (a *Assistant) askNext(ctx context.Context, s *models.Session, kind, input, field, next, prompt string) {
	if res := a.validator.Validate(ctx, kind, input); !res.IsValid {
		a.reply(ctx, s.Phone, rejection(kind, res))
		return
	}
	s.Data[field] = input
	a.advance(s, next)
	a.reply(ctx, s.Phone, prompt)
}

func (a *Assistant) advance(s *models.Session, next string) {
	s.Step = next
	a.sessions.Set(s.Phone, s)
}

func (a *Assistant) finishRegistration(ctx context.Context, msg models.InboundMessage, s *models.Session) {
	phone := msg.From
	if msg.Image == nil {
		a.reply(ctx, phone, MsgNeedAadhaar)
		return
	}

	a.recorder.Record(activity.Media(phone, activity.MediaAadhaar, msg.Image))
	defer a.sessions.Delete(phone)

	tenantPhone := s.Data[models.FieldPhone]
	if tenantPhone == "" {
		tenantPhone = phone
	}
	rent, _ := parseAmount(s.Data[models.FieldMonthlyRent])
	advanceText := s.Data[models.FieldAdvance]
	advance, _ := parseAmount(advanceText)

	t, err := a.store.CreateTenant(&models.TenantRegistration{
		Name:         s.Data[models.FieldName],
		Phone:        tenantPhone,
		Room:         s.Data[models.FieldRoom],
		SharingType:  s.Data[models.FieldSharingType],
		MonthlyRent:  rent,
		Advance:      advance,
		AadhaarImage: msg.Image.ID,
	})
	if err != nil {
		logger.Error("❌ Registration failed", "phone", phone, "error", err)
		a.reply(ctx, phone, MsgRegisterFailed)
		return
	}
	logger.Info("✅ Tenant registered", "name", t.Name, "room", t.Room, "phone", t.Phone)

	a.sendAsset(ctx, phone, bannerPayment, "")
	a.reply(ctx, phone, registrationDoneMessage(t.Room, rent, advanceText, t.JoinDate.Format("02/01/2006")))
	a.notifyOwner(ctx, fmt.Sprintf("🔔 *New Tenant Registered*\n\nName: %s\nPhone: %s\nRoom: %s\nRent: %s\nAdvance: ₹%s\nAadhaar Media ID: %s",
		t.Name, tenantPhone, t.Room, rupees(rent), advanceText, msg.Image.ID))
}

func (a *Assistant) handlePaymentProof(ctx context.Context, msg models.InboundMessage, s *models.Session) {
	phone := msg.From
	input := strings.TrimSpace(msg.Body)

	if msg.Image == nil {
		if res := a.validator.Validate(ctx, ValidateTransID, input); !res.IsValid {
			a.reply(ctx, phone, rejection(ValidateTransID, res))
			return
		}
	}
	defer a.sessions.Delete(phone)

	t := a.requireTenant(ctx, phone, s.ContextName)
	if t == nil {
		return
	}

	txn := input
	proof := ""
	if msg.Image != nil {
		proof = msg.Image.ID
		if txn == "" {
			txn = "IMAGE_UPLOAD"
		}
		a.recorder.Record(activity.Media(phone, activity.MediaPaymentProof, msg.Image))
	}

	updated, err := a.billing.RecordPayment(t, t.TotalAmount, models.PaymentModeUPI, txn, a.billing.today(), proof)
	if err != nil {
		logger.Error("❌ Failed to record payment", "phone", phone, "error", err)
		a.reply(ctx, phone, MsgSomethingWrong)
		return
	}

	a.sendAsset(ctx, phone, bannerPayment, "")
	a.reply(ctx, phone, MsgPaymentThanks)

	proofID := "None"
	if proof != "" {
		proofID = proof
	}
	a.notifyOwner(ctx, fmt.Sprintf("💰 *Payment Notification*\n\nTenant: %s\nRoom: %s\nMode: UPI\nTransaction ID: %s\nProof ID: %s\nStatus: PAID",
		updated.Name, updated.Room, txn, proofID))
}

func (a *Assistant) handleCashDate(ctx context.Context, phone, input string, s *models.Session) {
	if res := a.validator.Validate(ctx, ValidateDate, input); !res.IsValid {
		a.reply(ctx, phone, rejection(ValidateDate, res))
		return
	}
	defer a.sessions.Delete(phone)

	t := a.requireTenant(ctx, phone, s.ContextName)
	if t == nil {
		return
	}

	amountText := s.Data[models.FieldAmount]
	amount, ok := parseAmount(amountText)
	if !ok {
		amount = t.TotalAmount
	}
	updated, err := a.billing.RecordPayment(t, amount, models.PaymentModeCash, "CASH-"+formatAmount(amount), input, "")
	if err != nil {
		logger.Error("❌ Failed to record cash payment", "phone", phone, "error", err)
		a.reply(ctx, phone, MsgSomethingWrong)
		return
	}

	a.reply(ctx, phone, fmt.Sprintf("✅ Cash payment of %s recorded.", rupees(amount)))
	a.notifyOwner(ctx, fmt.Sprintf("💵 *Cash Payment Notification*\n\nTenant: %s\nAmount: %s\nDate: %s\nStatus: PAID",
		updated.Name, rupees(amount), input))
}

// handleSmartPayment acts on a payment announced in free text
func (a *Assistant) handleSmartPayment(ctx context.Context, msg models.InboundMessage, cls Classification) {
	phone := msg.From
	claim := cls.Claim
	t := claim.Tenant

	switch claim.Kind {
	case ClaimCashWithAmount:
		updated, err := a.billing.RecordPayment(t, claim.Amount, models.PaymentModeCash, "CASH-PMT", a.billing.today(), "")
		if err != nil {
			logger.Error("❌ Failed to record cash payment", "phone", phone, "error", err)
			a.reply(ctx, phone, MsgSomethingWrong)
			return
		}
		a.reply(ctx, phone, fmt.Sprintf("✅ *Payment Recorded!*\n\nThank you %s. I have recorded %s as cash payment. Your status is now UPDATED. 🙏", updated.Name, rupees(claim.Amount)))
		a.notifyOwner(ctx, fmt.Sprintf("💵 *Cash Payment Confirmed*\n\nTenant: %s\nAmount: %s\nRoom: %s\nStatus: PAID", updated.Name, rupees(claim.Amount), updated.Room))

	case ClaimCashNeedsAmount:
		a.startDialog(phone, models.StepCashAmount, cls.Session)
		a.reply(ctx, phone, MsgSmartAskAmount)

	case ClaimUPIWithTxn:
		updated, err := a.billing.RecordPayment(t, t.TotalAmount, models.PaymentModeUPI, claim.TxnID, a.billing.today(), "")
		if err != nil {
			logger.Error("❌ Failed to record UPI payment", "phone", phone, "error", err)
			a.reply(ctx, phone, MsgSomethingWrong)
			return
		}
		a.reply(ctx, phone, fmt.Sprintf("✅ *UPI Payment Verified!*\n\nThank you for sharing the Transaction ID: *%s*. Your record has been updated successfully! ✨", claim.TxnID))
		a.notifyOwner(ctx, fmt.Sprintf("💰 *UPI Payment Confirmed*\n\nTenant: %s\nTRX ID: %s\nRoom: %s\nStatus: PAID", updated.Name, claim.TxnID, updated.Room))

	case ClaimNeedsProof:
		a.startDialog(phone, models.StepPaymentProof, cls.Session)
		a.reply(ctx, phone, MsgSmartAskProof)
	}
}
