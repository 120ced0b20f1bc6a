package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/models"
)

// ClaimKind is what a free-text payment announcement amounts to
type ClaimKind int

const (
	ClaimNone ClaimKind = iota
	ClaimCashWithAmount
	ClaimCashNeedsAmount
	ClaimUPIWithTxn
	ClaimNeedsProof
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimCashWithAmount:
		return "cash_with_amount"
	case ClaimCashNeedsAmount:
		return "cash_needs_amount"
	case ClaimUPIWithTxn:
		return "upi_with_txn"
	case ClaimNeedsProof:
		return "needs_proof"
	default:
		return "none"
	}
}

// PaymentClaim is the result of the smart-payment heuristic
type PaymentClaim struct {
	Kind   ClaimKind
	Amount float64
	TxnID  string
	Tenant *models.Tenant // set by the classifier once the sender is found
}

var (
	amountPattern = regexp.MustCompile(`\d{3,}`)
	txnPattern    = regexp.MustCompile(`[A-Z0-9]{10,}`)
)

// DetectPaymentClaim applies the text rules only; it does not look the sender up.
//
//	"paid 7000 cash"   -> cash with amount 7000
//	"paid by cash"     -> cash, ask for the amount
//	"paid TRX12345678" -> UPI with transaction id
//	"paid"             -> none, left to the PAID command
//	"paid already"     -> ask for proof
func DetectPaymentClaim(body string) PaymentClaim {
	clean := strings.ToUpper(strings.TrimSpace(body))
	if !strings.Contains(clean, "PAID") {
		return PaymentClaim{}
	}

	if strings.Contains(clean, "CASH") {
		if m := amountPattern.FindString(body); m != "" {
			amount, _ := strconv.ParseFloat(m, 64)
			return PaymentClaim{Kind: ClaimCashWithAmount, Amount: amount}
		}
		return PaymentClaim{Kind: ClaimCashNeedsAmount}
	}

	if m := txnPattern.FindString(clean); m != "" {
		return PaymentClaim{Kind: ClaimUPIWithTxn, TxnID: m}
	}
	if clean == "PAID" {
		return PaymentClaim{}
	}
	return PaymentClaim{Kind: ClaimNeedsProof}
}
