package fees

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/schoolerp/backend/internal/domain/shared"
)

// PaymentMode represents how a payment was made
type PaymentMode string

const (
	PaymentModeCash       PaymentMode = "CASH"
	PaymentModeUPI        PaymentMode = "UPI"
	PaymentModeCard       PaymentMode = "CARD"
	PaymentModeNetBanking PaymentMode = "NET_BANKING"
	PaymentModeCheque     PaymentMode = "CHEQUE"
	PaymentModeDraft      PaymentMode = "DRAFT"
	PaymentModeWallet     PaymentMode = "WALLET"
	PaymentModeOther      PaymentMode = "OTHER"
	// PaymentModeGateway marks transactions collected through the online
	// payment gateway rather than by a clerk.
	PaymentModeGateway PaymentMode = "GATEWAY"
)

// IsValid checks if the mode is a valid PaymentMode
func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentModeCash, PaymentModeUPI, PaymentModeCard, PaymentModeNetBanking,
		PaymentModeCheque, PaymentModeDraft, PaymentModeWallet, PaymentModeOther,
		PaymentModeGateway:
		return true
	}
	return false
}

// String returns the string representation of PaymentMode
func (m PaymentMode) String() string {
	return string(m)
}

// RequiresReference returns true for modes that carry an external reference id
func (m PaymentMode) RequiresReference() bool {
	switch m {
	case PaymentModeUPI, PaymentModeCard, PaymentModeNetBanking, PaymentModeWallet:
		return true
	}
	return false
}

// RequiresInstrument returns true for paper instruments that carry a number and bank
func (m PaymentMode) RequiresInstrument() bool {
	return m == PaymentModeCheque || m == PaymentModeDraft
}

// PaymentDetails is a tagged union of mode-specific payment fields.
// Mode is the discriminator; Validate enforces exactly the fields each
// mode requires so a half-filled record can never be persisted.
// Stored as JSONB within the PaymentTransaction aggregate.
type PaymentDetails struct {
	Mode PaymentMode `json:"mode"`
	// ReferenceID is the external transaction reference (UPI/Card/NetBanking/Wallet)
	ReferenceID string `json:"reference_id,omitempty"`
	// ChequeNumber and BankName identify a paper instrument (Cheque/Draft)
	ChequeNumber string `json:"cheque_number,omitempty"`
	BankName     string `json:"bank_name,omitempty"`
	// WalletName names the wallet provider (Wallet)
	WalletName string `json:"wallet_name,omitempty"`
	// Note carries free-form detail for Other
	Note string `json:"note,omitempty"`
}

// NewCashDetails creates payment details for a cash payment
func NewCashDetails() PaymentDetails {
	return PaymentDetails{Mode: PaymentModeCash}
}

// NewReferenceDetails creates payment details for UPI/Card/NetBanking payments
func NewReferenceDetails(mode PaymentMode, referenceID string) PaymentDetails {
	return PaymentDetails{Mode: mode, ReferenceID: referenceID}
}

// NewInstrumentDetails creates payment details for Cheque/Draft payments
func NewInstrumentDetails(mode PaymentMode, chequeNumber, bankName string) PaymentDetails {
	return PaymentDetails{Mode: mode, ChequeNumber: chequeNumber, BankName: bankName}
}

// NewWalletDetails creates payment details for a wallet payment
func NewWalletDetails(walletName, referenceID string) PaymentDetails {
	return PaymentDetails{Mode: PaymentModeWallet, WalletName: walletName, ReferenceID: referenceID}
}

// NewGatewayDetails creates payment details for a gateway-collected payment
func NewGatewayDetails(referenceID string) PaymentDetails {
	return PaymentDetails{Mode: PaymentModeGateway, ReferenceID: referenceID}
}

// Validate enforces the mode-specific required fields
func (d PaymentDetails) Validate() error {
	if !d.Mode.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_MODE", "Payment mode is not valid")
	}

	switch d.Mode {
	case PaymentModeCash, PaymentModeOther, PaymentModeGateway:
		return nil
	case PaymentModeUPI, PaymentModeCard, PaymentModeNetBanking:
		if d.ReferenceID == "" {
			return shared.NewDomainError("MISSING_PAYMENT_FIELD", "Transaction reference is required for "+d.Mode.String()+" payments")
		}
	case PaymentModeCheque, PaymentModeDraft:
		if d.ChequeNumber == "" {
			return shared.NewDomainError("MISSING_PAYMENT_FIELD", "Cheque number is required for "+d.Mode.String()+" payments")
		}
		if d.BankName == "" {
			return shared.NewDomainError("MISSING_PAYMENT_FIELD", "Bank name is required for "+d.Mode.String()+" payments")
		}
	case PaymentModeWallet:
		if d.WalletName == "" {
			return shared.NewDomainError("MISSING_PAYMENT_FIELD", "Wallet name is required for wallet payments")
		}
		if d.ReferenceID == "" {
			return shared.NewDomainError("MISSING_PAYMENT_FIELD", "Transaction reference is required for wallet payments")
		}
	}
	return nil
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d PaymentDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *PaymentDetails) Scan(value interface{}) error {
	if value == nil {
		*d = PaymentDetails{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentDetails: unsupported type")
	}

	if len(bytes) == 0 {
		*d = PaymentDetails{}
		return nil
	}

	return json.Unmarshal(bytes, d)
}
