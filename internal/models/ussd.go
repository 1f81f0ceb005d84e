package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UssdStatus string

const (
	UssdCreated     UssdStatus = "CREATED"
	UssdSubmitted   UssdStatus = "SUBMITTED"
	UssdUnderReview UssdStatus = "UNDER_REVIEW"
	UssdApproved    UssdStatus = "APPROVED"
	UssdRejected    UssdStatus = "REJECTED"
	UssdDisbursed   UssdStatus = "DISBURSED"
	UssdCancelled   UssdStatus = "CANCELLED"
	UssdExpired     UssdStatus = "EXPIRED"
)

type PayoutMethod string

const (
	PayoutMobileMoney PayoutMethod = "MOBILE_MONEY"
	PayoutCash        PayoutMethod = "CASH"
	PayoutBank        PayoutMethod = "BANK"
)

// UssdLoanApplication arrives pre-created from the USSD channel.
type UssdLoanApplication struct {
	ID              int64           `json:"id"`
	TenantID        string          `json:"tenantId"`
	FirstName       string          `json:"firstname"`
	LastName        string          `json:"lastname"`
	PhoneNumber     string          `json:"phoneNumber"`
	NationalID      string          `json:"nationalId"`
	LoanProductID   int64           `json:"loanProductId"`
	ProductName     string          `json:"productName"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	TermMonths      int             `json:"termMonths"`

	PayoutMethod        PayoutMethod `json:"payoutMethod"`
	MobileMoneyProvider *string      `json:"mobileMoneyProvider,omitempty"`
	MobileMoneyNumber   *string      `json:"mobileMoneyNumber,omitempty"`
	BankName            *string      `json:"bankName,omitempty"`
	BankAccountNumber   *string      `json:"bankAccountNumber,omitempty"`
	BankBranch          *string      `json:"bankBranch,omitempty"`
	CashPickupLocation  *string      `json:"cashPickupLocation,omitempty"`

	Status         UssdStatus `json:"status"`
	Notes          string     `json:"notes"`
	LeadID         *string    `json:"leadId,omitempty"`
	FineractLoanID *int64     `json:"fineractLoanId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type UssdFilter struct {
	Status UssdStatus
	Phone  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type UssdStatusRequest struct {
	Status     UssdStatus `json:"status" binding:"required"`
	Notes      string     `json:"notes"`
	CreateLead bool       `json:"createLead"`
	SubmitLoan bool       `json:"submitLoan"`
}

type SagaState string

const (
	SagaStarted       SagaState = "STARTED"
	SagaLeadCreated   SagaState = "LEAD_CREATED"
	SagaLoanSubmitted SagaState = "LOAN_SUBMITTED"
	SagaCompleted     SagaState = "COMPLETED"
	SagaCompensated   SagaState = "COMPENSATED"
	SagaFailed        SagaState = "FAILED"
)

// SubmissionSaga records progress of USSD -> lead -> loan submission.
type SubmissionSaga struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	ApplicationID  int64     `json:"applicationId"`
	State          SagaState `json:"state"`
	LeadID         *string   `json:"leadId,omitempty"`
	LeadCreated    bool      `json:"leadCreated"`
	FineractLoanID *int64    `json:"fineractLoanId,omitempty"`
	LastError      *string   `json:"lastError,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type UssdUpdateResult struct {
	Application *UssdLoanApplication `json:"application"`
	Saga        *SubmissionSaga      `json:"saga,omitempty"`
}
