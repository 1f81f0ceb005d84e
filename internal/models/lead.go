package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeadStatus string

const (
	LeadProspect    LeadStatus = "PROSPECT"
	LeadStatusDraft LeadStatus = "DRAFT"
	LeadSubmitted   LeadStatus = "SUBMITTED"
	LeadClosed      LeadStatus = "CLOSED"
	LeadConverted   LeadStatus = "CONVERTED"
)

// Terminal reports whether no further status change is accepted.
func (s LeadStatus) Terminal() bool {
	return s == LeadClosed || s == LeadConverted
}

// Lead is a prospective borrower going through onboarding.
type Lead struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	FirstName    string     `json:"firstname"`
	MiddleName   string     `json:"middlename"`
	LastName     string     `json:"lastname"`
	MobileNo     string     `json:"mobileNo"`
	EmailAddress string     `json:"emailAddress"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Gender       string     `json:"gender"`
	NationalID   string     `json:"nationalId"`
	ExternalID   string     `json:"externalId"`

	// ids in the core-banking system
	OfficeID               int64 `json:"officeId"`
	LegalFormID            int64 `json:"legalFormId"`
	ClientTypeID           int64 `json:"clientTypeId"`
	ClientClassificationID int64 `json:"clientClassificationId"`

	MonthlyIncome     decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpenses   decimal.Decimal `json:"monthlyExpenses"`
	CreditScore       int             `json:"creditScore"`
	RequestedAmount   decimal.Decimal `json:"requestedAmount"`
	LoanProductID     int64           `json:"loanProductId"`
	LoanTermMonths    int             `json:"loanTermMonths"`
	DocumentsVerified bool            `json:"documentsVerified"`

	Status         LeadStatus `json:"status"`
	CurrentStep    int        `json:"currentStep"`
	CurrentStageID *int64     `json:"currentStageId,omitempty"`
	ClosedReason   *string    `json:"closedReason,omitempty"`
	UserID         *int64     `json:"userId,omitempty"`

	FineractClientID *int64 `json:"fineractClientId,omitempty"`
	FineractLoanID   *int64 `json:"fineractLoanId,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`

	FamilyMembers []FamilyMember `json:"familyMembers,omitempty"`
}

func (l *Lead) FullName() string {
	name := l.FirstName
	if l.MiddleName != "" {
		name += " " + l.MiddleName
	}
	if l.LastName != "" {
		name += " " + l.LastName
	}
	return name
}

// LeadDraft is a partial form submission. Nil fields are left untouched.
type LeadDraft struct {
	FirstName              *string          `json:"firstname,omitempty"`
	MiddleName             *string          `json:"middlename,omitempty"`
	LastName               *string          `json:"lastname,omitempty"`
	MobileNo               *string          `json:"mobileNo,omitempty"`
	EmailAddress           *string          `json:"emailAddress,omitempty"`
	DateOfBirth            *string          `json:"dateOfBirth,omitempty"`
	Gender                 *string          `json:"gender,omitempty"`
	NationalID             *string          `json:"nationalId,omitempty"`
	ExternalID             *string          `json:"externalId,omitempty"`
	OfficeID               *int64           `json:"officeId,omitempty"`
	LegalFormID            *int64           `json:"legalFormId,omitempty"`
	ClientTypeID           *int64           `json:"clientTypeId,omitempty"`
	ClientClassificationID *int64           `json:"clientClassificationId,omitempty"`
	MonthlyIncome          *decimal.Decimal `json:"monthlyIncome,omitempty"`
	MonthlyExpenses        *decimal.Decimal `json:"monthlyExpenses,omitempty"`
	CreditScore            *int             `json:"creditScore,omitempty"`
	RequestedAmount        *decimal.Decimal `json:"requestedAmount,omitempty"`
	LoanProductID          *int64           `json:"loanProductId,omitempty"`
	LoanTermMonths         *int             `json:"loanTermMonths,omitempty"`
	DocumentsVerified      *bool            `json:"documentsVerified,omitempty"`
	CurrentStep            *int             `json:"currentStep,omitempty"`
}

// AutoSaveResult is the answer to every auto-save call.
type AutoSaveResult struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type LeadFilter struct {
	Status  LeadStatus
	StageID int64
	OwnerID int64
	Search  string
	SortBy  string
	Order   string
	Limit   int
	Offset  int
}

// FamilyMember belongs to one lead and is deleted directly.
type FamilyMember struct {
	ID           string    `json:"id"`
	LeadID       string    `json:"leadId"`
	FirstName    string    `json:"firstname" binding:"required"`
	LastName     string    `json:"lastname"`
	Relationship string    `json:"relationship" binding:"required"`
	MobileNo     string    `json:"mobileNo"`
	Age          int       `json:"age" binding:"gte=0,lte=130"`
	IsDependent  bool      `json:"isDependent"`
	CreatedAt    time.Time `json:"createdAt"`
}
