package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Core-banking reference data. Field names follow the remote API.

type Office struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	NameDecorated string `json:"nameDecorated,omitempty"`
	ExternalID    string `json:"externalId,omitempty"`
	ParentID      int64  `json:"parentId,omitempty"`
	Hierarchy     string `json:"hierarchy,omitempty"`
	OpeningDate   []int  `json:"openingDate,omitempty"`
}

type Currency struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	DecimalPlaces int    `json:"decimalPlaces"`
	DisplaySymbol string `json:"displaySymbol,omitempty"`
	NameCode      string `json:"nameCode,omitempty"`
	DisplayLabel  string `json:"displayLabel,omitempty"`
}

type CurrencyConfiguration struct {
	SelectedCurrencyOptions []Currency `json:"selectedCurrencyOptions"`
	CurrencyOptions         []Currency `json:"currencyOptions"`
}

type PaymentType struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	IsCashPayment bool   `json:"isCashPayment"`
	Position      int    `json:"position,omitempty"`
}

type EnumOption struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Value string `json:"value"`
}

type GLAccount struct {
	ID                   int64       `json:"id"`
	Name                 string      `json:"name"`
	ParentID             int64       `json:"parentId,omitempty"`
	GLCode               string      `json:"glCode"`
	Disabled             bool        `json:"disabled"`
	ManualEntriesAllowed bool        `json:"manualEntriesAllowed"`
	Type                 *EnumOption `json:"type,omitempty"`
	Usage                *EnumOption `json:"usage,omitempty"`
	Description          string      `json:"description,omitempty"`
}

type GLAccountFilter struct {
	Type                 string
	Usage                string
	ManualEntriesAllowed *bool
	Disabled             *bool
}

type AccountRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	GLCode string `json:"glCode,omitempty"`
}

type AccountingRule struct {
	ID                         int64        `json:"id"`
	Name                       string       `json:"name"`
	OfficeID                   int64        `json:"officeId"`
	OfficeName                 string       `json:"officeName,omitempty"`
	Description                string       `json:"description,omitempty"`
	SystemDefined              bool         `json:"systemDefined"`
	AllowMultipleDebitEntries  bool         `json:"allowMultipleDebitEntries"`
	AllowMultipleCreditEntries bool         `json:"allowMultipleCreditEntries"`
	DebitAccounts              []AccountRef `json:"debitAccounts,omitempty"`
	CreditAccounts             []AccountRef `json:"creditAccounts,omitempty"`
}

type JournalLine struct {
	GLAccountID int64           `json:"glAccountId" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Comments    string          `json:"comments,omitempty"`
}

// JournalEntryRequest is a balanced set of debit and credit lines.
type JournalEntryRequest struct {
	OfficeID        int64         `json:"officeId" validate:"required,gt=0"`
	CurrencyCode    string        `json:"currencyCode" validate:"required,len=3"`
	TransactionDate string        `json:"transactionDate" validate:"required,datetime=2006-01-02"`
	ReferenceNumber string        `json:"referenceNumber,omitempty" validate:"max=100"`
	Comments        string        `json:"comments,omitempty" validate:"max=500"`
	AccountingRule  int64         `json:"accountingRule,omitempty"`
	PaymentTypeID   int64         `json:"paymentTypeId,omitempty"`
	Debits          []JournalLine `json:"debits" validate:"required,min=1,dive"`
	Credits         []JournalLine `json:"credits" validate:"required,min=1,dive"`
}

// FrequentPostingRequest posts a single amount through an accounting rule.
type FrequentPostingRequest struct {
	AccountingRuleID int64           `json:"accountingRuleId" validate:"required,gt=0"`
	OfficeID         int64           `json:"officeId" validate:"required,gt=0"`
	CurrencyCode     string          `json:"currencyCode" validate:"required,len=3"`
	TransactionDate  string          `json:"transactionDate" validate:"required,datetime=2006-01-02"`
	Amount           decimal.Decimal `json:"amount"`
	ReferenceNumber  string          `json:"referenceNumber,omitempty"`
	Comments         string          `json:"comments,omitempty"`
	PaymentTypeID    int64           `json:"paymentTypeId,omitempty"`
}

type JournalEntryResult struct {
	OfficeID      int64  `json:"officeId"`
	TransactionID string `json:"transactionId"`
}

type JournalEntryFilter struct {
	Offset        int
	Limit         int
	OfficeID      int64
	GLAccountID   int64
	FromDate      string
	ToDate        string
	TransactionID string
	ManualOnly    bool
}

type JournalEntry struct {
	ID              int64           `json:"id"`
	OfficeID        int64           `json:"officeId"`
	OfficeName      string          `json:"officeName"`
	GLAccountID     int64           `json:"glAccountId"`
	GLAccountName   string          `json:"glAccountName"`
	GLAccountCode   string          `json:"glAccountCode"`
	GLAccountType   *EnumOption     `json:"glAccountType,omitempty"`
	TransactionDate []int           `json:"transactionDate"`
	EntryType       *EnumOption     `json:"entryType,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionID   string          `json:"transactionId"`
	ManualEntry     bool            `json:"manualEntry"`
	Reversed        bool            `json:"reversed"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Comments        string          `json:"comments,omitempty"`
}

type JournalEntryPage struct {
	TotalFilteredRecords int            `json:"totalFilteredRecords"`
	PageItems            []JournalEntry `json:"pageItems"`
}

type ReportParameterRef struct {
	ID            int64  `json:"id"`
	ParameterID   int64  `json:"parameterId"`
	ParameterName string `json:"parameterName"`
}

type Report struct {
	ID               int64                `json:"id"`
	ReportName       string               `json:"reportName"`
	ReportType       string               `json:"reportType"`
	ReportCategory   string               `json:"reportCategory,omitempty"`
	Description      string               `json:"description,omitempty"`
	UseReport        bool                 `json:"useReport"`
	ReportParameters []ReportParameterRef `json:"reportParameters,omitempty"`
}

type ColumnHeader struct {
	ColumnName string `json:"columnName"`
	ColumnType string `json:"columnType,omitempty"`
}

type ResultRow struct {
	Row []json.RawMessage `json:"row"`
}

// ResultSet is the generic tabular answer of report runs.
type ResultSet struct {
	ColumnHeaders []ColumnHeader `json:"columnHeaders"`
	Data          []ResultRow    `json:"data"`
}

type LoanApplication struct {
	ClientID                          int64           `json:"clientId"`
	ProductID                         int64           `json:"productId"`
	Principal                         decimal.Decimal `json:"principal"`
	LoanTermFrequency                 int             `json:"loanTermFrequency"`
	LoanTermFrequencyType             int             `json:"loanTermFrequencyType"`
	NumberOfRepayments                int             `json:"numberOfRepayments"`
	RepaymentEvery                    int             `json:"repaymentEvery"`
	RepaymentFrequencyType            int             `json:"repaymentFrequencyType"`
	InterestRatePerPeriod             decimal.Decimal `json:"interestRatePerPeriod"`
	AmortizationType                  int             `json:"amortizationType"`
	InterestType                      int             `json:"interestType"`
	InterestCalculationPeriodType     int             `json:"interestCalculationPeriodType"`
	TransactionProcessingStrategyCode string          `json:"transactionProcessingStrategyCode"`
	ExpectedDisbursementDate          string          `json:"expectedDisbursementDate"`
	SubmittedOnDate                   string          `json:"submittedOnDate"`
	LoanType                          string          `json:"loanType"`
	ExternalID                        string          `json:"externalId"`
	DateFormat                        string          `json:"dateFormat"`
	Locale                            string          `json:"locale"`
}

type ClientApplication struct {
	OfficeID        int64  `json:"officeId"`
	LegalFormID     int64  `json:"legalFormId,omitempty"`
	FirstName       string `json:"firstname"`
	MiddleName      string `json:"middlename,omitempty"`
	LastName        string `json:"lastname"`
	MobileNo        string `json:"mobileNo,omitempty"`
	EmailAddress    string `json:"emailAddress,omitempty"`
	ExternalID      string `json:"externalId"`
	Active          bool   `json:"active"`
	SubmittedOnDate string `json:"submittedOnDate"`
	DateFormat      string `json:"dateFormat"`
	Locale          string `json:"locale"`
}

// CommandResult is the standard write response of the core-banking API.
type CommandResult struct {
	OfficeID   int64 `json:"officeId,omitempty"`
	ClientID   int64 `json:"clientId,omitempty"`
	LoanID     int64 `json:"loanId,omitempty"`
	ResourceID int64 `json:"resourceId,omitempty"`
}

// LoanTemplate keeps the product defaults the UI and the USSD saga need.
type LoanTemplate struct {
	ClientID                          int64           `json:"clientId,omitempty"`
	LoanProductID                     int64           `json:"loanProductId,omitempty"`
	LoanProductName                   string          `json:"loanProductName,omitempty"`
	Principal                         decimal.Decimal `json:"principal"`
	TermFrequency                     int             `json:"termFrequency"`
	TermPeriodFrequencyType           *EnumOption     `json:"termPeriodFrequencyType,omitempty"`
	NumberOfRepayments                int             `json:"numberOfRepayments"`
	RepaymentEvery                    int             `json:"repaymentEvery"`
	RepaymentFrequencyType            *EnumOption     `json:"repaymentFrequencyType,omitempty"`
	InterestRatePerPeriod             decimal.Decimal `json:"interestRatePerPeriod"`
	AmortizationType                  *EnumOption     `json:"amortizationType,omitempty"`
	InterestType                      *EnumOption     `json:"interestType,omitempty"`
	InterestCalculationPeriodType     *EnumOption     `json:"interestCalculationPeriodType,omitempty"`
	TransactionProcessingStrategyCode string          `json:"transactionProcessingStrategyCode,omitempty"`
	ProductOptions                    []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"productOptions,omitempty"`
}
