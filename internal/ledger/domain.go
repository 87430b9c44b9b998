// Package ledger is the typed surface over the society's remote REST
// API. The server owns all business rules; this package only names the
// resources, decodes their payloads and shapes mutation requests.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/malibag-society/malibag/internal/session"
)

// Member is a registered member of the society.
type Member struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Role        session.Role    `json:"role"`
	Shares      int             `json:"shares"`
	JoiningDate time.Time       `json:"joiningDate"`
	TotalSaved  decimal.Decimal `json:"totalSaved"`
}

// BankAccount is one treasury account. Exactly one account carries the
// mother designation and acts as the default funding source.
type BankAccount struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	IsMother      bool            `json:"isMother"`
}

// Collection is one recorded deposit against a member and category.
type Collection struct {
	ID           int64           `json:"id"`
	MemberID     int64           `json:"memberId"`
	MemberName   string          `json:"memberName"`
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Amount       decimal.Decimal `json:"amount"`
	CollectedAt  time.Time       `json:"collectedAt"`
	Note         string          `json:"note"`
}

// Investment is one placement from the society's funds.
type Investment struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	ExpectedReturn decimal.Decimal `json:"expectedReturn"`
	StartDate      time.Time       `json:"startDate"`
	MaturityDate   time.Time       `json:"maturityDate"`
	Status         string          `json:"status"`
}

// Category is a collection category (monthly share, festival fund, ...).
type Category struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DefaultAmount decimal.Decimal `json:"defaultAmount"`
}

// ReportSummary is the aggregate snapshot for the reports screen.
type ReportSummary struct {
	TotalMembers     int             `json:"totalMembers"`
	TotalShares      int             `json:"totalShares"`
	TotalCollections decimal.Decimal `json:"totalCollections"`
	TotalInvestments decimal.Decimal `json:"totalInvestments"`
	BankBalance      decimal.Decimal `json:"bankBalance"`
}

// CollectionReportRow is one month's collection total in the audit
// report.
type CollectionReportRow struct {
	Month string          `json:"month"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// InvestmentReportRow is one status bucket in the investment report.
type InvestmentReportRow struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// Resource paths. View controllers arm their fetch cells with these.
const (
	PathMembers           = "/members"
	PathBankAccounts      = "/bank-accounts"
	PathCollections       = "/collections"
	PathInvestments       = "/investments"
	PathCategories        = "/categories"
	PathReportSummary     = "/reports/summary"
	PathReportCollections = "/reports/collections"
	PathReportInvestments = "/reports/investments"
)

// MemberPath is the detail path for one member. A zero id yields an
// unresolved placeholder, which a fetch cell treats as not-ready rather
// than calling the API with a bogus key.
func MemberPath(id int64) string {
	if id == 0 {
		return PathMembers + "/{id}"
	}
	return fmt.Sprintf("%s/%d", PathMembers, id)
}

// BankAccountPath is the detail path for one account.
func BankAccountPath(id int64) string {
	if id == 0 {
		return PathBankAccounts + "/{id}"
	}
	return fmt.Sprintf("%s/%d", PathBankAccounts, id)
}

// CategoryPath is the detail path for one category.
func CategoryPath(id int64) string {
	return fmt.Sprintf("%s/%d", PathCategories, id)
}

// ProfilePath is the profile-update path for one member.
func ProfilePath(id int64) string {
	return fmt.Sprintf("%s/%d/profile", PathMembers, id)
}
