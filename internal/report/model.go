package report

import "groupspend/internal/core"

// Report names, used for logs, metrics and cache slots.
const (
	NameTotalSpent      = "total_spent"
	NameSpentByCategory = "spent_by_category"
	NameSpentByGroup    = "spent_by_group"
)

// UncategorizedName labels expenses without a (resolvable) category.
const UncategorizedName = "Uncategorized"

type (
	ChartPoint struct {
		Date            core.Date `json:"date"`
		Amount          float64   `json:"amount"`
		FormattedAmount string    `json:"formatted_amount"`
	}

	// CurrencyTotal is the total of one currency that is not the
	// dominant currency of a TotalSpent result.
	CurrencyTotal struct {
		Currency       core.Currency `json:"currency"`
		Total          int64         `json:"total"`
		FormattedTotal string        `json:"formatted_total"`
	}

	TotalSpent struct {
		Total          int64           `json:"total"`
		FormattedTotal string          `json:"formatted_total"`
		Currency       core.Currency   `json:"currency"`
		Chart          []ChartPoint    `json:"chart_data"`
		Others         []CurrencyTotal `json:"other_currencies,omitempty"`
	}

	CategoryShare struct {
		CategoryID      *int64        `json:"category_id"`
		Name            string        `json:"name"`
		Total           int64         `json:"total"`
		FormattedAmount string        `json:"formatted_amount"`
		Percentage      int           `json:"percentage"`
		Currency        core.Currency `json:"currency"`
	}

	UserShare struct {
		UserID          int64  `json:"user_id"`
		Name            string `json:"name"`
		Total           int64  `json:"total"`
		FormattedAmount string `json:"formatted_amount"`
		Percentage      int    `json:"percentage"`
	}

	GroupShare struct {
		GroupID         int64         `json:"group_id"`
		Name            string        `json:"name"`
		Total           int64         `json:"total"`
		FormattedAmount string        `json:"formatted_amount"`
		Percentage      int           `json:"percentage"`
		Currency        core.Currency `json:"currency"`
		Users           []UserShare   `json:"users"`
	}
)
