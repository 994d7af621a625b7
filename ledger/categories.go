package ledger

// DefaultCategories is the onboarding category set. IDs are stable across
// runs so that transactions created against a fresh ledger keep resolving
// after a reload.
func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-food", Name: "Food & Dining", Type: TxExpense, Icon: "utensils"},
		{ID: "cat-groceries", Name: "Groceries", Type: TxExpense, Icon: "cart"},
		{ID: "cat-transport", Name: "Transport", Type: TxExpense, Icon: "bus"},
		{ID: "cat-shopping", Name: "Shopping", Type: TxExpense, Icon: "bag"},
		{ID: "cat-bills", Name: "Bills & Utilities", Type: TxExpense, Icon: "receipt"},
		{ID: "cat-entertainment", Name: "Entertainment", Type: TxExpense, Icon: "film"},
		{ID: "cat-health", Name: "Health", Type: TxExpense, Icon: "heart"},
		{ID: "cat-travel", Name: "Travel", Type: TxExpense, Icon: "plane"},
		{ID: "cat-education", Name: "Education", Type: TxExpense, Icon: "book"},
		{ID: "cat-other-expense", Name: "Other", Type: TxExpense, Icon: "dots"},
		{ID: "cat-salary", Name: "Salary", Type: TxIncome, Icon: "briefcase"},
		{ID: "cat-freelance", Name: "Freelance", Type: TxIncome, Icon: "laptop"},
		{ID: "cat-interest", Name: "Interest", Type: TxIncome, Icon: "percent"},
		{ID: "cat-gift", Name: "Gift", Type: TxIncome, Icon: "gift"},
		{ID: "cat-other-income", Name: "Other Income", Type: TxIncome, Icon: "coins"},
	}
}

// CategoryByID looks up a category in a set, or nil.
func CategoryByID(categories []Category, id CategoryID) *Category {
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i]
		}
	}
	return nil
}
