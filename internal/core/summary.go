package core

// Summary is the income, expense and balance view over a set of
// transactions. It is derived per query and never persisted.
type Summary struct {
	Income  MoneyPair `json:"income"`
	Expense MoneyPair `json:"expense"`
	Balance MoneyPair `json:"balance"`
}

// ZeroSummary has every component set to zero.
func ZeroSummary() Summary {
	return Summary{Income: Zero(), Expense: Zero(), Balance: Zero()}
}

// Accumulator folds transactions one at a time. Balance is only computed in
// Summary, after every record has been added.
type Accumulator struct {
	income  MoneyPair
	expense MoneyPair
}

func NewAccumulator() *Accumulator {
	return &Accumulator{income: Zero(), expense: Zero()}
}

func (a *Accumulator) Add(t Transaction) {
	if t.Kind == Income {
		a.income = a.income.Add(t.Amount)
		return
	}
	a.expense = a.expense.Add(t.Amount)
}

func (a *Accumulator) Summary() Summary {
	return Summary{
		Income:  a.income,
		Expense: a.expense,
		Balance: a.income.Sub(a.expense),
	}
}

// Fold sums every record into a Summary.
func Fold(records []Transaction) Summary {
	acc := NewAccumulator()
	for _, t := range records {
		acc.Add(t)
	}
	return acc.Summary()
}
