package services

import (
	"github.com/shopspring/decimal"
)

// IncrementRule is the two-tier suggested bid step. Below Crossover the step is
// Small, at or above it Large. It is advisory: any bid strictly above the leader
// is accepted regardless of the step.
type IncrementRule struct {
	Crossover decimal.Decimal `json:"crossover"`
	Small     decimal.Decimal `json:"small"`
	Large     decimal.Decimal `json:"large"`
}

// IncrementRuleSource hands the coordinator the rule currently in force.
type IncrementRuleSource interface {
	CurrentRule() IncrementRule
}

func NewIncrementRule(crossover, small, large int64) IncrementRule {
	return IncrementRule{
		Crossover: decimal.NewFromInt(crossover),
		Small:     decimal.NewFromInt(small),
		Large:     decimal.NewFromInt(large),
	}
}

// CurrentRule lets a fixed rule be used wherever a source is expected.
func (r IncrementRule) CurrentRule() IncrementRule {
	return r
}

func (r IncrementRule) Increment(current decimal.Decimal) decimal.Decimal {
	if current.LessThan(r.Crossover) {
		return r.Small
	}
	return r.Large
}

func (r IncrementRule) Valid() bool {
	return r.Crossover.IsPositive() && r.Small.IsPositive() && r.Large.IsPositive()
}
