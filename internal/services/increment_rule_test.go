package services

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestIncrementRule_Increment(t *testing.T) {
	rule := NewIncrementRule(100, 5, 10)

	tests := []struct {
		current int64
		want    string
	}{
		{0, "5"},
		{20, "5"},
		{99, "5"},
		{100, "10"},
		{250, "10"},
	}
	for _, tt := range tests {
		check.Equal(t, tt.want, rule.Increment(decimal.NewFromInt(tt.current)).String())
	}
}

func TestIncrementRule_Valid(t *testing.T) {
	check.True(t, NewIncrementRule(100, 5, 10).Valid())
	check.False(t, NewIncrementRule(0, 5, 10).Valid())
	check.False(t, NewIncrementRule(100, -5, 10).Valid())
	check.False(t, IncrementRule{}.Valid())
}

func TestIncrementRule_IsOwnSource(t *testing.T) {
	rule := NewIncrementRule(100, 5, 10)
	var src IncrementRuleSource = rule
	check.Equal(t, "10", src.CurrentRule().Large.String())
}
