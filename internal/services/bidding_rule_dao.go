package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

const incrementRulesKey = "bid_increment_rules"

// BiddingRuleDao keeps the increment tiers in redis so an operator can tune them
// between rounds without a restart. Until LoadRules succeeds the configured
// default is used.
type BiddingRuleDao struct {
	client   *redis.Client
	defaults IncrementRule

	mu    sync.RWMutex
	rules *IncrementRule
}

func NewBiddingRuleDao(client *redis.Client, defaults IncrementRule) *BiddingRuleDao {
	return &BiddingRuleDao{
		client:   client,
		defaults: defaults,
	}
}

func (d *BiddingRuleDao) LoadRules(ctx context.Context) error {
	data, err := d.client.Get(ctx, incrementRulesKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			d.setRules(d.defaults)
			return d.saveRules(ctx, d.defaults)
		}
		return err
	}

	var rules IncrementRule
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return fmt.Errorf("decode increment rules: %w", err)
	}
	if !rules.Valid() {
		return fmt.Errorf("increment rules in %s must be positive", incrementRulesKey)
	}

	d.setRules(rules)
	return nil
}

// UpdateRules validates, stores and activates new tiers.
func (d *BiddingRuleDao) UpdateRules(ctx context.Context, rules IncrementRule) error {
	if !rules.Valid() {
		return fmt.Errorf("increment rules must be positive")
	}
	if err := d.saveRules(ctx, rules); err != nil {
		return err
	}
	d.setRules(rules)
	return nil
}

func (d *BiddingRuleDao) CurrentRule() IncrementRule {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.rules == nil {
		return d.defaults
	}
	return *d.rules
}

func (d *BiddingRuleDao) setRules(rules IncrementRule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = &rules
}

func (d *BiddingRuleDao) saveRules(ctx context.Context, rules IncrementRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}

	return d.client.Set(ctx, incrementRulesKey, string(data), 0).Err()
}
