// Package classify maps a ledger operation to the set of accounts whose
// projections it touches. Classification is pure and table-driven: one
// extraction rule per operation type, keyed on the type tag. Types without a
// rule produce an empty obligation, so new chain operations are a no-op
// until a rule is added.
package classify

import "sort"

// Set is a deduplicated collection of account names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		s.Add(name)
	}

	return s
}

// Add inserts a name, ignoring empty strings.
func (s Set) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Merge(other Set) {
	for name := range other {
		s[name] = struct{}{}
	}
}

// Names returns the members in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Obligation is the refresh work one or more operations impose. Light means
// the account projection needs a partial refresh; Full marks newly created
// accounts that need a complete profile plus history backfill. A name may
// appear in both; callers must let the full refresh win.
type Obligation struct {
	Light Set
	Full  Set
}

func NewObligation() Obligation {
	return Obligation{Light: Set{}, Full: Set{}}
}

func (ob Obligation) Merge(other Obligation) {
	ob.Light.Merge(other.Light)
	ob.Full.Merge(other.Full)
}

// Accounts returns the union of both sets, sorted.
func (ob Obligation) Accounts() []string {
	union := NewSet()
	union.Merge(ob.Light)
	union.Merge(ob.Full)

	return union.Names()
}

type rule struct {
	// light and full name the payload fields carrying affected account
	// names. Absent fields are skipped.
	light []string
	full  []string

	// extract handles types whose affected accounts are not flat payload
	// fields.
	extract func(payload map[string]any, ob *Obligation)
}

// transferParties covers the escrow and transfer families, where any subset
// of these fields may be present.
var transferParties = []string{"agent", "from", "to", "who", "receiver"}

var rules = map[string]rule{
	"account_create":                 {light: []string{"creator"}, full: []string{"new_account_name"}},
	"account_create_with_delegation": {light: []string{"creator"}, full: []string{"new_account_name"}},

	"account_update":            {light: []string{"account"}},
	"withdraw_vesting":          {light: []string{"account"}},
	"claim_reward_balance":      {light: []string{"account"}},
	"return_vesting_delegation": {light: []string{"account"}},
	"account_witness_vote":      {light: []string{"account"}},

	"account_witness_proxy": {light: []string{"account", "proxy"}},

	"author_reward": {light: []string{"author"}},
	"comment":       {light: []string{"author"}},
	"vote":          {light: []string{"voter"}},

	"cancel_transfer_from_savings": {light: []string{"from"}},

	"change_recovery_account":  {light: []string{"account_to_recover"}},
	"recover_account":          {light: []string{"account_to_recover"}},
	"request_account_recovery": {light: []string{"account_to_recover"}},

	"comment_benefactor_reward": {light: []string{"benefactor"}},
	"curation_reward":           {light: []string{"curator"}},

	"custom":      {extract: firstAuthority},
	"custom_json": {extract: firstAuthority},

	"delegate_vesting_shares": {light: []string{"delegator", "delegatee"}},
	"delete_comment":          {light: []string{"author"}},

	"escrow_approve":  {light: transferParties},
	"escrow_dispute":  {light: transferParties},
	"escrow_release":  {light: transferParties},
	"escrow_transfer": {light: transferParties},

	"feed_publish": {light: []string{"publisher"}},
	"fill_order":   {light: []string{"open_owner", "current_owner"}},

	"fill_vesting_withdraw":      {light: []string{"to_account", "from_account"}},
	"set_withdraw_vesting_route": {light: []string{"from_account", "to_account"}},

	"pow2": {extract: pow2Worker},

	"transfer":              {light: transferParties},
	"transfer_from_savings": {light: transferParties},
	"transfer_to_savings":   {light: transferParties},
	"transfer_to_vesting":   {light: transferParties},
}

// Classify returns the accounts affected by one operation. Unknown types
// yield an empty obligation.
func Classify(opType string, payload map[string]any) Obligation {
	ob := NewObligation()

	r, ok := rules[opType]
	if !ok {
		return ob
	}

	for _, field := range r.light {
		if name, ok := stringField(payload, field); ok {
			ob.Light.Add(name)
		}
	}
	for _, field := range r.full {
		if name, ok := stringField(payload, field); ok {
			ob.Full.Add(name)
		}
	}

	if r.extract != nil {
		r.extract(payload, &ob)
	}

	return ob
}

// firstAuthority picks the first listed required-authority account of a
// custom operation, active authorities taking precedence over posting.
// Co-signers are ignored.
func firstAuthority(payload map[string]any, ob *Obligation) {
	for _, key := range []string{"required_auths", "required_posting_auths"} {
		auths, ok := payload[key].([]any)
		if !ok {
			continue
		}
		if len(auths) > 0 {
			if name, ok := auths[0].(string); ok {
				ob.Light.Add(name)
			}
		}

		return
	}
}

// pow2Worker digs the worker account out of the tagged-variant work proof:
// work is a [variant_id, {"input": {"worker_account": ...}}] pair.
func pow2Worker(payload map[string]any, ob *Obligation) {
	work, ok := payload["work"].([]any)
	if !ok || len(work) < 2 {
		return
	}

	body, ok := work[1].(map[string]any)
	if !ok {
		return
	}

	input, ok := body["input"].(map[string]any)
	if !ok {
		return
	}

	if name, ok := input["worker_account"].(string); ok {
		ob.Light.Add(name)
	}
}

func stringField(payload map[string]any, field string) (string, bool) {
	value, ok := payload[field].(string)
	if !ok || value == "" {
		return "", false
	}

	return value, true
}
