package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTransfer(t *testing.T) {
	ob := Classify("transfer", map[string]any{
		"from":   "alice",
		"to":     "bob",
		"amount": "10.000 STEEM",
	})

	assert.True(t, ob.Light.Has("alice"))
	assert.True(t, ob.Light.Has("bob"))
	assert.Empty(t, ob.Full)
}

func TestClassifyAccountCreate(t *testing.T) {
	ob := Classify("account_create", map[string]any{
		"creator":          "carol",
		"new_account_name": "newbie",
	})

	assert.Equal(t, []string{"carol"}, ob.Light.Names())
	assert.Equal(t, []string{"newbie"}, ob.Full.Names())
}

func TestClassifyUnknownType(t *testing.T) {
	ob := Classify("some_future_operation", map[string]any{"owner": "dave"})

	assert.Empty(t, ob.Light)
	assert.Empty(t, ob.Full)
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name    string
		opType  string
		payload map[string]any
		light   []string
		full    []string
	}{
		{
			name:    "witness proxy touches both parties",
			opType:  "account_witness_proxy",
			payload: map[string]any{"account": "alice", "proxy": "bob"},
			light:   []string{"alice", "bob"},
		},
		{
			name:    "vote touches the voter only",
			opType:  "vote",
			payload: map[string]any{"voter": "alice", "author": "bob", "permlink": "post"},
			light:   []string{"alice"},
		},
		{
			name:    "delegation touches both ends",
			opType:  "delegate_vesting_shares",
			payload: map[string]any{"delegator": "alice", "delegatee": "bob"},
			light:   []string{"alice", "bob"},
		},
		{
			name:    "escrow takes all present parties",
			opType:  "escrow_release",
			payload: map[string]any{"from": "alice", "to": "bob", "agent": "carol", "who": "carol"},
			light:   []string{"alice", "bob", "carol"},
		},
		{
			name:    "savings transfer ignores absent parties",
			opType:  "transfer_to_savings",
			payload: map[string]any{"from": "alice", "to": "alice"},
			light:   []string{"alice"},
		},
		{
			name:    "fill order touches both owners",
			opType:  "fill_order",
			payload: map[string]any{"open_owner": "alice", "current_owner": "bob"},
			light:   []string{"alice", "bob"},
		},
		{
			name:    "fill vesting withdraw",
			opType:  "fill_vesting_withdraw",
			payload: map[string]any{"from_account": "alice", "to_account": "bob"},
			light:   []string{"alice", "bob"},
		},
		{
			name:    "recovery request targets the recovered account",
			opType:  "request_account_recovery",
			payload: map[string]any{"account_to_recover": "alice", "recovery_account": "bob"},
			light:   []string{"alice"},
		},
		{
			name:   "custom json takes the first active authority",
			opType: "custom_json",
			payload: map[string]any{
				"required_auths":         []any{"alice", "bob"},
				"required_posting_auths": []any{"carol"},
			},
			light: []string{"alice"},
		},
		{
			name:   "custom json falls back to posting authority",
			opType: "custom_json",
			payload: map[string]any{
				"required_posting_auths": []any{"carol", "dave"},
			},
			light: []string{"carol"},
		},
		{
			name:   "pow2 digs out the nested worker account",
			opType: "pow2",
			payload: map[string]any{
				"work": []any{
					float64(1),
					map[string]any{"input": map[string]any{"worker_account": "miner"}},
				},
			},
			light: []string{"miner"},
		},
		{
			name:    "pow2 with malformed work yields nothing",
			opType:  "pow2",
			payload: map[string]any{"work": "garbage"},
		},
		{
			name:    "curation reward",
			opType:  "curation_reward",
			payload: map[string]any{"curator": "alice"},
			light:   []string{"alice"},
		},
		{
			name:    "convert has no refresh rule",
			opType:  "convert",
			payload: map[string]any{"owner": "alice"},
		},
		{
			name:    "limit order create has no refresh rule",
			opType:  "limit_order_create",
			payload: map[string]any{"owner": "alice"},
		},
		{
			name:    "missing payload fields are skipped",
			opType:  "account_create",
			payload: map[string]any{"creator": "carol"},
			light:   []string{"carol"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ob := Classify(tc.opType, tc.payload)

			if tc.light == nil {
				assert.Empty(t, ob.Light)
			} else {
				assert.Equal(t, tc.light, ob.Light.Names())
			}
			if tc.full == nil {
				assert.Empty(t, ob.Full)
			} else {
				assert.Equal(t, tc.full, ob.Full.Names())
			}
		})
	}
}

func TestObligationMerge(t *testing.T) {
	batch := NewObligation()
	batch.Merge(Classify("transfer", map[string]any{"from": "alice", "to": "bob"}))
	batch.Merge(Classify("account_create", map[string]any{"creator": "alice", "new_account_name": "newbie"}))
	batch.Merge(Classify("vote", map[string]any{"voter": "bob"}))

	require.Equal(t, []string{"alice", "bob"}, batch.Light.Names())
	require.Equal(t, []string{"newbie"}, batch.Full.Names())
	require.Equal(t, []string{"alice", "bob", "newbie"}, batch.Accounts())
}
