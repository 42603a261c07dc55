package model

import "strconv"

// AccountUpsertBuilder accumulates the per-transaction account-upsert
// scripts of spec §4.9.5: every system action that touches an account
// contributes a Painless fragment plus a namespaced params block
// ("0", "1", ...), so that when several actions in one transaction
// touch the same account their scripts concatenate into a single
// scripted upsert instead of racing each other as separate updates.
type AccountUpsertBuilder struct {
	byAccount map[string]*accountAccumulator
	order     []string
}

type accountAccumulator struct {
	fragments []string
	params    map[string]interface{}
	nextIdx   int
}

// NewAccountUpsertBuilder returns an empty builder.
func NewAccountUpsertBuilder() *AccountUpsertBuilder {
	return &AccountUpsertBuilder{byAccount: make(map[string]*accountAccumulator)}
}

func (b *AccountUpsertBuilder) accumulator(accountID string) *accountAccumulator {
	acc, ok := b.byAccount[accountID]
	if !ok {
		acc = &accountAccumulator{params: make(map[string]interface{})}
		b.byAccount[accountID] = acc
		b.order = append(b.order, accountID)
	}
	return acc
}

func (b *AccountUpsertBuilder) add(accountID, fragmentTemplate string, params map[string]interface{}) {
	acc := b.accumulator(accountID)
	idx := strconv.Itoa(acc.nextIdx)
	acc.nextIdx++
	acc.fragments = append(acc.fragments, sprintfIdx(fragmentTemplate, idx))
	acc.params[idx] = params
}

// sprintfIdx substitutes every %s placeholder in a fragment template
// with the quoted Painless params index, e.g. params['0'].
func sprintfIdx(tmpl, idx string) string {
	out := make([]byte, 0, len(tmpl)+4)
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '%' && i+1 < len(tmpl) && tmpl[i+1] == 's' {
			out = append(out, '\'')
			out = append(out, idx...)
			out = append(out, '\'')
			i++
			continue
		}
		out = append(out, tmpl[i])
	}
	return string(out)
}

const newAccountFragment = `ctx._source.name = params[%s].name; ctx._source.creator = params[%s].creator; ctx._source.account_create_time = params[%s].account_create_time; ctx._source.pub_keys = params[%s].pub_keys; ctx._source.account_controls = params[%s].account_controls; ctx._source.createAt = params[%s].createAt;`

const updateAuthFragment = `ctx._source.pub_keys.removeIf(item -> item.permission == params[%s].permission); ctx._source.account_controls.removeIf(item -> item.permission == params[%s].permission); ctx._source.pub_keys.addAll(params[%s].pub_keys); ctx._source.account_controls.addAll(params[%s].account_controls); ctx._source.updateAt = params[%s].updateAt;`

const deleteAuthFragment = `ctx._source.pub_keys.removeIf(item -> item.permission == params[%s].permission); ctx._source.account_controls.removeIf(item -> item.permission == params[%s].permission); ctx._source.updateAt = params[%s].updateAt;`

const setabiFragment = `ctx._source.name = params[%s].name; ctx._source.abi = params[%s].abi; ctx._source.updateAt = params[%s].updateAt;`

// NewAccount records a newaccount action's contribution for
// accountID.
func (b *AccountUpsertBuilder) NewAccount(accountID, creator string, accountCreateTime int64, pubKeys, accountControls []interface{}, now int64) {
	b.add(accountID, newAccountFragment, map[string]interface{}{
		"name":                accountID,
		"creator":             creator,
		"account_create_time": accountCreateTime,
		"pub_keys":            pubKeys,
		"account_controls":    accountControls,
		"createAt":            now,
	})
}

// UpdateAuth records an updateauth action's contribution for
// accountID.
func (b *AccountUpsertBuilder) UpdateAuth(accountID, permission string, pubKeys, accountControls []interface{}, now int64) {
	b.add(accountID, updateAuthFragment, map[string]interface{}{
		"permission":        permission,
		"pub_keys":          pubKeys,
		"account_controls":  accountControls,
		"updateAt":          now,
	})
}

// DeleteAuth records a deleteauth action's contribution for
// accountID.
func (b *AccountUpsertBuilder) DeleteAuth(accountID, permission string, now int64) {
	b.add(accountID, deleteAuthFragment, map[string]interface{}{
		"permission": permission,
		"updateAt":   now,
	})
}

// Setabi records a setabi action's contribution for accountID. abi is
// the already-decoded structured abi_def (or nil if decoding failed
// upstream, in which case the caller should not call Setabi at all).
func (b *AccountUpsertBuilder) Setabi(accountID string, abi interface{}, now int64) {
	b.add(accountID, setabiFragment, map[string]interface{}{
		"name":     accountID,
		"abi":      abi,
		"updateAt": now,
	})
}

// AccountUpsert is one account's fully concatenated scripted-upsert
// payload, ready to render as a bulk update body.
type AccountUpsert struct {
	AccountID string
	Body      ScriptUpsert
}

// Build returns one AccountUpsert per account touched, in the order
// accounts were first touched (stable for deterministic tests).
func (b *AccountUpsertBuilder) Build() []AccountUpsert {
	out := make([]AccountUpsert, 0, len(b.order))
	for _, accountID := range b.order {
		acc := b.byAccount[accountID]
		source := ""
		for i, frag := range acc.fragments {
			if i > 0 {
				source += " "
			}
			source += frag
		}
		out = append(out, AccountUpsert{
			AccountID: accountID,
			Body: ScriptUpsert{
				Script: Script{
					Lang:   "painless",
					Source: source,
					Params: acc.params,
				},
				ScriptedUpsert: true,
				Upsert:         map[string]interface{}{},
			},
		})
	}
	return out
}
