// Package filter implements the receiver/action/actor inclusion-
// exclusion predicate of spec §4.5, grounded on
// elasticsearch_plugin_impl::filter_include in the original source:
// two sorted sets of (receiver, action, actor) triples, "0" (here the
// empty string) acting as a wildcard in any position.
package filter

import (
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
)

// wildcard is the zero value of a filter field — "0" in the original
// source's account_name encoding, the empty string here.
const wildcard = ""

// Filter is an include/exclude predicate over actions. Entries are
// matched by linear scan rather than a hash lookup because a
// wildcard ("0") in the receiver position must match any concrete
// receiver, not just a literal empty one (spec §4.5, exercised by S7
// with filter_out = "::spammer").
type Filter struct {
	onStar bool
	on     []config.FilterEntry
	out    []config.FilterEntry
}

// New builds a Filter from the parsed filter_on/filter_out entries
// (config.ParseFilterEntry).
func New(onStar bool, on, out []config.FilterEntry) *Filter {
	return &Filter{onStar: onStar, on: on, out: out}
}

func fieldMatch(pattern, value string) bool {
	return pattern == wildcard || pattern == value
}

func entryMatchesReceiverAction(e config.FilterEntry, receiver, action string) bool {
	return fieldMatch(e.Receiver, receiver) && fieldMatch(e.Action, action) && e.Actor == wildcard
}

func entryMatchesReceiverActionActor(e config.FilterEntry, receiver, action, actor string) bool {
	return fieldMatch(e.Receiver, receiver) && fieldMatch(e.Action, action) && fieldMatch(e.Actor, actor)
}

// Include reports whether act passes the filter: {filter_on_star OR
// filter_on match} AND NOT filter_out match.
func (f *Filter) Include(act chainevents.Action) bool {
	if !f.included(act) {
		return false
	}
	return !f.excluded(act)
}

func (f *Filter) included(act chainevents.Action) bool {
	if f.onStar {
		return true
	}
	for _, e := range f.on {
		if entryMatchesReceiverAction(e, act.Receiver, act.Name) {
			return true
		}
		for _, a := range act.Authorization {
			if entryMatchesReceiverActionActor(e, act.Receiver, act.Name, a.Actor) {
				return true
			}
		}
	}
	return false
}

func (f *Filter) excluded(act chainevents.Action) bool {
	for _, e := range f.out {
		if entryMatchesReceiverAction(e, act.Receiver, act.Name) {
			return true
		}
		for _, a := range act.Authorization {
			if entryMatchesReceiverActionActor(e, act.Receiver, act.Name, a.Actor) {
				return true
			}
		}
	}
	return false
}

// IncludeTransaction reports whether any of a transaction's actions
// or context-free actions pass the filter, or trivially true when
// filter_on_star holds and filter_out is empty.
func (f *Filter) IncludeTransaction(actions, contextFreeActions []chainevents.Action) bool {
	if f.onStar && len(f.out) == 0 {
		return true
	}
	for _, a := range actions {
		if f.Include(a) {
			return true
		}
	}
	for _, a := range contextFreeActions {
		if f.Include(a) {
			return true
		}
	}
	return false
}
