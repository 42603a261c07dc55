package model

import "strconv"

// ActionTraceID formats the "<trx_id>-<ordinal>" composite id of
// spec §3's action_traces table.
func ActionTraceID(trxID string, ordinal int) string {
	return trxID + "-" + strconv.Itoa(ordinal)
}

// AcceptedTransactionDoc renders the accepted-transaction document of
// spec §4.9.3: rendered transaction plus trx_id, signing_keys,
// accepted/implicit/scheduled flags, createAt.
func AcceptedTransactionDoc(renderedTx map[string]interface{}, trxID string, signingKeys []string, accepted, implicit, scheduled bool, now int64) map[string]interface{} {
	doc := make(map[string]interface{}, len(renderedTx)+5)
	for k, v := range renderedTx {
		doc[k] = v
	}
	doc["trx_id"] = trxID
	if len(signingKeys) > 0 {
		doc["signing_keys"] = signingKeys
	}
	doc["accepted"] = accepted
	doc["implicit"] = implicit
	doc["scheduled"] = scheduled
	doc["createAt"] = now
	return doc
}

// ActionTraceDoc renders one flattened action_traces document: the
// base action trace (without inline children, per spec §4.9.4)
// stamped with createAt.
func ActionTraceDoc(renderedBaseTrace map[string]interface{}, now int64) map[string]interface{} {
	doc := make(map[string]interface{}, len(renderedBaseTrace)+1)
	for k, v := range renderedBaseTrace {
		doc[k] = v
	}
	doc["createAt"] = now
	return doc
}

// TransactionTraceDoc renders the whole applied-transaction trace,
// stamped with createAt, emitted once per transaction when at least
// one of its action traces survived the filter (spec §4.9.4).
func TransactionTraceDoc(renderedTrace map[string]interface{}, now int64) map[string]interface{} {
	doc := make(map[string]interface{}, len(renderedTrace)+1)
	for k, v := range renderedTrace {
		doc[k] = v
	}
	doc["createAt"] = now
	return doc
}
