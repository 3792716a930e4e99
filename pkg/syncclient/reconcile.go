package syncclient

import (
	"sort"

	"mixroom/pkg/order"
)

// pendingOp is an optimistic local reorder the server has not confirmed yet.
// seq is the monotone local mutation sequence number used to ignore stale
// request responses.
type pendingOp struct {
	seq     uint64
	entryID string
	key     order.Key
}

// reconcile computes the display state: the authoritative server entries
// with pending optimistic reorders re-applied on top, in submission order.
// Pure; it never mutates its inputs.
func reconcile(server []Entry, pending []pendingOp) []Entry {
	out := make([]Entry, len(server))
	copy(out, server)
	for _, op := range pending {
		for i := range out {
			if out[i].ID == op.entryID {
				out[i].Key = op.key
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// unconfirmed drops pending ops the server state already reflects, and ops
// whose entry no longer exists. The broadcast is authoritative: anything it
// does not confirm stays pending only until its own request resolves.
func unconfirmed(server []Entry, pending []pendingOp) []pendingOp {
	var out []pendingOp
	for _, op := range pending {
		for _, e := range server {
			if e.ID == op.entryID {
				if e.Key != op.key {
					out = append(out, op)
				}
				break
			}
		}
	}
	return out
}
