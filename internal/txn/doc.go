// Package txn provides lock-free transactional updates over shared references
// to persistent (structurally shared) collections.
//
// A Cell holds the current version of an immutable value. Writers derive a new
// version from the snapshot they observed and publish it with compare-and-swap,
// retrying when another writer got there first. Readers never block and always
// see a complete version.
//
//	handlers := txn.NewCell(txn.NewList[Handler]())
//	handlers.Update(func(l *txn.List[Handler]) *txn.List[Handler] {
//	    return l.Append(h)
//	})
//
//	for _, h := range handlers.Load().All() {
//	    ...
//	}
package txn
