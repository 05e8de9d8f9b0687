// Package cmap is a concurrent map split into independently locked
// shards. Keys are spread over shards with hash/maphash.
//
// Callbacks given to Range, DeleteIf and Sweep run with a shard lock held
// and must not call back into the map.
//
//	m := cmap.New[string, Session]()
//	m.Set(hash, s)
//	n := m.Sweep(func(_ string, s Session) bool { return s.ExpiredAt(now) })
package cmap
