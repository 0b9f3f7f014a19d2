// Package pebblestore is a thin key/value facade over Pebble used to persist
// resolver configuration snapshots between process restarts.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: "./data/config"})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.ReplacePrefix([]byte("svc/"), map[string][]byte{
//	    "svc/event.EventService": raw,
//	})
//	_ = db.Scan([]byte("svc/"), func(k, v []byte) bool { return true })
package pebblestore
