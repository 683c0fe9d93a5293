package models

import "time"

// Blob is an object stored in the blob store: its key and the URL clients
// use to fetch it.
type Blob struct {
	Key string
	URL string
}

// StoredObject is a listing entry of the blob store.
type StoredObject struct {
	Key          string
	LastModified time.Time
}
