package shmvars

// KeyValuePair is a tuple used when handing out ordered snapshots of the
// variable table.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}
