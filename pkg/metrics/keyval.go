package metrics

// KeyVal holds the most recent raw string value for a "k"-typed
// sample. Unlike every other kind, key_val is a passthrough: it
// carries no numeric aggregation and is only ever emitted by the
// stream sink (spec.md's "stream-only passthrough"), never batched
// into the HTTP sink's JSON payloads.
type KeyVal struct {
	value string
}

func newKeyVal() *KeyVal {
	return &KeyVal{}
}

func (k *KeyVal) AddSample(value string) {
	k.value = value
}

func (k *KeyVal) Value() string { return k.value }
