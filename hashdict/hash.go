package hashdict

const (
	fnvOffsetBasis uint32 = 0x811C9DC5
	fnvPrime       uint32 = 0x01000193
)

// FNV1a32 hashes key with the fixed seed and multiplier the dict's bucket
// placement contract requires for deterministic replay across runs: given
// the same keys in the same order, bucket assignment is reproducible.
func FNV1a32(key []byte) uint32 {
	h := fnvOffsetBasis
	for _, b := range key {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return h
}
