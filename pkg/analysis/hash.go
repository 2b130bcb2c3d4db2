package analysis

import "github.com/minio/highwayhash"

var hashKey = []byte("cellgraph-analysis-cache-key-v1!")

// promptKey hashes the prompt parts into a cache key.
func promptKey(parts ...[]byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	for _, p := range parts {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64(), nil
}
