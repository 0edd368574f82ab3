//go:build windows

package buffer

// pooledThreshold is the largest request served without the pool.
const pooledThreshold = 4 << 10
