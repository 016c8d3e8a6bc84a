// CLAUDE:SUMMARY Content-addressed image naming: md5(raw HTML) + 1-based block position, memoized.
package layout

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
)

// hashCache memoizes the digest of raw HTML pages. The same page is hashed
// once per block during sanitation and again during image extraction, so the
// cache saves repeated digests of large documents. It is a pure memoization
// and may be dropped at any time.
var hashCache = struct {
	sync.Mutex
	m map[string]string
}{m: make(map[string]string)}

const hashCacheLimit = 1024

func hashHTML(rawHTML string) string {
	hashCache.Lock()
	defer hashCache.Unlock()
	if h, ok := hashCache.m[rawHTML]; ok {
		return h
	}
	sum := md5.Sum([]byte(rawHTML))
	h := hex.EncodeToString(sum[:])
	if len(hashCache.m) >= hashCacheLimit {
		hashCache.m = make(map[string]string)
	}
	hashCache.m[rawHTML] = h
	return h
}

// ImageName returns the deterministic name for the image cropped from the
// block at the given 1-based position. The position counts all top-level
// blocks, not only image blocks, so sanitized src attributes and extracted
// crops correlate by name.
func ImageName(rawHTML string, divIdx int) string {
	return fmt.Sprintf("%s_%d_img.webp", hashHTML(rawHTML), divIdx)
}
