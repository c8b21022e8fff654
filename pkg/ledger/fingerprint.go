package ledger

import (
	"crypto/md5"
	"encoding/hex"
)

// fingerprintLength keeps keys compatible with ledgers written by the earlier crawler
const fingerprintLength = 12

// Fingerprint returns the ledger key for a URL: the first 12 hex characters of its MD5 digest
func Fingerprint(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
