package reconcile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Fingerprint digests the receipt identity, its stated total, and every
// item's (id, quantity, unit price, total price) sorted by id. Item order and
// non-numeric fields do not affect it. Decimals are written in canonical form
// so 10.00 and 10 hash alike.
func Fingerprint(r *entity.Receipt) string {
	items := make([]entity.ReceiptItem, len(r.Items))
	copy(items, r.Items)
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].ID[:], items[j].ID[:]) < 0
	})

	var b bytes.Buffer
	b.WriteString(r.ID.String())
	b.WriteByte('|')
	b.WriteString(r.TotalAmount.String())
	for _, it := range items {
		b.WriteByte('|')
		b.WriteString(it.ID.String())
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteByte(',')
		b.WriteString(it.UnitPrice.String())
		b.WriteByte(',')
		b.WriteString(it.TotalPrice.String())
	}

	sum := sha256.Sum256(b.Bytes())
	return hex.EncodeToString(sum[:])
}
