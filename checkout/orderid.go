package checkout

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenerateOrderID produces a human-legible order number such as
// ORD-12345-5F3C1A: the last five digits of the millisecond clock plus three
// random bytes. Collisions are negligible and handled by the uniqueness
// constraint on orders.order_id; the finalizer regenerates on conflict.
func GenerateOrderID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return fmt.Sprintf("ORD-%s-%s", ts[len(ts)-5:], strings.ToUpper(hex.EncodeToString(buf)))
}
