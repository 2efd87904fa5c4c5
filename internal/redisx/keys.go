package redisx

import "time"

const (
	// Mutual exclusion: lock:{resource} -> owner token
	KeyLock = "lock:%s"

	// Cache order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Analytics: sales:{product_id}:{yyyy-mm-dd} -> cents sold
	KeySalesDay = "sales:%s:%s"

	// Analytics: active_users:{yyyy-mm-dd} -> set of user ids
	KeyActiveUsers = "active_users:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLAnalytics   = 90 * 24 * time.Hour
)
