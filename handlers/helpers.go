package handlers

import (
	"os"
	"strconv"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// redirectURL is where the gateway sends the customer after payment; the
// storefront then calls the completion endpoint with the transaction id.
func redirectURL() string {
	return getEnv("CHECKOUT_REDIRECT_URL", "http://localhost:5173/checkout/complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
