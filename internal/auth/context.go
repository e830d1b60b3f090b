package auth

import "github.com/gofiber/fiber/v2"

// Identity headers are populated by the API gateway in front of this
// service; locals win when auth middleware has already resolved them.

func GetMerchantID(c *fiber.Ctx) string {
	if val, ok := c.Locals("merchant_id").(string); ok && val != "" {
		return val
	}
	return c.Get("X-Merchant-Id")
}

func GetUserID(c *fiber.Ctx) string {
	if val, ok := c.Locals("user_id").(string); ok && val != "" {
		return val
	}
	return c.Get("X-User-Id")
}
