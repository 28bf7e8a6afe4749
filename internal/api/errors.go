package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// errorEnvelope is the structured error body of spec §6/§7: every 4xx/5xx
// response shares this shape instead of ad hoc fiber.Map bodies, per
// SPEC_FULL.md §10.2.
type errorEnvelope struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Details      any    `json:"details,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// fail writes the error envelope at the given HTTP status. Every handler in
// this package returns through this one function so the shape never drifts
// per call site.
func fail(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(errorEnvelope{
		Status:       "error",
		ErrorCode:    code,
		ErrorMessage: message,
		Details:      details,
		Timestamp:    time.Now().Unix(),
	})
}

// Stable error_code strings, per spec §7's taxonomy.
const (
	codeValidation       = "VALIDATION_ERROR"
	codeUnauthorized     = "UNAUTHORIZED"
	codeNotFound         = "NOT_FOUND"
	codeCooldownActive   = "COOLDOWN_ACTIVE"
	codePolicyRejection  = "POLICY_REJECTION"
	codeStateConflict    = "STATE_CONFLICT"
	codeChecksumMismatch = "CHECKSUM_MISMATCH"
	codeInternal         = "INTERNAL_SERVER_ERROR"
)

func failValidation(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusBadRequest, codeValidation, message, nil)
}

func failUnauthorized(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusUnauthorized, codeUnauthorized, message, nil)
}

func failNotFound(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusNotFound, codeNotFound, message, nil)
}

func failCooldown(c *fiber.Ctx, reason string, retryAfterS int) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"status":        "error",
		"error_code":    codeCooldownActive,
		"error_message": reason,
		"retry_after":   retryAfterS,
		"timestamp":     time.Now().Unix(),
	})
}

func failPolicy(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusBadRequest, codePolicyRejection, message, nil)
}

func failConflict(c *fiber.Ctx, code, message string) error {
	return fail(c, fiber.StatusConflict, code, message, nil)
}

func failInternal(c *fiber.Ctx, err error) error {
	return fail(c, fiber.StatusInternalServerError, codeInternal, err.Error(), nil)
}
