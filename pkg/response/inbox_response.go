// Package response provides API response helpers.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries list metadata.
type Meta struct {
	Total int `json:"total"`
}

// OK returns a successful response.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

// OKWithMessage returns a successful response with a human readable summary.
func OKWithMessage(c *fiber.Ctx, data any, message string) error {
	return c.JSON(Response{Success: true, Data: data, Message: message})
}

// List returns a successful list response with its total.
func List(c *fiber.Ctx, data any, total int) error {
	return c.JSON(Response{Success: true, Data: data, Meta: &Meta{Total: total}})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}
