package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	pdfMIME  = "application/pdf"
	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DownloadHandler serves placeholder files. Document rendering is not built;
// the routes only exercise the permission gate.
type DownloadHandler struct {
	mockAllow bool
}

func NewDownloadHandler(mockAllow bool) *DownloadHandler {
	return &DownloadHandler{mockAllow: mockAllow}
}

func (h *DownloadHandler) allowed(c *fiber.Ctx) bool {
	return h.mockAllow || c.Query("mock_allow") == "true"
}

func (h *DownloadHandler) Permission(c *fiber.Ctx) error {
	if h.allowed(c) {
		return respData(c, fiber.Map{"allowed": true})
	}
	return respData(c, fiber.Map{"allowed": false, "reason": "downloads are not enabled"})
}

func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	if !h.allowed(c) {
		return respErr(c, fiber.StatusForbidden, "permission_denied", "permission denied", nil)
	}

	format := "pdf"
	contentType := pdfMIME
	switch c.Query("format", "pdf") {
	case "pdf":
	case "docx":
		format, contentType = "docx", docxMIME
	default:
		return badRequest(c, "format must be pdf or docx")
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="contract.%s"`, format))
	return c.SendString(fmt.Sprintf("Contract download placeholder (%s). Replace with generated document.", format))
}
