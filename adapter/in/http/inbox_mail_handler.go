package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/response"
)

// MailHandler serves the mailbox routes.
type MailHandler struct {
	mailService in.MailService
	windowDays  int
}

func NewMailHandler(mailService in.MailService, windowDays int) *MailHandler {
	return &MailHandler{mailService: mailService, windowDays: windowDays}
}

// Register registers mail routes.
func (h *MailHandler) Register(app fiber.Router) {
	mails := app.Group("/mails")
	mails.Post("/connect_mail", h.Connect)
	mails.Get("/session", h.Session)
	mails.Post("/insert_mails_into_database", h.Ingest)
	mails.Post("/send_mail", h.Send)
	mails.Delete("/delete-selected", h.DeleteSelected)
	mails.Get("/labels", h.Labels)
	mails.Get("/:category", h.ListByCategory)
}

// =============================================================================
// Session
// =============================================================================

func (h *MailHandler) Connect(c *fiber.Ctx) error {
	session, err := h.mailService.Connect(c.UserContext())
	if err != nil {
		return err
	}
	return response.OKWithMessage(c, session, "mailbox connected")
}

func (h *MailHandler) Session(c *fiber.Ctx) error {
	session, err := h.mailService.CurrentSession(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, session)
}

// =============================================================================
// Ingest
// =============================================================================

type ingestResponse struct {
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	Listed         int `json:"listed"`
	FetchFailed    int `json:"fetch_failed"`
	ClassifyFailed int `json:"classify_failed"`
}

// Ingest runs one fetch/classify/reconcile pass. ?days= overrides the window.
func (h *MailHandler) Ingest(c *fiber.Ctx) error {
	days := c.QueryInt("days", h.windowDays)
	if days <= 0 {
		return apperr.BadRequest("days must be positive")
	}

	result, err := h.mailService.Run(c.UserContext(), days)
	if err != nil {
		return err
	}
	return response.OK(c, ingestResponse{
		Inserted:       result.Sync.Inserted,
		Updated:        result.Sync.Updated,
		Skipped:        result.Sync.Skipped,
		Listed:         result.Fetch.Listed,
		FetchFailed:    result.Fetch.Failed,
		ClassifyFailed: result.ClassifyFailed,
	})
}

// =============================================================================
// Query
// =============================================================================

func (h *MailHandler) ListByCategory(c *fiber.Ctx) error {
	mails, err := h.mailService.ListByCategory(c.UserContext(), c.Params("category"))
	if err != nil {
		return err
	}
	if mails == nil {
		mails = []*domain.MailRecord{}
	}
	return response.List(c, fiber.Map{"mails": mails}, len(mails))
}

func (h *MailHandler) Labels(c *fiber.Ctx) error {
	return response.List(c, domain.Labels, len(domain.Labels))
}

// =============================================================================
// Send
// =============================================================================

type sendRequest struct {
	To      string `json:"to" query:"to"`
	Subject string `json:"subject" query:"subject"`
	Body    string `json:"body" query:"body"`
}

// Send accepts a JSON body or the to/subject/body query parameters.
func (h *MailHandler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.BadRequest("invalid request body")
		}
	}
	if req.To == "" {
		if err := c.QueryParser(&req); err != nil {
			return apperr.BadRequest("invalid query parameters")
		}
	}

	id, err := h.mailService.Send(c.UserContext(), req.To, req.Subject, req.Body)
	if err != nil {
		return err
	}
	return response.OKWithMessage(c, fiber.Map{"message_id": id}, "mail sent")
}

// =============================================================================
// Delete
// =============================================================================

type deleteRequest struct {
	MailIDs []string `json:"mail_ids"`
}

type deleteResponse struct {
	Message      string            `json:"message"`
	DeletedCount int               `json:"deleted_count"`
	FailedIDs    []domain.FailedID `json:"failed_ids"`
}

func (h *MailHandler) DeleteSelected(c *fiber.Ctx) error {
	var req deleteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.MailIDs == nil {
		return apperr.BadRequest("mail_ids is required")
	}

	result, err := h.mailService.Delete(c.UserContext(), req.MailIDs)
	if err != nil {
		return err
	}

	msg := "mails deleted"
	if len(result.Failed) > 0 {
		ids := make([]string, len(result.Failed))
		for i, f := range result.Failed {
			ids[i] = f.ID
		}
		msg = "some mails could not be deleted: " + strings.Join(ids, ", ")
	}
	return response.OK(c, deleteResponse{
		Message:      msg,
		DeletedCount: result.DeletedCount,
		FailedIDs:    result.Failed,
	})
}
