package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/widget-claims/internal/catalog"
	"github.com/kursadbilgin/widget-claims/internal/domain"
	"github.com/kursadbilgin/widget-claims/internal/identity"
	"github.com/kursadbilgin/widget-claims/internal/service"
	"github.com/kursadbilgin/widget-claims/internal/web"
)

const (
	msgClaimInvalid      = "Please choose a widget and enter an email."
	msgRateLimited       = "Rate limit reached. Please try again later."
	msgGatewayFailed     = "We could not send your confirmation email. Please try again."
	msgClaimNotFound     = "We could not find your claim. Please try a fresh request from the home page."
	msgWidgetDetailsGone = "We could not locate the widget details."
	msgConfirmFirst      = "Please confirm your email before downloading."
	msgDownloadGone      = "Widget download is unavailable."
	msgDownloadFailed    = "Download failed. Please contact support."
	msgPageNotFound      = "Page not found."
)

type ClaimService interface {
	Submit(ctx context.Context, in service.SubmitInput) (*domain.Claim, error)
	Confirm(ctx context.Context, keys service.LookupKeys) (*service.Confirmation, error)
}

type DownloadGate interface {
	Open(ctx context.Context, token string) (*service.Delivery, error)
	Stream(ctx context.Context, d *service.Delivery, w io.Writer) error
}

type ClaimHandler struct {
	claims  ClaimService
	gate    DownloadGate
	widgets catalog.Provider
	site    web.Site
	ipSalt  string
}

func NewClaimHandler(
	claims ClaimService,
	gate DownloadGate,
	widgets catalog.Provider,
	site web.Site,
	ipSalt string,
) (*ClaimHandler, error) {
	if claims == nil {
		return nil, fmt.Errorf("claim service is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("download gate is required")
	}
	if widgets == nil {
		return nil, fmt.Errorf("widget catalog is required")
	}

	return &ClaimHandler{
		claims:  claims,
		gate:    gate,
		widgets: widgets,
		site:    site,
		ipSalt:  ipSalt,
	}, nil
}

func RegisterClaimRoutes(
	router fiber.Router,
	claims ClaimService,
	gate DownloadGate,
	widgets catalog.Provider,
	site web.Site,
	ipSalt string,
) error {
	h, err := NewClaimHandler(claims, gate, widgets, site, ipSalt)
	if err != nil {
		return err
	}

	router.Get("/", h.ClaimForm)
	router.Get("/claim", h.ClaimForm)
	router.Post("/claim", h.SubmitClaim)
	router.Get("/check-email", h.CheckEmail)
	router.Get("/confirmed", h.Confirmed)
	router.Get("/download/:token", h.Download)

	return nil
}

// NotFound is the catch-all for unmatched routes. Register it last.
func NotFound(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound, msgPageNotFound)
}

type claimRequest struct {
	Email    string `json:"email" form:"email"`
	WidgetID string `json:"widget_id" form:"widget_id"`
}

func (h *ClaimHandler) ClaimForm(c *fiber.Ctx) error {
	return h.renderClaimForm(c, fiber.StatusOK, "", "")
}

func (h *ClaimHandler) SubmitClaim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return h.renderClaimForm(c, fiber.StatusBadRequest, msgClaimInvalid, "")
	}

	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}

	claim, err := h.claims.Submit(c.UserContext(), service.SubmitInput{
		Email:        req.Email,
		WidgetID:     req.WidgetID,
		IdentityHash: identity.HashIP(ip, h.ipSalt),
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		return h.renderClaimForm(c, fiber.StatusBadRequest, msgClaimInvalid, req.Email)
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, domain.ErrGateway):
		return fiber.NewError(fiber.StatusBadGateway, msgGatewayFailed)
	default:
		return err
	}

	return c.Redirect("/check-email?email="+url.QueryEscape(claim.Email), fiber.StatusFound)
}

func (h *ClaimHandler) CheckEmail(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Redirect("/claim", fiber.StatusFound)
	}

	return c.Render("check_email", h.page("Check your email", func(p *web.Page) {
		p.Email = email
	}))
}

func (h *ClaimHandler) Confirmed(c *fiber.Ctx) error {
	subscriberID := strings.TrimSpace(c.Query("ck_subscriber_id"))
	if subscriberID == "" {
		subscriberID = strings.TrimSpace(c.Query("subscriber_id"))
	}

	confirmation, err := h.claims.Confirm(c.UserContext(), service.LookupKeys{
		SubscriberID: subscriberID,
		Token:        c.Query("token"),
		Email:        c.Query("email"),
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, msgClaimNotFound)
	case errors.Is(err, domain.ErrWidgetGone):
		return fiber.NewError(fiber.StatusNotFound, msgWidgetDetailsGone)
	default:
		return err
	}

	return c.Render("confirmed", h.page("Your Widget is Ready!", func(p *web.Page) {
		p.Widget = confirmation.Widget
		p.DownloadURL = "/download/" + url.PathEscape(confirmation.Claim.ClaimToken)
	}))
}

func (h *ClaimHandler) Download(c *fiber.Ctx) error {
	delivery, err := h.gate.Open(c.UserContext(), c.Params("token"))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotConfirmed):
		return fiber.NewError(fiber.StatusForbidden, msgConfirmFirst)
	case errors.Is(err, domain.ErrWidgetGone):
		return fiber.NewError(fiber.StatusNotFound, msgDownloadGone)
	case errors.Is(err, domain.ErrDelivery):
		return fiber.NewError(fiber.StatusInternalServerError, msgDownloadFailed)
	default:
		return err
	}

	if delivery.RedirectURL != "" {
		return c.Redirect(delivery.RedirectURL, fiber.StatusFound)
	}

	c.Attachment(delivery.AssetName)
	if err := h.gate.Stream(c.UserContext(), delivery, c.Response().BodyWriter()); err != nil {
		c.Response().ResetBody()
		c.Response().Header.Del(fiber.HeaderContentDisposition)
		return fiber.NewError(fiber.StatusInternalServerError, msgDownloadFailed)
	}
	return nil
}

func (h *ClaimHandler) renderClaimForm(c *fiber.Ctx, status int, message, email string) error {
	widgets, err := h.widgets.List(c.UserContext())
	if err != nil {
		return fmt.Errorf("failed to load widget catalog: %w", err)
	}

	return c.Status(status).Render("claim", h.page("Claim your free widget", func(p *web.Page) {
		p.Error = message
		p.Email = strings.TrimSpace(email)
		p.Widgets = widgets
	}))
}

func (h *ClaimHandler) page(title string, fill func(*web.Page)) web.Page {
	p := web.Page{Site: h.site, Title: title}
	if fill != nil {
		fill(&p)
	}
	return p
}
