package handlers

import (
	"io"
	"net/http"
	"strings"

	"busbook/internal/domain"
	"busbook/internal/http/middleware"
	"busbook/internal/services"

	"github.com/gin-gonic/gin"
)

const defaultReceiptLimit = 5 << 20

// POST /api/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req services.CreateBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	req.Passenger.UserID = strings.TrimSpace(req.Passenger.UserID)
	if req.Passenger.UserID == "" && middleware.GetUserRole(c) == domain.RoleTraveler {
		req.Passenger.UserID = middleware.GetUserID(c)
	}
	if req.Passenger.UserID != "" && !authorizeAccount(c, req.Passenger.UserID) {
		return
	}
	booking, err := h.Bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/bookings/:ref
func (h *Handler) GetBooking(c *gin.Context) {
	booking, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type paymentRequest struct {
	Provider string `json:"provider"`
}

// POST /api/bookings/:ref/payments
func (h *Handler) InitializePayment(c *gin.Context) {
	var req paymentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	init, err := h.Bookings.InitializePayment(c.Request.Context(), c.Param("ref"), req.Provider)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, init)
}

// POST /api/bookings/:ref/verify
func (h *Handler) VerifyPayment(c *gin.Context) {
	res, err := h.Reconcile.VerifyBooking(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/bookings/:ref/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	h.cancel(c, "traveler")
}

// POST /api/admin/bookings/:ref/cancel
func (h *Handler) AdminCancelBooking(c *gin.Context) {
	h.cancel(c, "admin:"+middleware.GetUserID(c))
}

func (h *Handler) cancel(c *gin.Context, actor string) {
	booking, err := h.Bookings.CancelBooking(c.Request.Context(), c.Param("ref"), actor)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// POST /api/admin/bookings/:ref/complete
func (h *Handler) AdminCompleteBooking(c *gin.Context) {
	booking, err := h.Bookings.CompleteBooking(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type reviewRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// POST /api/admin/bookings/:ref/review
func (h *Handler) AdminResolveReview(c *gin.Context) {
	var req reviewRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Reconcile.ResolveReview(c.Request.Context(), c.Param("ref"), *req.Accept)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/bookings/:ref/receipts (multipart, field "file")
func (h *Handler) UploadReceipt(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "file: required", nil)
		return
	}
	limit := h.Receipts.MaxBytes
	if limit <= 0 {
		limit = defaultReceiptLimit
	}
	if fh.Size > limit {
		RespondDomainError(c, domain.ValidationError{Field: "file", Msg: "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "file: unreadable", nil)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "file: unreadable", nil)
		return
	}

	receipt, err := h.Receipts.Upload(c.Request.Context(), c.Param("ref"), fh.Filename, content)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GET /api/bookings/:ref/ticket
func (h *Handler) GetTicket(c *gin.Context) {
	booking, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if booking.Ticket == "" {
		RespondDomainError(c, domain.ConflictError{Resource: "ticket", Msg: "booking is not paid"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference": booking.Reference,
		"tripId":    booking.TripID,
		"seats":     booking.Seats,
		"ticket":    booking.Ticket,
	})
}

// GET /api/bookings/:ref/ticket.pdf
func (h *Handler) GetTicketPDF(c *gin.Context) {
	pdf, filename, err := h.Docs.TicketPDF(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, pdf, filename)
}

// GET /api/bookings/:ref/invoice.pdf
func (h *Handler) GetInvoicePDF(c *gin.Context) {
	pdf, filename, err := h.Docs.InvoicePDF(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, pdf, filename)
}

func sendPDF(c *gin.Context, pdf []byte, filename string) {
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
