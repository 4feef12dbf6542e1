package handlers

import (
	"net/http"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/trips/:id/seats
func (h *Handler) GetTripSeats(c *gin.Context) {
	ctx := c.Request.Context()
	trip, err := h.Trips.GetTrip(ctx, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	snap, err := h.Inventory.Snapshot(ctx, trip.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trip":     trip,
		"snapshot": snap,
	})
}

type tripRequest struct {
	ID          string   `json:"id"`
	RouteFrom   string   `json:"routeFrom"`
	RouteTo     string   `json:"routeTo"`
	TotalSeats  int      `json:"totalSeats"`
	SeatLayout  []string `json:"seatLayout"`
	DepartureAt string   `json:"departureAt"`
	ArrivalAt   string   `json:"arrivalAt"`
	BasePrice   int64    `json:"basePrice"`
	Active      *bool    `json:"active"`
}

func (r tripRequest) toTrip() (models.Trip, error) {
	departure, err := utils.ParseDateTime(r.DepartureAt)
	if err != nil {
		return models.Trip{}, domain.ValidationError{Field: "departure_at", Msg: "invalid date time", Err: err}
	}
	var arrival time.Time
	if r.ArrivalAt != "" {
		if arrival, err = utils.ParseDateTime(r.ArrivalAt); err != nil {
			return models.Trip{}, domain.ValidationError{Field: "arrival_at", Msg: "invalid date time", Err: err}
		}
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return models.Trip{
		ID:          r.ID,
		RouteFrom:   r.RouteFrom,
		RouteTo:     r.RouteTo,
		TotalSeats:  r.TotalSeats,
		SeatLayout:  r.SeatLayout,
		DepartureAt: departure,
		ArrivalAt:   arrival,
		BasePrice:   r.BasePrice,
		Active:      active,
	}, nil
}

// POST /api/admin/trips
func (h *Handler) UpsertTrip(c *gin.Context) {
	var req tripRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	trip, err := req.toTrip()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	saved, err := h.Inventory.SaveTrip(c.Request.Context(), trip)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
