package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/metrics"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// BoardingPolicy bounds when a valid ticket may board.
type BoardingPolicy struct {
	Window time.Duration // opens this long before departure
	Grace  time.Duration // stays open this long after departure
}

type ticketClaims struct {
	Reference string   `json:"ref"`
	TripID    string   `json:"trip"`
	Seats     []string `json:"seats"`
	jwt.RegisteredClaims
}

// TicketService issues and verifies signed tickets. Tokens carry no issue
// time, so the same booking always yields the same token.
type TicketService struct {
	Secret   []byte
	Policy   BoardingPolicy
	Bookings repositories.BookingStore
	Trips    repositories.TripStore
	Now      utils.Clock
}

func (s TicketService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

func (s TicketService) Issue(b models.Booking) (string, error) {
	if len(s.Secret) == 0 {
		return "", domain.InternalError{Msg: "ticket secret not configured"}
	}
	claims := ticketClaims{
		Reference:        b.Reference,
		TripID:           b.TripID,
		Seats:            b.Seats,
		RegisteredClaims: jwt.RegisteredClaims{Subject: b.ID, Issuer: "busbook"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", domain.InternalError{Msg: "sign ticket", Err: err}
	}
	return token, nil
}

// Decode checks the signature and returns the embedded claims.
func (s TicketService) Decode(token string) (models.TicketClaims, error) {
	var claims ticketClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("busbook"))
	if err != nil {
		return models.TicketClaims{}, errors.Join(domain.ErrTicketInvalid, err)
	}
	return models.TicketClaims{
		BookingID: claims.Subject,
		Reference: claims.Reference,
		TripID:    claims.TripID,
		Seats:     claims.Seats,
	}, nil
}

// Verify resolves a scanned token to a boarding decision. Only unexpected
// store failures are returned as errors; every ticket problem is reported in
// the verification itself.
func (s TicketService) Verify(ctx context.Context, token string) (models.TicketVerification, error) {
	res, err := s.verify(ctx, token)
	if err != nil {
		return models.TicketVerification{}, err
	}
	metrics.TicketScans.WithLabelValues(string(res.State)).Inc()
	utils.LogEvent(ctx, "ticket", "verify", "ticket scanned",
		zap.String("state", string(res.State)), zap.Bool("valid", res.Valid))
	return res, nil
}

func (s TicketService) verify(ctx context.Context, token string) (models.TicketVerification, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return invalidTicket(domain.ErrTicketInvalid), nil
	}
	booking, err := s.Bookings.GetBookingByReference(ctx, claims.Reference)
	if domain.IsNotFound(err) {
		return invalidTicket(domain.ErrTicketInvalid), nil
	}
	if err != nil {
		return models.TicketVerification{}, err
	}
	if booking.ID != claims.BookingID || booking.TripID != claims.TripID || !slices.Equal(booking.Seats, claims.Seats) {
		return invalidTicket(domain.ErrTicketInvalid), nil
	}
	trip, err := s.Trips.GetTrip(ctx, booking.TripID)
	if domain.IsNotFound(err) {
		return invalidTicket(domain.ErrTicketInvalid), nil
	}
	if err != nil {
		return models.TicketVerification{}, err
	}

	res := EvaluateBoarding(booking, trip, s.now()(), s.Policy)
	res.Booking = &booking
	return res, nil
}

// EvaluateBoarding is the pure boarding decision for a booking at now.
func EvaluateBoarding(b models.Booking, trip models.Trip, now time.Time, p BoardingPolicy) models.TicketVerification {
	switch b.Status {
	case domain.BookingCancelled:
		return result(domain.TicketBoardingEnded, domain.ErrTicketExpired)
	case domain.BookingPending:
		return invalidTicket(domain.ErrTicketInvalid)
	}
	if !trip.Active {
		return result(domain.TicketBoardingEnded, domain.ErrTicketExpired)
	}
	opens := trip.DepartureAt.Add(-p.Window)
	closes := trip.DepartureAt.Add(p.Grace)
	switch {
	case now.Before(opens):
		return result(domain.TicketTooEarly, domain.ErrTicketTooEarly)
	case now.After(closes):
		return result(domain.TicketBoardingEnded, domain.ErrTicketExpired)
	}
	return models.TicketVerification{Valid: true, State: domain.TicketBoarding}
}

func invalidTicket(reason error) models.TicketVerification {
	return result(domain.TicketInvalid, reason)
}

func result(state domain.TicketState, reason error) models.TicketVerification {
	return models.TicketVerification{State: state, Reason: reason.Error()}
}
