package http

import (
	"time"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/catalog"
)

// SlotsQuery defines query parameters for GET /api/slots.
type SlotsQuery struct {
	Day         string `form:"day" binding:"required"`
	ServiceType string `form:"serviceType"`
	Duration    int    `form:"duration" binding:"omitempty,min=1"`
}

type BookBody struct {
	Name        string `json:"name"`
	Slot        string `json:"slot"`
	ServiceType string `json:"serviceType"`
	Duration    int    `json:"duration"`
}

type BookResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

// CancelBody cancels by EventID when present; Name and Slot are the legacy lookup.
type CancelBody struct {
	Name        string `json:"name"`
	Slot        string `json:"slot"`
	ServiceType string `json:"serviceType"`
	EventID     string `json:"eventId"`
}

type CancelResponse struct {
	Success bool `json:"success"`
}

type RecordResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ServiceType     string    `json:"serviceType,omitempty"`
	ServiceName     string    `json:"serviceName,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	Price           int       `json:"price,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description,omitempty"`
}

func NewRecordResponse(b *booking.Booking, loc *time.Location) RecordResponse {
	return RecordResponse{
		ID:              b.ID,
		Name:            b.RequesterName,
		ServiceType:     b.ServiceType,
		ServiceName:     b.ServiceName,
		DurationMinutes: b.DurationMinutes,
		Price:           b.Price,
		Start:           b.Start.In(loc),
		End:             b.End.In(loc),
		Summary:         b.Summary,
		Description:     b.Description,
	}
}

type ServiceResponse struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	Price           int    `json:"price"`
	PriceLabel      string `json:"priceLabel,omitempty"`
	Description     string `json:"description,omitempty"`
}

func NewServiceResponse(s catalog.Service) ServiceResponse {
	return ServiceResponse{
		Key:             s.Key,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		PriceLabel:      s.PriceLabel(),
		Description:     s.Description,
	}
}
