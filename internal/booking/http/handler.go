package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

//
// GET /api/slots
//

func (h *Handler) Slots(c *gin.Context) {
	var query SlotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	loc := h.service.Rules().Location
	day, err := request.ParseDay(query.Day, loc)
	if err != nil {
		response.BadRequest(c, "invalid date format", err)
		return
	}

	slots, err := h.service.Slots(c.Request.Context(), booking.SlotsRequest{
		Day:             day,
		ServiceType:     query.ServiceType,
		DurationMinutes: query.Duration,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = request.FormatSlot(s, loc)
	}
	c.JSON(http.StatusOK, out)
}

//
// POST /api/book
//

func (h *Handler) Book(c *gin.Context) {
	var body BookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	slot, err := request.ParseSlot(body.Slot, h.service.Rules().Location)
	if err != nil {
		response.BadRequest(c, booking.ErrInvalidSlot.Message, err)
		return
	}

	b, err := h.service.Book(c.Request.Context(), booking.BookRequest{
		Name:            body.Name,
		Slot:            slot,
		ServiceType:     body.ServiceType,
		DurationMinutes: body.Duration,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, BookResponse{Success: true, EventID: b.ID})
}

//
// POST /api/cancel
//

func (h *Handler) Cancel(c *gin.Context) {
	var body CancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	req := booking.CancelRequest{
		EventID:     body.EventID,
		Name:        body.Name,
		ServiceType: body.ServiceType,
	}
	if req.EventID == "" {
		slot, err := request.ParseSlot(body.Slot, h.service.Rules().Location)
		if err != nil {
			response.BadRequest(c, booking.ErrInvalidSlot.Message, err)
			return
		}
		req.Slot = slot
	}

	if _, err := h.service.Cancel(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, CancelResponse{Success: true})
}

//
// GET /api/records
//

func (h *Handler) Records(c *gin.Context) {
	bookings, err := h.service.Upcoming(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	loc := h.service.Rules().Location
	items := make([]RecordResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewRecordResponse(b, loc)
	}
	c.JSON(http.StatusOK, items)
}

//
// GET /api/services
//

func (h *Handler) Services(c *gin.Context) {
	services := h.service.Catalog().All()
	items := make([]ServiceResponse, len(services))
	for i, s := range services {
		items[i] = NewServiceResponse(s)
	}
	c.JSON(http.StatusOK, items)
}
