package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/catalog"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/request"
)

var ErrMalformedPayload = errors.New("malformed booking payload")

// Payload is what the booking web app sends back to the chat.
// massageType/massageName are the field names older web app builds use.
type Payload struct {
	Slot        string `json:"slot"`
	Name        string `json:"name"`
	ServiceType string `json:"serviceType"`
	MassageType string `json:"massageType"`
	ServiceName string `json:"serviceName"`
	MassageName string `json:"massageName"`
	Price       int    `json:"price"`
	Duration    int    `json:"duration"`
}

// looksLikePayload reports whether text is meant to be a JSON booking.
func looksLikePayload(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "{")
}

func DecodePayload(text string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

func (p Payload) serviceType() string {
	if p.ServiceType != "" {
		return p.ServiceType
	}
	return p.MassageType
}

func (p Payload) serviceName() string {
	if p.ServiceName != "" {
		return p.ServiceName
	}
	return p.MassageName
}

// Mismatches lists the fields where the web app showed the client something
// other than the catalog entry the booking will use.
func (p Payload) Mismatches(svc catalog.Service) []string {
	var out []string
	if name := strings.TrimSpace(p.serviceName()); name != "" && !strings.EqualFold(name, svc.Name) {
		out = append(out, fmt.Sprintf("name %q, catalog %q", name, svc.Name))
	}
	if p.Price != 0 && p.Price != svc.Price {
		out = append(out, fmt.Sprintf("price %d, catalog %d", p.Price, svc.Price))
	}
	return out
}

// Request turns the payload into a booking request. fallbackName is used when the payload carries no name.
func (p Payload) Request(fallbackName string, loc *time.Location) (booking.BookRequest, error) {
	slot, err := request.ParseSlot(p.Slot, loc)
	if err != nil {
		return booking.BookRequest{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = strings.TrimSpace(fallbackName)
	}

	return booking.BookRequest{
		Name:            name,
		Slot:            slot,
		ServiceType:     p.serviceType(),
		DurationMinutes: p.Duration,
	}, nil
}
