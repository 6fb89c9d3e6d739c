package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultKey is used when a request names no service type.
const DefaultKey = "classic"

var ErrEmpty = errors.New("service catalog is empty")

// Service is one bookable massage type.
type Service struct {
	Key             string `mapstructure:"key" json:"key"`
	Name            string `mapstructure:"name" json:"name"`
	DurationMinutes int    `mapstructure:"duration_minutes" json:"durationMinutes"`
	Price           int    `mapstructure:"price" json:"price"`
	Currency        string `mapstructure:"currency" json:"currency"`
	Description     string `mapstructure:"description" json:"description,omitempty"`
}

// PriceLabel renders the price for messages, e.g. "2500 ₽".
func (s Service) PriceLabel() string {
	if s.Price == 0 {
		return ""
	}
	switch s.Currency {
	case "", "RUB":
		return fmt.Sprintf("%d ₽", s.Price)
	default:
		return fmt.Sprintf("%d %s", s.Price, s.Currency)
	}
}

// Catalog is an immutable, ordered set of services keyed by Service.Key.
type Catalog struct {
	order []string
	items map[string]Service
}

// New builds a catalog. Keys are matched case-insensitively.
func New(services []Service) (*Catalog, error) {
	if len(services) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{items: make(map[string]Service, len(services))}
	for _, s := range services {
		key := normalize(s.Key)
		if key == "" {
			return nil, fmt.Errorf("service %q has no key", s.Name)
		}
		if s.DurationMinutes <= 0 {
			return nil, fmt.Errorf("service %q: duration must be positive", key)
		}
		if _, dup := c.items[key]; dup {
			return nil, fmt.Errorf("service %q defined twice", key)
		}
		s.Key = key
		if s.Name == "" {
			s.Name = key
		}
		c.items[key] = s
		c.order = append(c.order, key)
	}
	return c, nil
}

// Default returns the built-in price list.
func Default() *Catalog {
	c, _ := New([]Service{
		{Key: "classic", Name: "Classic massage", DurationMinutes: 60, Price: 2500, Currency: "RUB", Description: "Relaxing classic massage"},
		{Key: "therapeutic", Name: "Therapeutic massage", DurationMinutes: 80, Price: 3500, Currency: "RUB", Description: "Deep therapeutic massage"},
		{Key: "fullbody", Name: "Full body massage", DurationMinutes: 90, Price: 4000, Currency: "RUB", Description: "Complete full body session"},
		{Key: "express", Name: "Express massage", DurationMinutes: 40, Price: 1800, Currency: "RUB", Description: "Quick targeted massage"},
	})
	return c
}

// Load reads a catalog from a YAML, JSON or TOML file with a top-level "services" list.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read service catalog %s: %w", path, err)
	}

	var services []Service
	if err := v.UnmarshalKey("services", &services); err != nil {
		return nil, fmt.Errorf("decode service catalog %s: %w", path, err)
	}
	return New(services)
}

// Lookup returns the service for key; an empty key resolves to DefaultKey.
func (c *Catalog) Lookup(key string) (Service, bool) {
	key = normalize(key)
	if key == "" {
		key = DefaultKey
	}
	s, ok := c.items[key]
	return s, ok
}

// All returns the services in declaration order.
func (c *Catalog) All() []Service {
	out := make([]Service, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
