package orderapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rider-tracking-service/internal/domain"
)

type listOrdersResponse struct {
	Orders []wireOrder `json:"orders"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// wireOrder is the order shape as sent by the order API. Several fields
// arrive in more than one encoding; normalizeOrder folds them into domain.Order.
type wireOrder struct {
	ID                json.RawMessage `json:"id"`
	Status            string          `json:"status"`
	DeliveryFullName  string          `json:"delivery_full_name"`
	DeliveryPhone     string          `json:"delivery_phone"`
	Latitude          optFloat        `json:"latitude"`
	Longitude         optFloat        `json:"longitude"`
	CustomerLatitude  optFloat        `json:"customer_latitude"`
	CustomerLongitude optFloat        `json:"customer_longitude"`
	Items             json.RawMessage `json:"items"`
	TotalAmount       json.RawMessage `json:"total_amount"`
	CreatedAt         string          `json:"created_at"`
}

type wireItem struct {
	ProductName string `json:"product_name"`
	Name        string `json:"name"`
	Quantity    optInt `json:"quantity"`
}

// optFloat accepts a JSON number, a numeric string, null or an empty string.
type optFloat struct {
	Value float64
	Set   bool
}

func (f *optFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = optFloat{}
		return nil
	}
	s = strings.Trim(s, `"`)
	if strings.TrimSpace(s) == "" {
		*f = optFloat{}
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// Unparseable coordinates are treated as absent.
		*f = optFloat{}
		return nil
	}
	*f = optFloat{Value: v, Set: true}
	return nil
}

// optInt accepts a JSON number or a numeric string.
type optInt int

func (i *optInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = optInt(v)
	return nil
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var errMissingID = errors.New("order id is missing")

// normalizeOrder converts the wire shape into the canonical domain order.
func normalizeOrder(w wireOrder) (domain.Order, error) {
	id, err := parseID(w.ID)
	if err != nil {
		return domain.Order{}, err
	}

	status, err := domain.ParseStatus(w.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
	}

	return domain.Order{
		ID:               id,
		Status:           status,
		DeliveryFullName: strings.TrimSpace(w.DeliveryFullName),
		DeliveryPhone:    strings.TrimSpace(w.DeliveryPhone),
		Destination:      pickDestination(w),
		Items:            parseItems(w.Items),
		TotalAmount:      parseAmount(w.TotalAmount),
		CreatedAt:        parseCreatedAt(w.CreatedAt),
	}, nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errMissingID
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode order id: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errMissingID
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode order id: %w", err)
	}
	return n.String(), nil
}

// pickDestination prefers latitude/longitude and falls back to the
// customer_* pair. Pairs are never mixed and a partial pair is ignored.
func pickDestination(w wireOrder) *domain.Coordinates {
	pairs := [][2]optFloat{
		{w.Latitude, w.Longitude},
		{w.CustomerLatitude, w.CustomerLongitude},
	}

	for _, p := range pairs {
		if !p[0].Set || !p[1].Set {
			continue
		}
		c := domain.Coordinates{Lat: p[0].Value, Lng: p[1].Value}
		if !c.Valid() {
			continue
		}
		return &c
	}

	return nil
}

// parseItems accepts a list or a JSON string encoding a list. Anything that
// does not decode yields an empty list.
func parseItems(raw json.RawMessage) []domain.Item {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Item{}
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return []domain.Item{}
		}
		raw = bytes.TrimSpace([]byte(s))
	}

	if len(raw) == 0 || raw[0] != '[' {
		return []domain.Item{}
	}

	var wire []wireItem
	if err := json.Unmarshal(raw, &wire); err != nil {
		return []domain.Item{}
	}

	items := make([]domain.Item, 0, len(wire))
	for _, wi := range wire {
		name := wi.ProductName
		if name == "" {
			name = wi.Name
		}
		items = append(items, domain.Item{ProductName: name, Quantity: int(wi.Quantity)})
	}
	return items
}

func parseCreatedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseAmount accepts a JSON number or numeric string; anything else is zero.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
