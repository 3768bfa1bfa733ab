package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Item is a product or service sold to a customer, owned by exactly one user.
type Item struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Price         float64     `json:"price"`
	InStock       bool        `json:"inStock"`
	ImageURL      string      `json:"imageUrl"`
	MediaFiles    []MediaFile `json:"mediaFiles"`
	CreatedBy     int64       `json:"createdBy"`
	CustomerName  string      `json:"customerName"`
	CustomerPhone string      `json:"customerPhone"`
	CustomerEmail string      `json:"customerEmail"`
	PaymentStatus string      `json:"paymentStatus"`
	InvoiceNumber string      `json:"invoiceNumber"`
	DueDate       *time.Time  `json:"dueDate,omitempty"`
	Notes         string      `json:"notes"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`

	// Joined fields (not always populated).
	Owner *UserRef `json:"owner,omitempty"`
}

// UserRef is the short form of a user joined onto other records.
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MediaFile is an uploaded image or video attached to an item.
type MediaFile struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Media kinds.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Payment statuses.
const (
	PaymentPaid    = "paid"
	PaymentUnpaid  = "unpaid"
	PaymentPending = "pending"
)

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s string) bool {
	return s == PaymentPaid || s == PaymentUnpaid || s == PaymentPending
}

// NewItem holds the fields supplied when creating an item.
type NewItem struct {
	Name          string
	Description   string
	Category      string
	Price         float64
	InStock       Optional[bool]
	ImageURL      string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	PaymentStatus string
	InvoiceNumber string
	DueDate       *time.Time
	Notes         string
	MediaFiles    []MediaFile
}

// Validate checks required fields and value ranges.
func (n NewItem) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(n.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "Item name is required"})
	}
	if strings.TrimSpace(n.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "Item description is required"})
	}
	if strings.TrimSpace(n.Category) == "" {
		errs = append(errs, FieldError{Field: "category", Message: "Category is required"})
	}
	if n.Price < 0 {
		errs = append(errs, FieldError{Field: "price", Message: "must not be negative"})
	}
	if n.PaymentStatus != "" && !ValidPaymentStatus(n.PaymentStatus) {
		errs = append(errs, FieldError{Field: "paymentStatus", Message: "must be paid, unpaid or pending"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// ItemPatch is a sparse update of an item. Only set fields are written.
// MediaFiles are appended to the existing list.
type ItemPatch struct {
	Name          Optional[string]
	Description   Optional[string]
	Category      Optional[string]
	Price         Optional[float64]
	InStock       Optional[bool]
	ImageURL      Optional[string]
	CustomerName  Optional[string]
	CustomerPhone Optional[string]
	CustomerEmail Optional[string]
	PaymentStatus Optional[string]
	DueDate       Optional[*time.Time]
	Notes         Optional[string]
	MediaFiles    []MediaFile
}

// Validate rejects present-but-invalid values. Required fields cannot be cleared.
func (p ItemPatch) Validate() error {
	var errs []FieldError
	for _, f := range []struct {
		name string
		v    Optional[string]
	}{
		{"name", p.Name},
		{"description", p.Description},
		{"category", p.Category},
	} {
		if v, ok := f.v.Get(); ok && strings.TrimSpace(v) == "" {
			errs = append(errs, FieldError{
				Field:   f.name,
				Message: f.name + " cannot be cleared; omit the field to keep the current value",
			})
		}
	}
	if v, ok := p.Price.Get(); ok && v < 0 {
		errs = append(errs, FieldError{Field: "price", Message: "must not be negative"})
	}
	if v, ok := p.PaymentStatus.Get(); ok && !ValidPaymentStatus(v) {
		errs = append(errs, FieldError{Field: "paymentStatus", Message: "must be paid, unpaid or pending"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return !p.Name.IsSet() && !p.Description.IsSet() && !p.Category.IsSet() &&
		!p.Price.IsSet() && !p.InStock.IsSet() && !p.ImageURL.IsSet() &&
		!p.CustomerName.IsSet() && !p.CustomerPhone.IsSet() && !p.CustomerEmail.IsSet() &&
		!p.PaymentStatus.IsSet() && !p.DueDate.IsSet() && !p.Notes.IsSet() &&
		len(p.MediaFiles) == 0
}

// Diff lists changes to the audited item fields as "field: old → new".
func (i Item) Diff(updated Item) []string {
	var changes []string
	changes = appendChange(changes, "name", i.Name, updated.Name)
	changes = appendChange(changes, "description", i.Description, updated.Description)
	changes = appendChange(changes, "category", i.Category, updated.Category)
	changes = appendChange(changes, "price", formatPrice(i.Price), formatPrice(updated.Price))
	changes = appendChange(changes, "inStock", strconv.FormatBool(i.InStock), strconv.FormatBool(updated.InStock))
	changes = appendChange(changes, "paymentStatus", i.PaymentStatus, updated.PaymentStatus)
	return changes
}

func appendChange(changes []string, field, old, updated string) []string {
	if old == updated {
		return changes
	}
	return append(changes, fmt.Sprintf("%s: %s → %s", field, old, updated))
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
