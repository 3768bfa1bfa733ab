package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/marketbook/internal/media"
	"github.com/erazemk/marketbook/internal/model"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// itemRequest is the body of item create and update requests. Absent keys
// stay unset so updates only touch the fields the client sent.
type itemRequest struct {
	Name          model.Optional[string]  `json:"name"`
	Description   model.Optional[string]  `json:"description"`
	Category      model.Optional[string]  `json:"category"`
	Price         model.Optional[float64] `json:"price"`
	InStock       model.Optional[bool]    `json:"inStock"`
	ImageURL      model.Optional[string]  `json:"imageUrl"`
	CustomerName  model.Optional[string]  `json:"customerName"`
	CustomerPhone model.Optional[string]  `json:"customerPhone"`
	CustomerEmail model.Optional[string]  `json:"customerEmail"`
	PaymentStatus model.Optional[string]  `json:"paymentStatus"`
	InvoiceNumber model.Optional[string]  `json:"invoiceNumber"`
	DueDate       model.Optional[string]  `json:"dueDate"`
	Notes         model.Optional[string]  `json:"notes"`

	files []media.File
}

// listItems handles GET /api/items.
func (rt *Router) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := rt.svc.Items.List(r.Context(), UserFrom(r.Context()))
	rt.writeItems(w, r, items, err)
}

// listAllItems handles GET /api/items/admin/all.
func (rt *Router) listAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := rt.svc.Items.ListAll(r.Context(), UserFrom(r.Context()))
	rt.writeItems(w, r, items, err)
}

// itemsByPaymentStatus handles GET /api/items/by-payment-status/{status}.
func (rt *Router) itemsByPaymentStatus(w http.ResponseWriter, r *http.Request) {
	items, err := rt.svc.Items.ByPaymentStatus(r.Context(), UserFrom(r.Context()), r.PathValue("status"))
	rt.writeItems(w, r, items, err)
}

func (rt *Router) writeItems(w http.ResponseWriter, r *http.Request, items []model.Item, err error) {
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// itemStats handles GET /api/items/stats.
func (rt *Router) itemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Items.Stats(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// financialSummary handles GET /api/items/financial-summary.
func (rt *Router) financialSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.svc.Items.FinancialSummary(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// getItem handles GET /api/items/{id}.
func (rt *Router) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := rt.svc.Items.Get(r.Context(), UserFrom(r.Context()), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// createItem handles POST /api/items.
func (rt *Router) createItem(w http.ResponseWriter, r *http.Request) {
	req, err := rt.parseItemRequest(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer req.close()

	n, err := req.newItem()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := n.Validate(); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if n.MediaFiles, err = rt.upload(r, req.files); err != nil {
		rt.writeError(w, r, err)
		return
	}

	item, err := rt.svc.Items.Create(r.Context(), UserFrom(r.Context()), rt.clients.info(r), n)
	if err != nil {
		rt.discard(r, n.MediaFiles)
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// updateItem handles PUT /api/items/{id}.
func (rt *Router) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	req, err := rt.parseItemRequest(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer req.close()

	patch, err := req.patch()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	actor := UserFrom(r.Context())
	if len(req.files) > 0 {
		// Resolve the item first so nothing is stored for a request that
		// would be rejected as missing or forbidden.
		if _, err := rt.svc.Items.Get(r.Context(), actor, id); err != nil {
			rt.writeError(w, r, err)
			return
		}
		if err := patch.Validate(); err != nil {
			rt.writeError(w, r, err)
			return
		}
		if patch.MediaFiles, err = rt.upload(r, req.files); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}

	item, err := rt.svc.Items.Update(r.Context(), actor, rt.clients.info(r), id, patch)
	if err != nil {
		rt.discard(r, patch.MediaFiles)
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// deleteItem handles DELETE /api/items/{id}.
func (rt *Router) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := rt.svc.Items.Delete(r.Context(), UserFrom(r.Context()), rt.clients.info(r), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, messageResponse{Message: "Item removed"})
}

func (rt *Router) upload(r *http.Request, files []media.File) ([]model.MediaFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if rt.uploader == nil {
		return nil, model.NewValidationError("mediaFiles", "file uploads are not enabled")
	}
	return rt.uploader.Upload(r.Context(), files)
}

// discard removes media stored for a request whose ledger write failed.
func (rt *Router) discard(r *http.Request, files []model.MediaFile) {
	if len(files) == 0 || rt.uploader == nil {
		return
	}
	if err := rt.uploader.Discard(context.WithoutCancel(r.Context()), files); err != nil {
		rt.logger.WarnContext(r.Context(), "removing orphaned media failed",
			"files", len(files),
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
	}
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

// parseItemRequest reads a JSON or multipart/form-data item body.
func (rt *Router) parseItemRequest(w http.ResponseWriter, r *http.Request) (*itemRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req itemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, model.NewValidationError("body", "invalid request body")
		}
		return &req, nil
	}

	maxFiles, maxSize := media.DefaultMaxFiles, int64(media.DefaultMaxSize)
	if rt.uploader != nil {
		maxFiles, maxSize = rt.uploader.MaxFiles(), rt.uploader.MaxSize()
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*maxSize+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewValidationError("mediaFiles", "request body too large")
		}
		return nil, model.NewValidationError("body", "invalid multipart body")
	}

	req, err := formItemRequest(r.MultipartForm)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// formItemRequest converts multipart values into an itemRequest. Only keys
// present in the form are set.
func formItemRequest(form *multipart.Form) (*itemRequest, error) {
	req := &itemRequest{}
	value := func(key string) (string, bool) {
		v, ok := form.Value[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}
	str := func(key string, dst *model.Optional[string]) {
		if v, ok := value(key); ok {
			*dst = model.Some(v)
		}
	}

	str("name", &req.Name)
	str("description", &req.Description)
	str("category", &req.Category)
	str("imageUrl", &req.ImageURL)
	str("customerName", &req.CustomerName)
	str("customerPhone", &req.CustomerPhone)
	str("customerEmail", &req.CustomerEmail)
	str("paymentStatus", &req.PaymentStatus)
	str("invoiceNumber", &req.InvoiceNumber)
	str("dueDate", &req.DueDate)
	str("notes", &req.Notes)

	var errs []model.FieldError
	if v, ok := value("price"); ok {
		price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "price", Message: "must be a number"})
		} else {
			req.Price = model.Some(price)
		}
	}
	if v, ok := value("inStock"); ok {
		inStock, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, model.FieldError{Field: "inStock", Message: "must be true or false"})
		} else {
			req.InStock = model.Some(inStock)
		}
	}
	if len(errs) > 0 {
		return nil, model.NewValidationErrors(errs)
	}

	for _, fh := range form.File["mediaFiles"] {
		f, err := fh.Open()
		if err != nil {
			req.close()
			return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
		}
		req.files = append(req.files, media.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return req, nil
}

func (req *itemRequest) close() {
	for _, f := range req.files {
		if c, ok := f.Body.(multipart.File); ok {
			c.Close()
		}
	}
}

func (req *itemRequest) newItem() (model.NewItem, error) {
	var errs []model.FieldError
	if !req.Price.IsSet() {
		errs = append(errs, model.FieldError{Field: "price", Message: "Price is required"})
	}
	var due *time.Time
	if v, ok := req.DueDate.Get(); ok && strings.TrimSpace(v) != "" {
		t, err := parseDate(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "dueDate", Message: "must be a date (YYYY-MM-DD or RFC 3339)"})
		}
		due = t
	}
	if len(errs) > 0 {
		return model.NewItem{}, model.NewValidationErrors(errs)
	}

	get := func(o model.Optional[string]) string {
		v, _ := o.Get()
		return v
	}
	price, _ := req.Price.Get()
	return model.NewItem{
		Name:          get(req.Name),
		Description:   get(req.Description),
		Category:      get(req.Category),
		Price:         price,
		InStock:       req.InStock,
		ImageURL:      get(req.ImageURL),
		CustomerName:  get(req.CustomerName),
		CustomerPhone: get(req.CustomerPhone),
		CustomerEmail: get(req.CustomerEmail),
		PaymentStatus: get(req.PaymentStatus),
		InvoiceNumber: get(req.InvoiceNumber),
		DueDate:       due,
		Notes:         get(req.Notes),
	}, nil
}

// patch builds a sparse item patch. An empty dueDate clears the date.
// The invoice number is assigned once and ignored on update.
func (req *itemRequest) patch() (model.ItemPatch, error) {
	p := model.ItemPatch{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		InStock:       req.InStock,
		ImageURL:      req.ImageURL,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		PaymentStatus: req.PaymentStatus,
		Notes:         req.Notes,
	}
	if v, ok := req.DueDate.Get(); ok {
		if strings.TrimSpace(v) == "" {
			p.DueDate = model.Some[*time.Time](nil)
		} else {
			t, err := parseDate(v)
			if err != nil {
				return model.ItemPatch{}, model.NewValidationError("dueDate", "must be a date (YYYY-MM-DD or RFC 3339)")
			}
			p.DueDate = model.Some(t)
		}
	}
	return p, nil
}

func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", v)
}
