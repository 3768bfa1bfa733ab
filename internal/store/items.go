package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/marketbook/internal/model"
)

const itemColumns = `i.id, i.name, i.description, i.category, i.price, i.in_stock, i.image_url,
	i.created_by, i.customer_name, i.customer_phone, i.customer_email, i.payment_status,
	i.invoice_number, i.due_date, i.notes, i.created_at, i.updated_at,
	u.id, u.name, u.email`

func selectItems() sq.SelectBuilder {
	return sq.Select(itemColumns).
		From("items i").
		LeftJoin("users u ON u.id = i.created_by")
}

// CreateItem creates a new item owned by ownerID. When no invoice number is
// supplied one is generated, and regenerated if it collides.
func CreateItem(ctx context.Context, db *sql.DB, ownerID int64, n model.NewItem) (*model.Item, error) {
	if n.InvoiceNumber != "" {
		id, err := insertItem(ctx, db, ownerID, n)
		if isUniqueViolation(err, "items.invoice_number") {
			return nil, fmt.Errorf("%w: invoice number %s already exists", model.ErrConflict, n.InvoiceNumber)
		}
		if err != nil {
			return nil, err
		}
		return GetItem(ctx, db, id)
	}

	for attempt := 1; attempt <= maxInvoiceAttempts; attempt++ {
		n.InvoiceNumber = nextInvoiceNumber()
		id, err := insertItem(ctx, db, ownerID, n)
		if isUniqueViolation(err, "items.invoice_number") {
			continue
		}
		if err != nil {
			return nil, err
		}
		return GetItem(ctx, db, id)
	}
	return nil, fmt.Errorf("%w: could not assign a unique invoice number after %d attempts", model.ErrConflict, maxInvoiceAttempts)
}

func insertItem(ctx context.Context, db *sql.DB, ownerID int64, n model.NewItem) (int64, error) {
	inStock := true
	if v, ok := n.InStock.Get(); ok {
		inStock = v
	}
	status := n.PaymentStatus
	if status == "" {
		status = model.PaymentUnpaid
	}
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Insert("items").
		Columns("name", "description", "category", "price", "in_stock", "image_url", "created_by",
			"customer_name", "customer_phone", "customer_email", "payment_status",
			"invoice_number", "due_date", "notes", "created_at", "updated_at").
		Values(n.Name, n.Description, n.Category, n.Price, inStock, n.ImageURL, ownerID,
			n.CustomerName, n.CustomerPhone, n.CustomerEmail, status,
			n.InvoiceNumber, nullTime(n.DueDate), n.Notes, now, now).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building item insert: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("creating item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}

	if err := insertMedia(ctx, tx, id, 0, n.MediaFiles); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing item: %w", err)
	}
	return id, nil
}

// GetItem returns an item by ID with its owner and media files.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	query, args, err := selectItems().Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}

	item, err := scanItem(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	items := []model.Item{*item}
	if err := attachMedia(ctx, db, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListItemsByOwner returns the items owned by ownerID, newest first.
func ListItemsByOwner(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Item, error) {
	return listItems(ctx, db, sq.Eq{"i.created_by": ownerID})
}

// ListAllItems returns every item, newest first.
func ListAllItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return listItems(ctx, db, nil)
}

// ListItemsByPaymentStatus returns items with the given payment status. A
// zero ownerID lists items of every owner.
func ListItemsByPaymentStatus(ctx context.Context, db *sql.DB, status string, ownerID int64) ([]model.Item, error) {
	where := sq.Eq{"i.payment_status": status}
	if ownerID != 0 {
		where["i.created_by"] = ownerID
	}
	return listItems(ctx, db, where)
}

func listItems(ctx context.Context, db *sql.DB, where sq.Sqlizer) ([]model.Item, error) {
	builder := selectItems().OrderBy("i.created_at DESC", "i.id DESC")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	if err := attachMedia(ctx, db, items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem applies a sparse patch to an item. Only set fields are written,
// media files are appended and updated_at always moves forward. The
// invoice number and owner are never touched.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, patch model.ItemPatch) (*model.Item, error) {
	set := map[string]any{"updated_at": time.Now().UTC()}
	setString(set, "name", patch.Name)
	setString(set, "description", patch.Description)
	setString(set, "category", patch.Category)
	setString(set, "image_url", patch.ImageURL)
	setString(set, "customer_name", patch.CustomerName)
	setString(set, "customer_phone", patch.CustomerPhone)
	setString(set, "customer_email", patch.CustomerEmail)
	setString(set, "payment_status", patch.PaymentStatus)
	setString(set, "notes", patch.Notes)
	if v, ok := patch.Price.Get(); ok {
		set["price"] = v
	}
	if v, ok := patch.InStock.Get(); ok {
		set["in_stock"] = v
	}
	if v, ok := patch.DueDate.Get(); ok {
		set["due_date"] = nullTime(v)
	}

	query, args, err := sq.Update("items").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item update: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("updating item %d: %w", id, model.ErrNotFound)
	}

	if len(patch.MediaFiles) > 0 {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM item_media WHERE item_id = ?`, id,
		).Scan(&next)
		if err != nil {
			return nil, fmt.Errorf("reading media position: %w", err)
		}
		if err := insertMedia(ctx, tx, id, next, patch.MediaFiles); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	return GetItem(ctx, db, id)
}

// DeleteItem permanently deletes an item and its media records.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deleting item %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func setString(set map[string]any, column string, v model.Optional[string]) {
	if s, ok := v.Get(); ok {
		set[column] = s
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var (
		item       model.Item
		dueDate    sql.NullTime
		ownerID    sql.NullInt64
		ownerName  sql.NullString
		ownerEmail sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Category, &item.Price, &item.InStock, &item.ImageURL,
		&item.CreatedBy, &item.CustomerName, &item.CustomerPhone, &item.CustomerEmail, &item.PaymentStatus,
		&item.InvoiceNumber, &dueDate, &item.Notes, &item.CreatedAt, &item.UpdatedAt,
		&ownerID, &ownerName, &ownerEmail,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := dueDate.Time
		item.DueDate = &t
	}
	if ownerID.Valid {
		item.Owner = &model.UserRef{ID: ownerID.Int64, Name: ownerName.String, Email: ownerEmail.String}
	}
	item.MediaFiles = []model.MediaFile{}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func insertMedia(ctx context.Context, q querier, itemID int64, start int, files []model.MediaFile) error {
	if len(files) == 0 {
		return nil
	}
	insert := sq.Insert("item_media").Columns("item_id", "position", "url", "kind", "filename", "size")
	for i, f := range files {
		insert = insert.Values(itemID, start+i, f.URL, f.Kind, f.Filename, f.Size)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("building media insert: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("adding media files: %w", err)
	}
	return nil
}

// attachMedia loads media files for items in one query, after any item
// cursor has been closed.
func attachMedia(ctx context.Context, q querier, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items))
	for i := range items {
		index[items[i].ID] = i
		ids = append(ids, items[i].ID)
	}

	query, args, err := sq.Select("item_id", "url", "kind", "filename", "size").
		From("item_media").
		Where(sq.Eq{"item_id": ids}).
		OrderBy("item_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("building media query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing media files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var f model.MediaFile
		if err := rows.Scan(&itemID, &f.URL, &f.Kind, &f.Filename, &f.Size); err != nil {
			return fmt.Errorf("scanning media file: %w", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].MediaFiles = append(items[i].MediaFiles, f)
		}
	}
	return rows.Err()
}
