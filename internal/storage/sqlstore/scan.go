package sqlstore

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// dateValue scans DATE columns (Postgres) and TEXT columns (SQLite) alike.
type dateValue struct {
	models.Date
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date = models.Date{}
		return nil
	case time.Time:
		d.Date = models.NewDate(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into a date", src)
}

func (d *dateValue) parse(s string) error {
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	parsed, err := models.ParseDate(s)
	if err != nil {
		return err
	}
	d.Date = parsed
	return nil
}

// dateArg binds a date as YYYY-MM-DD, or NULL when zero.
func dateArg(d models.Date) driver.Value {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// timeValue scans timestamps whether the driver hands back time.Time or text.
type timeValue struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *timeValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into a timestamp", src)
}

func (t *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func nullString(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}
