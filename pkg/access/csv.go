package access

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"
)

// ExpiryLayout is the registry's dd-mm-yyyy date format.
const ExpiryLayout = "02-01-2006"

// ParseCSV reads an email,expiry export. The first row is a header and is
// skipped. Rows that do not hold exactly an email and a valid date are
// skipped rather than failing the whole registry.
func ParseCSV(data []byte) ([]Grant, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var grants []Grant
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				header = false
				continue
			}
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(rec) != 2 {
			continue
		}
		email := strings.TrimSpace(rec[0])
		expiry, err := time.Parse(ExpiryLayout, strings.TrimSpace(rec[1]))
		if email == "" || err != nil {
			continue
		}
		grants = append(grants, Grant{Email: email, Expiry: expiry})
	}
	return grants, nil
}
