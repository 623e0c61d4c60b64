package importer

import (
	"strconv"
	"strings"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/sheet"
)

// Header aliases per field, compared after normalizeHeader
var (
	aliasID          = []string{"IDPEL", "IDPELANGGAN", "ID"}
	aliasMeter       = []string{"NOMETER", "NOMORMETER", "METER"}
	aliasKDDK        = []string{"KDDK"}
	aliasReadingDay  = []string{"HARIBACA", "HARI"}
	aliasOfficer     = []string{"NAMAPETUGAS", "PETUGAS"}
	aliasName        = []string{"NAMAPELANGGAN", "NAMA"}
	aliasAddress     = []string{"ALAMAT"}
	aliasTariff      = []string{"TARIF"}
	aliasPower       = []string{"DAYA"}
	aliasSubstation  = []string{"GARDU"}
	aliasPole        = []string{"NOTIANG", "TIANG"}
	aliasServiceType = []string{"JENISLAYANAN", "LAYANAN"}
	aliasStatus      = []string{"STATUS"}
	aliasLatitude    = []string{"KOORDINATY", "LATITUDE", "LAT"}
	aliasLongitude   = []string{"KOORDINATX", "LONGITUDE", "LNG", "LON"}
	aliasAmount      = []string{"RPTAG", "TAGIHAN"}
	aliasSheets      = []string{"LEMBAR", "LBR"}
	aliasUsername    = []string{"USERNAME", "USER"}
	aliasRole        = []string{"ROLE"}
)

var headerStripper = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "")

// normalizeHeader makes headers comparable regardless of case, spaces,
// underscores and dashes
func normalizeHeader(h string) string {
	return headerStripper.Replace(strings.ToUpper(strings.TrimSpace(h)))
}

// record is a sheet row keyed by normalized header
type record map[string]string

func newRecord(row sheet.Row) record {
	r := make(record, len(row))
	for k, v := range row {
		key := normalizeHeader(k)
		if _, exists := r[key]; exists && v == "" {
			continue
		}
		r[key] = v
	}
	return r
}

// raw returns the first non-empty value among aliases
func (r record) raw(aliases []string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(r[a]); v != "" {
			return v
		}
	}
	return ""
}

func (r record) text(aliases []string) string {
	return strings.ToUpper(r.raw(aliases))
}

func (r record) number(aliases []string) int64 {
	return parseDigits(r.raw(aliases))
}

func (r record) coordinate(aliases []string) *float64 {
	v := strings.ReplaceAll(r.raw(aliases), ",", ".")
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func (r record) identifier(aliases []string) string {
	return normalizeID(r.raw(aliases))
}

// parseDigits drops every non-digit and parses the rest. "Rp 1.250.000"
// becomes 1250000.
func parseDigits(s string) int64 {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// normalizeID keeps identifiers as text. Values a spreadsheet stored in
// scientific notation are expanded back to plain digits.
func normalizeID(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return strings.ToUpper(s)
}

// Shaped holds rows ready for insertion and the number of source rows
// dropped. Uncategorized counts customers whose service type maps to neither
// category; they are stored but no route filter returns them.
type Shaped[T any] struct {
	Rows          []T
	Skipped       int
	Uncategorized int
}

// ShapeCustomers maps sheet rows to customers. RoutePosition is the 0-based
// index of the row in the file. Rows without an identifier and repeated
// identifiers are skipped.
func ShapeCustomers(rows []sheet.Row) Shaped[db.Customer] {
	out := Shaped[db.Customer]{Rows: make([]db.Customer, 0, len(rows))}
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		r := newRecord(row)
		id := r.identifier(aliasID)
		if id == "" || seen[id] {
			out.Skipped++
			continue
		}
		seen[id] = true

		serviceType := r.text(aliasServiceType)
		category := db.NormalizeServiceType(serviceType)
		if category == db.ServiceUnknown {
			out.Uncategorized++
		}
		out.Rows = append(out.Rows, db.Customer{
			ID:              id,
			MeterNumber:     r.identifier(aliasMeter),
			KDDK:            r.text(aliasKDDK),
			ReadingDay:      r.text(aliasReadingDay),
			Officer:         r.text(aliasOfficer),
			Name:            r.text(aliasName),
			Address:         r.text(aliasAddress),
			Tariff:          r.text(aliasTariff),
			Power:           r.number(aliasPower),
			Substation:      r.text(aliasSubstation),
			Pole:            r.text(aliasPole),
			ServiceType:     serviceType,
			ServiceCategory: category,
			Status:          db.NormalizeStatus(r.raw(aliasStatus)),
			Latitude:        r.coordinate(aliasLatitude),
			Longitude:       r.coordinate(aliasLongitude),
			RoutePosition:   i,
		})
	}
	return out
}

// ShapeArrears maps sheet rows to arrears. A missing sheet count defaults to 1.
func ShapeArrears(rows []sheet.Row) Shaped[db.Arrear] {
	out := Shaped[db.Arrear]{Rows: make([]db.Arrear, 0, len(rows))}

	for _, row := range rows {
		r := newRecord(row)
		id := r.identifier(aliasID)
		if id == "" {
			out.Skipped++
			continue
		}

		sheets := int(r.number(aliasSheets))
		if sheets <= 0 {
			sheets = 1
		}
		out.Rows = append(out.Rows, db.Arrear{
			Officer:    r.text(aliasOfficer),
			ID:         id,
			KDDK:       r.text(aliasKDDK),
			Day:        r.text(aliasReadingDay),
			Name:       r.text(aliasName),
			Address:    r.text(aliasAddress),
			Tariff:     r.text(aliasTariff),
			Power:      r.number(aliasPower),
			Substation: r.text(aliasSubstation),
			Pole:       r.text(aliasPole),
			Amount:     r.number(aliasAmount),
			Sheets:     sheets,
		})
	}
	return out
}

// ShapeWhitelist returns the distinct identifiers of the file
func ShapeWhitelist(rows []sheet.Row) Shaped[string] {
	out := Shaped[string]{Rows: make([]string, 0, len(rows))}
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		id := newRecord(row).identifier(aliasID)
		if id == "" || seen[id] {
			out.Skipped++
			continue
		}
		seen[id] = true
		out.Rows = append(out.Rows, id)
	}
	return out
}

// ShapeUsers maps profile rows to accounts. The display name falls back to
// the username. A blank or missing role is left empty so the store keeps the
// current role; any other value than ADMIN becomes OFFICER.
func ShapeUsers(rows []sheet.Row) Shaped[db.UserAccount] {
	out := Shaped[db.UserAccount]{Rows: make([]db.UserAccount, 0, len(rows))}
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		r := newRecord(row)
		username := db.NormalizeUsername(r.raw(aliasUsername))
		if username == "" || seen[username] {
			out.Skipped++
			continue
		}
		seen[username] = true

		name := r.raw([]string{"NAMA", "NAME"})
		if name == "" {
			name = username
		}
		var role db.Role
		if raw := r.raw(aliasRole); raw != "" {
			role = db.ParseRole(raw)
		}
		out.Rows = append(out.Rows, db.UserAccount{
			Username: username,
			Name:     name,
			Role:     role,
		})
	}
	return out
}
