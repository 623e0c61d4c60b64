package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Table names one of the five logical tables of the record store
type Table string

const (
	TableUsers       Table = "users"
	TableCustomers   Table = "customers"
	TableArrears     Table = "arrears"
	TableWhitelist   Table = "whitelist"
	TableSubmissions Table = "submissions"
)

// Tables lists every table in creation order
var Tables = []Table{TableUsers, TableCustomers, TableArrears, TableWhitelist, TableSubmissions}

// ParseTable resolves a table name case-insensitively
func ParseTable(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Tables {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// ServiceCategory is the canonical service type stored for a customer
type ServiceCategory string

const (
	ServicePostpaid ServiceCategory = "POSTPAID"
	ServicePrepaid  ServiceCategory = "PREPAID"
	ServiceUnknown  ServiceCategory = ""
)

// NormalizeServiceType maps the free-text service type of the source files
// (PASCABAYAR, "PASCA BAYAR", PASKABAYAR, PRABAYAR, ...) onto a category.
func NormalizeServiceType(raw string) ServiceCategory {
	s := strings.ToUpper(raw)
	s = strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(s)
	switch {
	case s == "":
		return ServiceUnknown
	case strings.HasPrefix(s, "PASCA"), strings.HasPrefix(s, "PASKA"), strings.HasPrefix(s, "POST"):
		return ServicePostpaid
	case strings.HasPrefix(s, "PRA"), strings.HasPrefix(s, "PRE"):
		return ServicePrepaid
	}
	return ServiceUnknown
}

// CustomerStatus is ACTIVE or INACTIVE
type CustomerStatus string

const (
	StatusActive   CustomerStatus = "ACTIVE"
	StatusInactive CustomerStatus = "INACTIVE"
)

// NormalizeStatus treats blank and AKTIF/ACTIVE as active, anything else as inactive
func NormalizeStatus(raw string) CustomerStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "AKTIF", "ACTIVE":
		return StatusActive
	}
	return StatusInactive
}

// Role is the account role
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleOfficer Role = "OFFICER"
)

// ParseRole returns RoleAdmin only for an explicit ADMIN value
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleOfficer
}

// Customer is one row of the customer master table
type Customer struct {
	ID              string          `json:"idpel"`
	MeterNumber     string          `json:"no_meter"`
	KDDK            string          `json:"kddk"`
	ReadingDay      string          `json:"hari_baca"`
	Officer         string          `json:"petugas"`
	Name            string          `json:"nama"`
	Address         string          `json:"alamat"`
	Tariff          string          `json:"tarif"`
	Power           int64           `json:"daya"`
	Substation      string          `json:"gardu"`
	Pole            string          `json:"no_tiang"`
	ServiceType     string          `json:"jenis_layanan"`
	ServiceCategory ServiceCategory `json:"kategori_layanan"`
	Status          CustomerStatus  `json:"status"`
	Latitude        *float64        `json:"koordinat_y,omitempty"`
	Longitude       *float64        `json:"koordinat_x,omitempty"`
	RoutePosition   int             `json:"route_position"`
}

// Arrear is one unpaid balance record
type Arrear struct {
	Officer    string `json:"petugas"`
	ID         string `json:"idpel"`
	KDDK       string `json:"kddk"`
	Day        string `json:"hari"`
	Name       string `json:"nama"`
	Address    string `json:"alamat"`
	Tariff     string `json:"tarif"`
	Power      int64  `json:"daya"`
	Substation string `json:"gardu"`
	Pole       string `json:"no_tiang"`
	Amount     int64  `json:"rptag"`
	Sheets     int    `json:"lembar"`
}

// SubmittedEntry is an append-only record of an accepted transaction entry
type SubmittedEntry struct {
	EntryID     uuid.UUID `json:"entry_id"`
	ID          string    `json:"idpel"`
	Officer     string    `json:"petugas"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"timestamp"`
}

// EntryStatusOK is the status stored for accepted entries
const EntryStatusOK = "OK"

// UserAccount is a login account. A nil SecretHash means the configured
// default secret applies; a nil DeviceToken means no device is bound yet.
type UserAccount struct {
	Username    string  `json:"username"`
	Name        string  `json:"name"`
	Role        Role    `json:"role"`
	SecretHash  *string `json:"-"`
	DeviceToken *string `json:"device_id"`
}

// NormalizeUsername trims and upper-cases a username
func NormalizeUsername(username string) string {
	return strings.ToUpper(strings.TrimSpace(username))
}
