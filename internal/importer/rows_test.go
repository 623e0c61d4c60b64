package importer

import (
	"testing"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "NAMAPELANGGAN", normalizeHeader(" Nama Pelanggan "))
	assert.Equal(t, "NAMAPELANGGAN", normalizeHeader("nama_pelanggan"))
	assert.Equal(t, "NOTIANG", normalizeHeader("NO-TIANG"))
}

func TestParseDigits(t *testing.T) {
	assert.Equal(t, int64(1250000), parseDigits("Rp 1.250.000"))
	assert.Equal(t, int64(1300), parseDigits("1,300 VA"))
	assert.Equal(t, int64(0), parseDigits(""))
	assert.Equal(t, int64(0), parseDigits("n/a"))
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "518040000806", normalizeID(" 518040000806 "))
	assert.Equal(t, "518040000806", normalizeID("5.18040000806E+11"))
	assert.Equal(t, "51804.AGUNG", normalizeID("51804.agung"))
}

func TestShapeCustomers(t *testing.T) {
	rows := []sheet.Row{
		{"IDPEL": "518040000806", "Nama Pelanggan": "budi", "NAMA_PETUGAS": "agung", "HARI_BACA": "a", "DAYA": "1.300", "JENIS_LAYANAN": "Pasca Bayar", "KOORDINAT_Y": "-6,2001"},
		{"IDPEL": "", "Nama Pelanggan": "no id"},
		{"idpel": "518040000807", "nama": "siti", "petugas": "agung", "hari": "L", "jenis layanan": "PRABAYAR", "status": "NONAKTIF"},
		{"IDPEL": "518040000806", "Nama Pelanggan": "duplicate"},
	}

	shaped := ShapeCustomers(rows)

	require.Len(t, shaped.Rows, 2)
	assert.Equal(t, 2, shaped.Skipped)

	first := shaped.Rows[0]
	assert.Equal(t, "BUDI", first.Name)
	assert.Equal(t, "AGUNG", first.Officer)
	assert.Equal(t, "A", first.ReadingDay)
	assert.Equal(t, int64(1300), first.Power)
	assert.Equal(t, db.ServicePostpaid, first.ServiceCategory)
	assert.Equal(t, db.StatusActive, first.Status)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, -6.2001, *first.Latitude, 1e-9)
	assert.Nil(t, first.Longitude)
	assert.Equal(t, 0, first.RoutePosition)

	second := shaped.Rows[1]
	assert.Equal(t, db.ServicePrepaid, second.ServiceCategory)
	assert.Equal(t, db.StatusInactive, second.Status)
	assert.Equal(t, 2, second.RoutePosition)
}

func TestShapeArrears_DefaultsSheets(t *testing.T) {
	shaped := ShapeArrears([]sheet.Row{
		{"PETUGAS": "agung", "IDPEL": "518040000806", "HARI": "b", "NAMA": "budi", "RPTAG": "Rp 125.000"},
		{"PETUGAS": "agung", "IDPEL": "518040000807", "LEMBAR": "3", "RPTAG": "50000"},
	})

	require.Len(t, shaped.Rows, 2)
	assert.Equal(t, int64(125000), shaped.Rows[0].Amount)
	assert.Equal(t, 1, shaped.Rows[0].Sheets)
	assert.Equal(t, "B", shaped.Rows[0].Day)
	assert.Equal(t, 3, shaped.Rows[1].Sheets)
}

func TestShapeWhitelist_Distinct(t *testing.T) {
	shaped := ShapeWhitelist([]sheet.Row{
		{"IDPEL": "518040000806"},
		{"idpel": "518040000806"},
		{"IDPEL": "518030000001"},
		{"OTHER": "x"},
	})

	assert.Equal(t, []string{"518040000806", "518030000001"}, shaped.Rows)
	assert.Equal(t, 2, shaped.Skipped)
}

func TestShapeUsers(t *testing.T) {
	shaped := ShapeUsers([]sheet.Row{
		{"USERNAME": "agung", "NAMA": "Agung Prasetyo", "ROLE": "officer"},
		{"username": "admin", "role": "admin"},
		{"USERNAME": ""},
	})

	require.Len(t, shaped.Rows, 2)
	assert.Equal(t, "AGUNG", shaped.Rows[0].Username)
	assert.Equal(t, "Agung Prasetyo", shaped.Rows[0].Name)
	assert.Equal(t, db.RoleOfficer, shaped.Rows[0].Role)
	assert.Equal(t, "ADMIN", shaped.Rows[1].Name)
	assert.Equal(t, db.RoleAdmin, shaped.Rows[1].Role)
	assert.Equal(t, 1, shaped.Skipped)
}

func TestShapeUsers_BlankRoleStaysEmpty(t *testing.T) {
	shaped := ShapeUsers([]sheet.Row{
		{"USERNAME": "agung"},
		{"USERNAME": "budi", "ROLE": " "},
		{"USERNAME": "siti", "ROLE": "supervisor"},
	})

	require.Len(t, shaped.Rows, 3)
	assert.Equal(t, db.Role(""), shaped.Rows[0].Role)
	assert.Equal(t, db.Role(""), shaped.Rows[1].Role)
	assert.Equal(t, db.RoleOfficer, shaped.Rows[2].Role)
}
