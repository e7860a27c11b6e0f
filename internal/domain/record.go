package domain

import "strings"

// Missing is written in place of any absent or empty CSV value.
const Missing = "N/A"

// Column names of the transaction exports.
const (
	ColFullAddress  = "Full Address"
	ColCloseDate    = "Close Date"
	ColCounty       = "County"
	ColCity         = "City"
	ColStreetName   = "Street Name"
	ColState        = "State Or Province"
	ColStreetNumber = "Street Number"
	ColStreetSuffix = "Street Suffix"
	ColZipCode      = "Zip Code"
)

// TransactionColumns is the default required-column set for transaction datasets.
var TransactionColumns = []string{
	ColFullAddress, ColCloseDate, ColCounty, ColCity, ColStreetName,
	ColState, ColStreetNumber, ColStreetSuffix, ColZipCode,
}

// Dataset names used as top-level store paths.
const (
	DatasetAll        = "ALL"
	DatasetVA         = "VA"
	DatasetRealEstate = "RealEstate"
	DatasetFilteredVA = "FilteredVA"
	DatasetCurrentVA  = "CurrentVA"
)

type PropertyType string

const (
	House     PropertyType = "House"
	Apartment PropertyType = "Apartment"
)

// RawRow is one parsed CSV record keyed by column name.
type RawRow map[string]string

// Get returns the value for col, or Missing when the column is absent.
func (r RawRow) Get(col string) string {
	if v, ok := r[col]; ok {
		return v
	}
	return Missing
}

type Details struct {
	Type            PropertyType `json:"Type"`
	FullAddress     string       `json:"Full Address"`
	County          string       `json:"County"`
	City            string       `json:"City"`
	StreetName      string       `json:"Street Name"`
	StateOrProvince string       `json:"State Or Province"`
	StreetNumber    string       `json:"Street Number"`
	StreetSuffix    string       `json:"Street Suffix"`
	ZipCode         string       `json:"Zip Code"`
}

// AddressRecord is the stored unit of a transaction dataset. Details are fixed
// by the first row seen for the address; CloseDates only ever grow.
type AddressRecord struct {
	Details    Details  `json:"Details"`
	CloseDates []string `json:"CloseDates"`
}

// ReconciledRecord has the same shape as AddressRecord; it is a copy of the
// financing-filtered record whose latest close date matched the general set.
type ReconciledRecord = AddressRecord

// ClassifyProperty reports Apartment when the full address carries a unit marker.
func ClassifyProperty(fullAddress string) PropertyType {
	if strings.Contains(fullAddress, "#") {
		return Apartment
	}
	return House
}

// DetailsFromRow copies the transaction columns of a filled row.
func DetailsFromRow(row RawRow) Details {
	full := row.Get(ColFullAddress)
	return Details{
		Type:            ClassifyProperty(full),
		FullAddress:     full,
		County:          row.Get(ColCounty),
		City:            row.Get(ColCity),
		StreetName:      row.Get(ColStreetName),
		StateOrProvince: row.Get(ColState),
		StreetNumber:    row.Get(ColStreetNumber),
		StreetSuffix:    row.Get(ColStreetSuffix),
		ZipCode:         row.Get(ColZipCode),
	}
}

var keyReplacer = strings.NewReplacer(
	".", "",
	"$", "",
	"[", "",
	"]", "",
	"#", "",
	"/", "",
)

// SanitizeKey turns a raw address into a store path segment by dropping the
// characters the store rejects in keys.
func SanitizeKey(address string) string {
	return strings.TrimSpace(keyReplacer.Replace(address))
}
