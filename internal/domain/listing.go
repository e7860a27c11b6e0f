package domain

// Listing columns of the MLS-style export used by the filtered path.
const (
	ColAddress         = "Address"
	ColStateOrProvince = "StateOrProvince"
	ColPostalCode      = "PostalCode"
	ColCountyOrParish  = "CountyOrParish"
	ColMLSNumber       = "MLSNumber"
	ColBuyerFinancing  = "BuyerFinancing"
)

// ListingColumns is the default required-column set and filtered-export projection.
var ListingColumns = []string{
	ColAddress, ColCity, ColStateOrProvince, ColPostalCode,
	ColCountyOrParish, ColMLSNumber, ColBuyerFinancing,
}

// Listing is a filled raw row kept verbatim.
type Listing map[string]string
