package scm

import (
	"slices"
	"strings"
)

// Lookup translates free-form user input into the value an Oracle report
// parameter expects. Matching ignores case, spaces, and the characters
// "-", ".", "," and "_".
type Lookup struct {
	name    string
	aliases map[string]string
	known   map[string]struct{}
}

func newLookup(name string, table map[string][]string) *Lookup {
	l := &Lookup{
		name:    name,
		aliases: make(map[string]string),
		known:   make(map[string]struct{}, len(table)),
	}
	for canonical, aliases := range table {
		l.known[canonical] = struct{}{}
		l.aliases[normalizeKey(canonical)] = canonical
		for _, alias := range aliases {
			l.aliases[normalizeKey(alias)] = canonical
		}
	}
	return l
}

// Name identifies the lookup in logs.
func (l *Lookup) Name() string { return l.name }

// Translate returns the canonical value for input and whether it is known.
// Unknown input is returned trimmed.
func (l *Lookup) Translate(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	if canonical, ok := l.aliases[normalizeKey(trimmed)]; ok {
		return canonical, true
	}
	return trimmed, false
}

// Known reports whether value is one of the canonical values.
func (l *Lookup) Known(value string) bool {
	_, ok := l.known[value]
	return ok
}

// Values returns the canonical values, sorted.
func (l *Lookup) Values() []string {
	out := make([]string, 0, len(l.known))
	for v := range l.known {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

var keyReplacer = strings.NewReplacer(" ", "", "-", "", ".", "", ",", "", "_", "")

func normalizeKey(s string) string {
	return keyReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
}

// OrderBusinessUnits maps regions, 3PL names and warehouse codes to the
// business unit names the order count report filters on.
var OrderBusinessUnits = newLookup("business_unit", map[string][]string{
	"US":     {"USA", "CVU", "United States", "Domestic", "America", "States", "Ceva US"},
	"Canada": {"CA", "CVC", "IMC", "Ceva Canada"},
	"UK":     {"GBR", "GB", "United Kingdom", "London", "Britain"},
	"Australia": {
		"AU", "AUS", "Sydney", "Arvato", "ARV", "DBS Australia", "SYD",
	},
	"Ireland": {"Europe", "EU", "Netherland", "NLD", "IE", "Paris", "France"},
	"Japan":   {"SCH", "DBS", "DBS Japan", "JP"},
	"Bitcoin HW US": {
		"Bitkey", "Bitkey US", "Bitcoin", "Bitcoin US", "Bitkey domestic",
		"Bitcoin Domestic", "BK US", "MLU", "BK domestic", "Moduslink US",
		"Moduslink", "ML", "ML US", "Moduslink domestic", "Bitcoin Hardware",
		"Bitcoin HW", "Bitkey HW", "Bitkey Hardware",
	},
	"Bitcoin HW NL": {
		"Bitkey Intl", "Bitcoin INTL", "Bitcoin International",
		"Bitkey International", "ML Intl", "ML International", "MLI",
		"BK International", "Moduslink Intl", "Moduslink International",
	},
	"Proto Global": {"Proto", "ASE", "FMY", "Mining", "R2", "MC2"},
})

// Warehouses maps regions and 3PL names to three-letter organization codes.
var Warehouses = newLookup("warehouse", map[string][]string{
	"CVU": {"USA", "United States", "Domestic", "America", "US", "States", "Ceva US"},
	"JDU": {"Jusda"},
	"IMC": {"CA", "Canada", "CVC", "Ceva Canada"},
	"GBR": {"GB", "United Kingdom", "London", "Britain", "UK"},
	"ARV": {"AU", "AUS", "Sydney", "Arvato", "DBS Australia", "SYD", "Australia"},
	"NLD": {"Europe", "EU", "Netherland", "IE", "Ireland", "Paris", "France"},
	"SCH": {"DBS", "DBS Japan", "JP", "Japan"},
	"MLU": {
		"Bitkey", "Bitkey US", "Bitcoin", "Bitcoin US", "Bitkey domestic",
		"Bitcoin Domestic", "BK US", "BK domestic", "Moduslink US", "Moduslink",
		"ML", "ML US", "Moduslink domestic", "Bitcoin Hardware", "Bitcoin HW",
		"Bitkey HW", "Bitkey Hardware", "Bitcoin HW US",
	},
	"MLI": {
		"Bitcoin HW NL", "Bitkey Intl", "Bitcoin INTL", "Bitcoin International",
		"Bitkey International", "ML Intl", "ML International",
		"BK International", "Moduslink Intl", "Moduslink International",
	},
	"SGM": {"Singapore Mining"},
	"SGU": {"Singapore D2C"},
	"FMY": {"Foxconn Malaysia", "Foxconn MY", "Mining MY", "Proto"},
	"FSJ": {"Mining San Jose", "Mining SJC", "Foxconn San Jose", "San Jose"},
})

// OrderSources maps channel names to order source system codes.
var OrderSources = newLookup("order_source", map[string][]string{
	"OPS":    {"Manual"},
	"SHOP":   {"Ecom", "E-Comm", "Ecommerce", "B2C"},
	"BC":     {"BigCommerce", "BigComm"},
	"EDI":    {"Retail", "Distributor", "B2B"},
	"SFDC":   {"CPQ", "Enterprise", "SalesForce", "SF"},
	"GSHEET": nil,
})

// OrderTypes maps spaced order type names to their transaction type codes.
var OrderTypes = newLookup("order_type", map[string][]string{
	"ECOM_NORMAL_ZERO_SHIPONLY":  nil,
	"SQ_SHIP_ONLY":               nil,
	"RETAIL_NORMAL_SHIPONLY":     nil,
	"SQ_SCRAP":                   nil,
	"SQ_WARRANTY":                nil,
	"TRANSFER_ORDER_SHIPONLY":    nil,
	"ECOM_NORMAL_SHIPONLY":       nil,
	"SQ_EFFA":                    {"SQ EFFA ORDERS"},
	"SQ_SCRAP_UNAVL":             {"SQ Scrap Unavlbl", "SQ Scrap Unavailable"},
	"ENTERPRISE_NORMAL_SHIPONLY": nil,
	"SQ_P00_ORDERS":              nil,
	"ECOM_NORMAL_STANDARD":       nil,
	"ECOM_WARRANTY_SHIPONLY":     nil,
	"RETAIL_NORMAL_STANDARD":     nil,
})

// ProcurementBusinessUnits maps legal entity names and BU numbers to the
// procurement business units.
var ProcurementBusinessUnits = newLookup("procurement_business_unit", map[string][]string{
	"US":        {"BLOCK", "BLOCK US", "BLOCK USA", "BLOCK INC", "BLOCK 101", "US 101", "BU 101", "101"},
	"Canada":    {"SQUARE CA", "SQUARE CANADA", "SQUARE TECH CA", "CA 152", "BU 152", "152"},
	"Australia": {"SQUARE AU", "SQUARE AUS", "SQUARE AUSTRALIA", "AU 250", "BU 250", "250"},
	"Ireland":   {"SQUARE IE", "SQUARE IRELAND", "SQUAREUP IE", "IE 312", "BU 312", "312"},
	"UK":        {"SQUARE UK", "SQUAREUP UK", "UK 302", "BU 302", "302"},
	"Japan":     {"SQUARE JP", "SQUARE JAPAN", "SQUARE KK", "JP 210", "BU 210", "210"},
})

// Suppliers maps common supplier names to the registered supplier name.
var Suppliers = newLookup("supplier", map[string][]string{
	"Hon Hai Precision Industry Co., Ltd": {"FOXCONN", "FXN", "HON HAI", "HONHAI", "FOXCONN TECHNOLOGY"},
	"Cheng Uei Precision Industry Co Ltd": {"FOXLINK", "CHENG UEI", "FXL"},
	"Luxshare Precision Limited":          {"LUXSHARE-ICT", "LUXSHARE PRECISION", "LUX", "LUXSHARE"},
})

// DocumentStatuses maps snake_case status keys and spelling variants to the
// document status labels used by procurement reports.
var DocumentStatuses = newLookup("document_status", map[string][]string{
	"INCOMPLETE":          {"incomplete"},
	"IN PROCESS":          {"in_process", "in progress"},
	"APPROVED":            {"approved"},
	"REJECTED":            {"rejected"},
	"CLOSED":              {"closed"},
	"CANCELLED":           {"cancelled", "canceled"},
	"ON HOLD":             {"on_hold"},
	"REQUIRES REAPPROVAL": {"requires_reapproval"},
	"PENDING APPROVAL":    {"pending_approval", "pending"},
})

// DocumentStatusKey returns the snake_case key of a document status label.
func DocumentStatusKey(status string) string {
	canonical, _ := DocumentStatuses.Translate(status)
	return strings.ReplaceAll(strings.ToLower(canonical), " ", "_")
}
