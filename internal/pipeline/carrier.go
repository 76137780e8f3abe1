package pipeline

import (
	"strings"
	"sync"
)

// Carrier describes one destination table in the warehouse: the value
// the source data uses in its carrier field, the table name, the exact
// column sequence inserts use, and the natural-key column that pairs
// with ControlNo in the table's uniqueness constraint. Adding a
// carrier is a registration, not a new code path.
type Carrier struct {
	Name       string
	Table      string
	Columns    []string
	NaturalKey string
}

var carrierRegistry = struct {
	mu       sync.RWMutex
	carriers map[string]Carrier
}{
	carriers: map[string]Carrier{},
}

func RegisterCarrier(carrier Carrier) {
	key := normalizeCarrierName(carrier.Name)
	if key == "" || carrier.Table == "" || len(carrier.Columns) == 0 {
		return
	}
	carrierRegistry.mu.Lock()
	defer carrierRegistry.mu.Unlock()
	carrierRegistry.carriers[key] = carrier
}

func LookupCarrier(name string) (Carrier, bool) {
	carrierRegistry.mu.RLock()
	defer carrierRegistry.mu.RUnlock()
	carrier, ok := carrierRegistry.carriers[normalizeCarrierName(name)]
	return carrier, ok
}

func RegisteredCarriers() []Carrier {
	carrierRegistry.mu.RLock()
	defer carrierRegistry.mu.RUnlock()
	carriers := make([]Carrier, 0, len(carrierRegistry.carriers))
	for _, carrier := range carrierRegistry.carriers {
		carriers = append(carriers, carrier)
	}
	return carriers
}

func normalizeCarrierName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// normalizeColumnName folds case and whitespace so "Billed Weight",
// "billed weight" and "BilledWeight" all match the same schema column.
func normalizeColumnName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(name)), ""))
}

func init() {
	RegisterCarrier(Carrier{
		Name:       "USPS",
		Table:      "usps_ebill_prod",
		NaturalKey: "TrackingNumber",
		Columns: []string{
			"ControlNo", "ChildID", "TrackingNumber", "InvoiceNumber", "InvoiceDate", "ShipDate",
			"Length", "Height", "Width", "DimUOM", "ServiceLevel", "ShipperNumber",
			"OriginZip", "DestinationZip", "Zone", "BilledWeight_LB", "WeightUnit",
			"PackageCharge", "FuelSurcharge", "ResidentialSurcharge", "DASCharge", "TotalCharge",
			"AccessorialCode", "AccessorialDescription", "PackageStatus", "ReceiverName",
			"ReceiverCity", "ReceiverState", "ReceiverCountry",
		},
	})
	RegisterCarrier(Carrier{
		Name:       "UPS",
		Table:      "ups_ebill_prod",
		NaturalKey: "Lead Shipment Number",
		Columns: []string{
			"Lead Shipment Number", "ControlNo", "ChildID", "BillToAccountNo", "InvoiceDt", "Bill Option Code",
			"Container Type", "Transaction Date", "Package Quantity", "Sender Country", "Receiver Country",
			"Charge Category Code", "Charge Classification Code", "Charge Category Detail Code",
			"Charge Description", "Zone", "Billed Weight", "Billed Weight Unit of Measure",
			"Billed Weight Type", "Net Amount", "Incentive Amount", "Tracking Number",
			"Sender State", "Receiver State", "Invoice Currency Code",
		},
	})
	RegisterCarrier(Carrier{
		Name:       "FEDEX",
		Table:      "fedex_ebill_prod",
		NaturalKey: "TrackingNumber",
		Columns: []string{
			"ControlNo", "ChildID", "TrackingNumber", "InvoiceNumber", "InvoiceDate", "ShipDate",
			"ServiceType", "ZoneCode", "RatedWeight", "RatedWeightUnit",
			"TransportationCharge", "FuelSurcharge", "ResidentialCharge", "DeliveryAreaSurcharge",
			"DiscountAmount", "NetCharge", "ShipperZip", "RecipientZip",
			"RecipientCity", "RecipientState", "RecipientCountry", "PaymentType",
		},
	})
}
