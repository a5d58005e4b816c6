package scm

import (
	"context"
	"fmt"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// SetupExportTimeout bounds export_setup_task, which polls Oracle until the
// export process completes.
const SetupExportTimeout = 15 * time.Minute

const (
	moduleOrders      = "order_management"
	moduleInventory   = "inventory_management"
	moduleProcurement = "procurement"
	moduleProducts    = "product_management"
	moduleSetup       = "fusion_setup"
)

var moduleOrder = []string{moduleOrders, moduleInventory, moduleProcurement, moduleProducts, moduleSetup}

type catalogEntry struct {
	module     string
	descriptor tool.Descriptor
	handler    tool.Handler
	features   []string
}

// handle adapts a typed service method to a tool.Handler.
func handle[T any](fn func(context.Context, tool.Arguments) (*T, error)) tool.Handler {
	return func(ctx context.Context, args tool.Arguments) (any, error) {
		out, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func str(description string) tool.FieldSpec {
	return tool.FieldSpec{Type: tool.TypeString, Description: description}
}

func required(spec tool.FieldSpec) tool.FieldSpec {
	spec.Required = true
	return spec
}

var offsetDays = tool.FieldSpec{Type: tool.TypeInteger, Description: "Days to look back (default 7)"}

func poFilterInputs() map[string]tool.FieldSpec {
	return map[string]tool.FieldSpec{
		"P_MPN":          str("Manufacturer part number"),
		"P_Month":        {Type: tool.TypeInteger, Description: "Month number (1-12)"},
		"P_ITEM":         str("Item number"),
		"P_PONUM":        str("Purchase order number"),
		"P_DOC_STATUS":   str("Document status, e.g. APPROVED or PENDING APPROVAL"),
		"P_REQ_NUM":      str("Requisition number"),
		"P_CATEGORY":     {Description: "Category code or list of codes", AnyOf: []tool.FieldSpec{{Type: tool.TypeString}, {Type: tool.TypeArray, Items: &tool.FieldSpec{Type: tool.TypeString}}}},
		"P_SUPPLIER":     str("Supplier name"),
		"P_REQUESTER":    str("Requester name"),
		"P_MANUFACTURER": str("Manufacturer name"),
	}
}

func (s *Service) catalog() []catalogEntry {
	warehouse := str("Warehouse code or region, e.g. CVU, Canada, Bitkey")
	inventory := func(extra map[string]tool.FieldSpec) map[string]tool.FieldSpec {
		in := map[string]tool.FieldSpec{
			"p_wh_code":           required(str("Warehouse (organization) code or region")),
			"p_date_start":        required(str("Start date, MM-DD-YYYY")),
			"p_date_end":          required(str("End date, MM-DD-YYYY")),
			"p_subinventory_code": str("Subinventory code"),
		}
		for k, v := range extra {
			in[k] = v
		}
		return in
	}
	poDetailInputs := poFilterInputs()
	poDetailInputs["year"] = required(tool.FieldSpec{Type: tool.TypeInteger, Description: "4-digit PO creation year"})
	poDetailInputs["P_BUYER"] = str("Buyer name")
	poDetailInputs["P_SHIP_TO"] = str("Ship-to location")
	poDetailInputs["P_BILL_TO"] = str("Bill-to location")
	poDetailInputs["P_PROC_BU"] = str("Procurement business unit")
	poSummaryInputs := poFilterInputs()
	poSummaryInputs["year"] = tool.FieldSpec{Type: tool.TypeInteger, Description: "4-digit PO creation year"}

	return []catalogEntry{
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "get_order_count",
				Description: "Count orders by business unit, source, order type and customer over a look-back window.",
				Inputs: map[string]tool.FieldSpec{
					"offset_days":  offsetDays,
					"p_bu":         str("Business unit or region, e.g. US, Canada, Bitcoin HW US"),
					"p_source":     str("Order source, e.g. SHOP, EDI, SFDC, OPS, or a channel name"),
					"p_order_type": str("Order type, e.g. ECOM_NORMAL_SHIPONLY"),
				},
			},
			handler:  handle(s.OrderCount),
			features: []string{"Order count by business unit", "Order count by source and type", "Customer breakdown"},
		},
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "check_single_order_details",
				Description: "Look up one sales order by order number, customer PO number or source transaction number.",
				Inputs: map[string]tool.FieldSpec{
					"order_number": required(str("Order, customer PO or source transaction number")),
				},
			},
			handler:  handle(s.OrderDetails),
			features: []string{"Search across order number types", "Simplified order lines"},
		},
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "get_order_line_summary",
				Description: "Summarise order lines by warehouse, line status and SKU with a customer breakdown.",
				Inputs: map[string]tool.FieldSpec{
					"offset_days": offsetDays,
					"p_sku":       str("SKU"),
					"p_warehouse": warehouse,
				},
			},
			handler:  handle(s.OrderLineSummary),
			features: []string{"Totals by warehouse and status", "Ordered quantity per SKU", "Customer breakdown"},
		},
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "get_open_orders",
				Description: "Summarise open and stuck sales orders by warehouse and SKU.",
				Inputs: map[string]tool.FieldSpec{
					"offset_days": offsetDays,
					"p_sku":       str("SKU"),
					"p_warehouse": warehouse,
				},
			},
			handler:  handle(s.OpenOrders),
			features: []string{"Open order count per SKU", "Open quantity per warehouse"},
		},
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "extract_order_line_details",
				Description: "Download order line details and count lines by warehouse, status and customer.",
				Inputs: map[string]tool.FieldSpec{
					"offset_days": offsetDays,
					"p_sku":       str("SKU"),
					"p_warehouse": warehouse,
				},
			},
			handler:  handle(s.OrderLineDetails),
			features: []string{"Line counts by status", "Downloaded report file"},
		},
		{
			module: moduleOrders,
			descriptor: tool.Descriptor{
				Name:        "get_back_orders",
				Description: "Summarise true back orders by warehouse and SKU. The date window may not exceed 30 days.",
				Inputs: map[string]tool.FieldSpec{
					"p_from_sales_ord_date": str("Order date from, MM-DD-YYYY"),
					"p_to_sales_ord_date":   str("Order date to, MM-DD-YYYY"),
					"p_warehouse":           warehouse,
					"p_item":                str("Item or SKU"),
				},
			},
			handler:  handle(s.BackOrders),
			features: []string{"Back order count per SKU", "Back ordered quantity", "30 day window"},
		},
		{
			module: moduleInventory,
			descriptor: tool.Descriptor{
				Name:        "lookup_inventory_summary",
				Description: "On-hand balances, receipts, shipments and adjustments for a warehouse and date range.",
				Inputs:      inventory(map[string]tool.FieldSpec{"p_item": str("Item number")}),
			},
			handler:  handle(s.InventorySummary),
			features: []string{"Opening and ending balances", "Totals by subinventory", "Totals by item"},
		},
		{
			module: moduleInventory,
			descriptor: tool.Descriptor{
				Name:        "lookup_inventory_transactions",
				Description: "Pending and completed inventory transactions grouped by item, subinventory and transaction type.",
				Inputs: inventory(map[string]tool.FieldSpec{
					"p_item":             str("Item number"),
					"p_transaction_type": str("Transaction type"),
				}),
			},
			handler:  handle(s.InventoryTransactions),
			features: []string{"Pending versus completed", "Grouping by transaction type"},
		},
		{
			module: moduleInventory,
			descriptor: tool.Descriptor{
				Name:        "lookup_inventory_transaction_details",
				Description: "Transaction level inventory detail for a warehouse and date range.",
				Inputs: inventory(map[string]tool.FieldSpec{
					"p_item_number":      str("Item number"),
					"p_transaction_type": str("Transaction type"),
				}),
			},
			handler:  handle(s.InventoryTransactionDetails),
			features: []string{"Transaction rows", "Numeric quantities"},
		},
		{
			module: moduleProcurement,
			descriptor: tool.Descriptor{
				Name:        "get_po_summary",
				Description: "Purchase order statistics with markdown summary tables.",
				Inputs:      poSummaryInputs,
			},
			handler:  handle(s.POSummary),
			features: []string{"PO and requisition counts", "Supplier and BU totals", "Formatted tables"},
		},
		{
			module: moduleProcurement,
			descriptor: tool.Descriptor{
				Name:        "get_po_details",
				Description: "Purchase order headers, lines, tracking and invoices for a year, with markdown tables per PO.",
				Inputs:      poDetailInputs,
			},
			handler:  handle(s.PODetails),
			features: []string{"Line items", "Receipt and invoice tracking", "Invoice details", "Formatted tables"},
		},
		{
			module: moduleProcurement,
			descriptor: tool.Descriptor{
				Name:        "get_pr_po_apprvl_dtls",
				Description: "Requisitions and purchase orders waiting in approvers' queues.",
				Inputs: map[string]tool.FieldSpec{
					"Doc_No":   str("Document number"),
					"Doc_Type": str("Document type, PR or PO"),
					"BU":       str("Procurement business unit"),
					"SKU":      str("SKU"),
					"Supplier": str("Supplier name"),
					"Creator":  str("Document creator"),
				},
			},
			handler:  handle(s.Approvals),
			features: []string{"Approval workflow", "Days elapsed per assignee", "Formatted tables"},
		},
		{
			module: moduleProcurement,
			descriptor: tool.Descriptor{
				Name:        "get_supplier_configs",
				Description: "Supplier contacts, site flags and B2B/EDI configuration.",
				Inputs: map[string]tool.FieldSpec{
					"supplier": str("Supplier name"),
				},
			},
			handler:  handle(s.SupplierConfigs),
			features: []string{"Supplier details", "Site details", "B2B/EDI details"},
		},
		{
			module: moduleProducts,
			descriptor: tool.Descriptor{
				Name:        "lookup_item_details",
				Description: "PIM item attributes grouped by category and warehouse, with D2C and ring fencing flags.",
				Inputs: map[string]tool.FieldSpec{
					"p_item_number": str("Item number"),
					"p_org":         str("Organization or warehouse code"),
					"p_category":    str("Item category"),
					"offset_days":   offsetDays,
					"p_d2c":         {Type: tool.TypeString, Description: "Only D2C enabled (Y) or disabled (N) items", Enum: []string{"Y", "N"}},
				},
			},
			handler:  handle(s.ItemDetails),
			features: []string{"Item attributes", "D2C filter", "Grouping by category and warehouse"},
		},
		{
			module: moduleSetup,
			descriptor: tool.Descriptor{
				Name:        "fetch_fusion_locations",
				Description: "Download every HCM location and save it as JSON and CSV in the output directory.",
				Inputs:      map[string]tool.FieldSpec{},
			},
			handler:  handle(s.FetchLocations),
			features: []string{"Paged download", "JSON and CSV export"},
		},
		{
			module: moduleSetup,
			descriptor: tool.Descriptor{
				Name:        "export_setup_task",
				Description: "Run a Functional Setup Manager CSV export for a setup task and save the zip archive.",
				Inputs: map[string]tool.FieldSpec{
					"task_code": required(str("Setup task code")),
				},
				Timeout: SetupExportTimeout,
			},
			handler:  handle(s.ExportSetupTask),
			features: []string{"Export start and polling", "Zip download"},
		},
	}
}

// Register adds every tool to reg.
func (s *Service) Register(reg *tool.Registry) error {
	for _, t := range s.catalog() {
		if err := reg.Register(t.descriptor, t.handler); err != nil {
			return fmt.Errorf("scm: register %s: %w", t.descriptor.Name, err)
		}
	}
	return nil
}
