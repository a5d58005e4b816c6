package scm

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// poFilters copies the filters shared by the PO summary and detail reports.
// Suppliers and document statuses go through their lookups.
func (s *Service) poFilters(params map[string]string, args tool.Arguments) error {
	if _, _, err := monthParam(params, args); err != nil {
		return err
	}
	for _, name := range []string{"P_MPN", "P_ITEM", "P_PONUM", "P_REQ_NUM", "P_REQUESTER", "P_MANUFACTURER"} {
		setParam(params, name, args, name)
	}
	if status := args.String("P_DOC_STATUS"); status != "" {
		params["P_DOC_STATUS"] = s.translate(DocumentStatuses, status)
	}
	if categories := args.StringList("P_CATEGORY"); len(categories) > 0 {
		params["P_CATEGORY"] = strings.Join(categories, "|")
	}
	if supplier := s.translate(Suppliers, args.String("P_SUPPLIER")); supplier != "" {
		params["P_SUPPLIER"] = supplier
	}
	return nil
}

func monthParam(params map[string]string, args tool.Arguments) (int, bool, error) {
	month, ok, err := args.Int("P_Month")
	if err != nil || !ok {
		return 0, false, err
	}
	if month < 1 || month > 12 {
		return 0, false, tool.InvalidArguments("P_Month must be between 1 and 12, got %d", month)
	}
	params["P_Month"] = fmt.Sprint(month)
	return month, true, nil
}

// yearParam sets P_Year. The report parameter name is case sensitive.
func yearParam(params map[string]string, args tool.Arguments, required bool) error {
	year, ok, err := args.Int("year")
	if err != nil {
		return tool.InvalidArguments("year must be a 4-digit number (e.g., 2025)")
	}
	if !ok {
		if required {
			return tool.InvalidArguments("year is required")
		}
		return nil
	}
	if year < 1000 || year > 9999 {
		return tool.InvalidArguments("year must be a 4-digit number (e.g., 2025), got %d", year)
	}
	params["P_Year"] = fmt.Sprint(year)
	return nil
}

// POSummaryRow is one aggregated row of the PO summary report.
type POSummaryRow struct {
	CreationDate         string `json:"creation_date"`
	ShipToLocation       string `json:"ship_to_location"`
	RequisitioningBU     string `json:"requisitioning_bu"`
	ProcurementBU        string `json:"procurement_bu"`
	Supplier             string `json:"supplier"`
	RequisitionCount     int    `json:"requisition_count"`
	POCount              int    `json:"po_count"`
	CategoryCount        int    `json:"category_count"`
	ItemCount            int    `json:"item_count"`
	ItemDescriptionCount int    `json:"item_description_count"`
	InvoicePaymentStatus string `json:"invoice_payment_status"`
}

// POSummaryTotals aggregates the summary rows.
type POSummaryTotals struct {
	TotalPOs            int `json:"total_pos"`
	TotalRequisitions   int `json:"total_requisitions"`
	TotalItems          int `json:"total_items"`
	UniqueSuppliers     int `json:"unique_suppliers"`
	UniqueBusinessUnits int `json:"unique_business_units"`
	UniqueCategories    int `json:"unique_categories"`
}

// POSummaryResult is the output of get_po_summary.
type POSummaryResult struct {
	TotalResults    int               `json:"total_results"`
	Summary         POSummaryTotals   `json:"summary"`
	Items           []POSummaryRow    `json:"items"`
	FormattedTables map[string]string `json:"formatted_tables"`
	ExecutionTime   float64           `json:"execution_time"`
	ParametersUsed  map[string]string `json:"parameters_used"`
}

// POSummary aggregates purchase order counts by date, location, BU and
// supplier.
func (s *Service) POSummary(ctx context.Context, args tool.Arguments) (*POSummaryResult, error) {
	started := s.now()
	params := map[string]string{}
	if err := yearParam(params, args, false); err != nil {
		return nil, err
	}
	if err := s.poFilters(params, args); err != nil {
		return nil, err
	}

	_, rows, err := s.reportRows(ctx, poSummaryReport, params, ',')
	if err != nil {
		return nil, err
	}

	out := &POSummaryResult{ParametersUsed: params, Items: make([]POSummaryRow, 0, len(rows))}
	suppliers := map[string]struct{}{}
	units := map[string]struct{}{}
	for _, row := range rows {
		item, err := poSummaryRow(row)
		if err != nil {
			s.logger.Error("skipping PO summary row", "error", err)
			continue
		}
		out.Items = append(out.Items, item)
		out.Summary.TotalPOs += item.POCount
		out.Summary.TotalRequisitions += item.RequisitionCount
		out.Summary.TotalItems += item.ItemCount
		out.Summary.UniqueCategories += item.CategoryCount
		suppliers[item.Supplier] = struct{}{}
		units[item.RequisitioningBU] = struct{}{}
	}
	out.Summary.UniqueSuppliers = len(suppliers)
	out.Summary.UniqueBusinessUnits = len(units)
	out.TotalResults = len(out.Items)

	itemRows := make([][]any, 0, len(out.Items))
	for _, item := range out.Items {
		itemRows = append(itemRows, []any{
			item.CreationDate,
			truncate(item.ShipToLocation, 30),
			item.RequisitioningBU,
			truncate(item.Supplier, 30),
			item.POCount,
			item.ItemCount,
		})
	}
	sum := out.Summary
	out.FormattedTables = map[string]string{
		"summary": markdownTable("Purchase Order Summary Report",
			[]string{"Total POs", "Total Requisitions", "Total Items", "Unique Suppliers", "Unique BUs", "Categories"},
			[][]any{{sum.TotalPOs, sum.TotalRequisitions, sum.TotalItems, sum.UniqueSuppliers, sum.UniqueBusinessUnits, sum.UniqueCategories}},
		),
		"items": markdownTable("Purchase Order Items Detail",
			[]string{"Creation Date", "Ship To", "Business Unit", "Supplier", "PO Count", "Item Count"},
			itemRows,
		),
	}
	out.ExecutionTime = s.elapsedSeconds(started)
	s.logger.Info("PO summary completed", "rows", out.TotalResults, "execution_time", out.ExecutionTime)
	return out, nil
}

func poSummaryRow(row oracle.Row) (POSummaryRow, error) {
	item := POSummaryRow{
		CreationDate:         row["CREATION_DATE"],
		ShipToLocation:       row["SHIP_TO_LOCATION"],
		RequisitioningBU:     row["REQUISITIONING_BU"],
		ProcurementBU:        row["PROCUREMENT_BU"],
		Supplier:             row["SUPPLIER"],
		InvoicePaymentStatus: row["INV_PAY_STS"],
	}
	counts := []struct {
		column string
		dst    *int
	}{
		{"REQ_CNT", &item.RequisitionCount},
		{"PO_CNT", &item.POCount},
		{"CNT_CATEGORY", &item.CategoryCount},
		{"ITEM_CNT", &item.ItemCount},
		{"ITEM_DESC_CNT", &item.ItemDescriptionCount},
	}
	for _, c := range counts {
		n, ok := wholeNumber(row[c.column])
		if !ok {
			return POSummaryRow{}, fmt.Errorf("%s: invalid count %q", c.column, row[c.column])
		}
		*c.dst = n
	}
	return item, nil
}

// POLine is one purchase order line.
type POLine struct {
	LineNumber             int     `json:"line_number"`
	ItemNumber             string  `json:"item_number"`
	ItemDescription        string  `json:"item_description"`
	Category               string  `json:"category"`
	Quantity               float64 `json:"quantity"`
	UnitPrice              float64 `json:"unit_price"`
	Amount                 float64 `json:"amount"`
	NeedByDate             string  `json:"need_by_date"`
	PromisedDate           string  `json:"promised_date"`
	ReceivedQuantity       float64 `json:"received_quantity"`
	InvoicedQuantity       float64 `json:"invoiced_quantity"`
	PaidQuantity           float64 `json:"paid_quantity"`
	UnitOfMeasure          string  `json:"unit_of_measure"`
	Manufacturer           string  `json:"manufacturer"`
	ManufacturerPartNumber string  `json:"manufacturer_part_number"`
	BPALine                string  `json:"BPA-BPALine"`
	LatestCO               string  `json:"Latest CO"`
	Requester              string  `json:"Requester"`
}

// POInvoice is one invoice matched to a purchase order.
type POInvoice struct {
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"`
	InvoiceAmount float64 `json:"invoice_amount"`
	PaymentStatus string  `json:"payment_status"`
	PaymentDate   string  `json:"payment_date"`
	PaymentNumber string  `json:"payment_number"`
	PaymentMethod string  `json:"payment_method"`
	CurrencyCode  string  `json:"currency_code"`
}

// PODetail is one purchase order with its lines and invoices.
type PODetail struct {
	PONumber         string      `json:"po_number"`
	ProcurementBU    string      `json:"procurement_bu"`
	RequisitioningBU string      `json:"requisitioning_bu"`
	Supplier         string      `json:"supplier"`
	SupplierSite     string      `json:"supplier_site"`
	Buyer            string      `json:"buyer"`
	PODate           string      `json:"po_date"`
	POApprovalDate   string      `json:"po_approval_date"`
	CurrencyCode     string      `json:"currency_code"`
	POStatus         string      `json:"po_status"`
	TotalAmount      float64     `json:"total_amount"`
	EDIStatus        string      `json:"edi_status"`
	EDISentOn        string      `json:"edi_sent_on"`
	EmailToSupplier  string      `json:"email_to_supplier"`
	LineItems        []POLine    `json:"line_items"`
	InvoiceLines     []POInvoice `json:"invoice_lines"`
	ShipToLocation   string      `json:"ship_to_location"`
	BillToLocation   string      `json:"bill_to_location"`
}

// PODetailsResult is the output of get_po_details. FormattedTables is keyed
// by PO number, then by table name.
type PODetailsResult struct {
	TotalResults    int                          `json:"total_results"`
	Items           []PODetail                   `json:"items"`
	ExecutionTime   float64                      `json:"execution_time"`
	ParametersUsed  map[string]string            `json:"parameters_used"`
	FormattedTables map[string]map[string]string `json:"formatted_tables"`
}

// PODetails returns purchase orders of a year grouped with their lines and
// invoices, plus five markdown tables per order.
func (s *Service) PODetails(ctx context.Context, args tool.Arguments) (*PODetailsResult, error) {
	started := s.now()
	params := map[string]string{}
	if err := yearParam(params, args, true); err != nil {
		return nil, err
	}
	if bu := s.translate(ProcurementBusinessUnits, args.String("P_PROC_BU")); bu != "" {
		params["P_PROC_BU"] = bu
	}
	if err := s.poFilters(params, args); err != nil {
		return nil, err
	}
	for _, name := range []string{"P_BUYER", "P_SHIP_TO", "P_BILL_TO"} {
		setParam(params, name, args, name)
	}

	_, rows, err := s.reportRows(ctx, poDetailsReport, params, ',')
	if err != nil {
		return nil, err
	}

	var order []string
	groups := map[string][]oracle.Row{}
	for _, row := range rows {
		po := row["PURCHASE_ORDER"]
		if po == "" {
			continue
		}
		if _, seen := groups[po]; !seen {
			order = append(order, po)
		}
		groups[po] = append(groups[po], row)
	}

	out := &PODetailsResult{
		ParametersUsed:  params,
		Items:           make([]PODetail, 0, len(order)),
		FormattedTables: make(map[string]map[string]string, len(order)),
	}
	for _, po := range order {
		detail := poDetail(po, groups[po])
		out.Items = append(out.Items, detail)
		out.FormattedTables[po] = poDetailTables(detail)
	}
	out.TotalResults = len(out.Items)
	out.ExecutionTime = s.elapsedSeconds(started)
	s.logger.Info("PO details completed", "orders", out.TotalResults, "rows", len(rows))
	return out, nil
}

func poDetail(po string, rows []oracle.Row) PODetail {
	header := rows[0]
	d := PODetail{
		PONumber:         po,
		ProcurementBU:    header["PROCUREMENT_BU"],
		RequisitioningBU: header["REQUISITIONING_BU"],
		Supplier:         header["SUPPLIER"],
		SupplierSite:     header["SUPPLIER_SITE"],
		Buyer:            header["BUYER"],
		PODate:           header["CREATION_DATE"],
		POApprovalDate:   header["PO_APPRVL_DT"],
		CurrencyCode:     header["CURRENCY"],
		POStatus:         header["PO_STATUS"],
		TotalAmount:      numberOrZero(header["TOTAL_AMOUNT"]),
		EDIStatus:        field(header, "EDI_CHG_PO_STS", header["EDI_CRT_PO_STS"]),
		EDISentOn:        field(header, "EDI_CHG_PO_DT", header["EDI_CRT_PO_DT"]),
		EmailToSupplier:  header["EMAIL_COMM_TO_SUPP"],
		ShipToLocation:   header["SHIP_TO_LOCATION"],
		BillToLocation:   header["BILL_TO_LOCATION"],
		LineItems:        make([]POLine, 0, len(rows)),
		InvoiceLines:     []POInvoice{},
	}
	seen := map[string]bool{}
	for _, row := range rows {
		line, _ := wholeNumber(row["LINE_NUMBER"])
		d.LineItems = append(d.LineItems, POLine{
			LineNumber:             line,
			ItemNumber:             row["ITEM"],
			ItemDescription:        row["DESCRIPTION"],
			Category:               row["CATEGORY"],
			Quantity:               numberOrZero(row["QTY"]),
			UnitPrice:              numberOrZero(row["UNIT_PRICE"]),
			Amount:                 numberOrZero(row["ORDERED_AMOUNT"]),
			NeedByDate:             row["REQUESTED_DELIVERY_DATE"],
			PromisedDate:           row["PROMISED_DELIVERY_DATE"],
			ReceivedQuantity:       numberOrZero(row["RECEIVED_QUANTITY"]),
			InvoicedQuantity:       numberOrZero(row["QUANTITY_BILLED"]),
			PaidQuantity:           numberOrZero(row["PAID_QUANTITY"]),
			UnitOfMeasure:          row["UOM"],
			Manufacturer:           row["MANUFACTURER"],
			ManufacturerPartNumber: row["MPN"],
			BPALine:                row["BPA_LINE"],
			LatestCO:               row["CO_NUM"],
			Requester:              row["REQUESTER_NAME"],
		})

		invoice := row["INV_NUMBER"]
		if invoice == "" || seen[invoice] {
			continue
		}
		seen[invoice] = true
		d.InvoiceLines = append(d.InvoiceLines, POInvoice{
			InvoiceNumber: invoice,
			InvoiceDate:   row["INV_DATE"],
			InvoiceAmount: numberOrZero(row["INV_AMOUNT"]),
			PaymentStatus: row["INV_PAY_STATUS"],
			PaymentDate:   row["INV_PAY_DATE"],
			PaymentNumber: row["INV_CHECK_NUM"],
			PaymentMethod: row["INV_PAY_METHOD"],
			CurrencyCode:  row["PAY_CURR_CODE"],
		})
	}
	return d
}

func poDetailTables(po PODetail) map[string]string {
	lines := make([][]any, 0, len(po.LineItems))
	tracking := make([][]any, 0, len(po.LineItems))
	for _, l := range po.LineItems {
		lines = append(lines, []any{
			l.LineNumber, l.ItemNumber, l.ItemDescription, l.Category,
			l.ManufacturerPartNumber, l.Manufacturer, quantity(l.Quantity), l.UnitOfMeasure,
			money(l.UnitPrice), money(l.Amount), l.BPALine, l.Requester,
		})
		tracking = append(tracking, []any{
			l.LineNumber, l.ItemNumber,
			quantity(l.Quantity), quantity(l.ReceivedQuantity), quantity(l.InvoicedQuantity), quantity(l.PaidQuantity),
			l.NeedByDate, l.PromisedDate, l.LatestCO,
		})
	}

	invoices := "No invoice information available."
	if len(po.InvoiceLines) > 0 {
		rows := make([][]any, 0, len(po.InvoiceLines))
		for _, inv := range po.InvoiceLines {
			rows = append(rows, []any{
				inv.InvoiceNumber, inv.InvoiceDate, money(inv.InvoiceAmount), inv.CurrencyCode,
				inv.PaymentStatus, inv.PaymentDate, inv.PaymentNumber, inv.PaymentMethod,
			})
		}
		invoices = markdownTable("Invoice Details - "+po.PONumber,
			[]string{"Invoice Number", "Invoice Date", "Amount", "Currency", "Payment Status", "Payment Date", "Payment Number", "Payment Method"},
			rows)
	}

	return map[string]string{
		"summary": markdownTable("Purchase Order Summary - "+po.PONumber,
			[]string{"PO Number", "Business Unit", "Requisitioning BU", "Supplier", "Supplier Site", "Buyer", "PO Date",
				"PO Approval Date", "Status", "Total Amount", "Currency", "EDI Status", "EDI Sent on", "Email to Supplier"},
			[][]any{{
				po.PONumber, po.ProcurementBU, po.RequisitioningBU, po.Supplier, po.SupplierSite, po.Buyer, po.PODate,
				po.POApprovalDate, po.POStatus, money(po.TotalAmount), po.CurrencyCode, po.EDIStatus, po.EDISentOn, po.EmailToSupplier,
			}}),
		"locations": markdownTable("Shipping & Billing Information - "+po.PONumber,
			[]string{"Ship To Location", "Bill To Location"},
			[][]any{{po.ShipToLocation, po.BillToLocation}}),
		"line_items": markdownTable("Line Items - "+po.PONumber,
			[]string{"Line", "Item", "Description", "Category", "MPN", "Manufacturer", "Qty", "UOM", "Unit Price", "Amount", "BPA Reference", "Requester"},
			lines),
		"tracking": markdownTable("Order Tracking - "+po.PONumber,
			[]string{"Line", "Item", "Ordered", "Received", "Invoiced", "Paid", "Need By Date", "Promised Date", "Latest CO"},
			tracking),
		"invoices": invoices,
	}
}

// ApprovalDetail is one document line waiting in an approver's queue.
type ApprovalDetail struct {
	Document               string  `json:"document"`
	DocumentType           string  `json:"document_type"`
	LineNum                int     `json:"line_num"`
	DocumentCreationDate   string  `json:"document_creation_date"`
	DocumentSubmissionDate string  `json:"document_submission_date"`
	AssignmentDate         string  `json:"assignment_date"`
	DaysElapsed            float64 `json:"days_elapsed"`
	TimeElapsed            string  `json:"time_elapsed"`
	Description            string  `json:"description"`
	Assignee               string  `json:"assignee"`
	Username               string  `json:"username"`
	AssigneeEmail          string  `json:"assignee_email"`
	AssigneeManagerID      string  `json:"assignee_manager_id"`
	AssigneeManager        string  `json:"assignee_manager"`
	AssigneeUserID         string  `json:"assignee_user_id"`
	OU                     string  `json:"ou"`
	Item                   string  `json:"item"`
	Quantity               float64 `json:"quantity"`
	Price                  float64 `json:"price"`
	ExtendedPrice          float64 `json:"extended_price"`
	LocationCode           string  `json:"location_code"`
	Supplier               string  `json:"supplier"`
	ChangeOrderDesc        string  `json:"change_order_desc"`
	ChangeOrderQty         float64 `json:"change_order_qty"`
	DocCreator             string  `json:"doc_creator"`
}

// ApprovalsResult is the output of get_pr_po_apprvl_dtls.
type ApprovalsResult struct {
	TotalResults    int               `json:"total_results"`
	Items           []ApprovalDetail  `json:"items"`
	ExecutionTime   float64           `json:"execution_time"`
	ParametersUsed  map[string]string `json:"parameters_used"`
	FormattedTables map[string]string `json:"formatted_tables"`
}

// Approvals lists PR and PO documents pending approval.
func (s *Service) Approvals(ctx context.Context, args tool.Arguments) (*ApprovalsResult, error) {
	started := s.now()
	params := map[string]string{}
	setParam(params, "P_DOC_NO", args, "Doc_No")
	setParam(params, "P_DOC_TYPE", args, "Doc_Type")
	if bu := s.translate(ProcurementBusinessUnits, args.String("BU")); bu != "" {
		params["P_BU"] = bu
	}
	setParam(params, "P_SKU", args, "SKU")
	if supplier := s.translate(Suppliers, args.String("Supplier")); supplier != "" {
		params["P_SUPPLIER"] = supplier
	}
	setParam(params, "P_CREATOR", args, "Creator")

	_, rows, err := s.reportRows(ctx, approvalQueueReport, params, ',')
	if err != nil {
		return nil, err
	}

	out := &ApprovalsResult{ParametersUsed: params, Items: make([]ApprovalDetail, 0, len(rows))}
	for _, row := range rows {
		line, _ := wholeNumber(row["LINE_NUM"])
		out.Items = append(out.Items, ApprovalDetail{
			Document:               row["DOCUMENT"],
			DocumentType:           row["DOCUMENTTYPE"],
			LineNum:                line,
			DocumentCreationDate:   row["Document_Creation_Date"],
			DocumentSubmissionDate: row["Document_Submission_Date"],
			AssignmentDate:         row["Assignment_Date"],
			DaysElapsed:            numberOrZero(row["Days_Elapsed"]),
			TimeElapsed:            row["Time_Elapsed"],
			Description:            row["Description"],
			Assignee:               row["Assignee"],
			Username:               row["Username"],
			AssigneeEmail:          row["Assignee_s_Email"],
			AssigneeManagerID:      row["Assignee_s_Manager_ID"],
			AssigneeManager:        row["Assignee_s_Manager"],
			AssigneeUserID:         row["Assignee_User_ID"],
			OU:                     row["OU"],
			Item:                   row["ITEM"],
			Quantity:               numberOrZero(row["QUANTITY"]),
			Price:                  numberOrZero(row["PRICE"]),
			ExtendedPrice:          numberOrZero(row["EXTENDED_PRICE"]),
			LocationCode:           row["LOCN_CODE"],
			Supplier:               row["SUPPLIER"],
			ChangeOrderDesc:        row["CHANGE_ORDER_DESC"],
			ChangeOrderQty:         numberOrZero(row["CHANGE_ORDER_QTY"]),
			DocCreator:             row["DOC_CREATOR"],
		})
	}
	out.TotalResults = len(out.Items)
	out.FormattedTables = approvalTables(out.Items)
	out.ExecutionTime = s.elapsedSeconds(started)
	return out, nil
}

func approvalTables(details []ApprovalDetail) map[string]string {
	if len(details) == 0 {
		return map[string]string{"main": "No approval details found."}
	}
	docs := make([][]any, 0, len(details))
	workflow := make([][]any, 0, len(details))
	items := make([][]any, 0, len(details))
	for _, d := range details {
		docs = append(docs, []any{d.Document, d.DocumentType, d.DocumentCreationDate, d.DocumentSubmissionDate, d.OU, d.Supplier, d.DocCreator})
		workflow = append(workflow, []any{
			d.Document, d.LineNum, fmt.Sprintf("%s (%s)", d.Assignee, d.Username), d.AssigneeManager,
			d.AssignmentDate, fmt.Sprintf("%.1f", d.DaysElapsed), d.TimeElapsed, d.Description,
		})
		coQty := ""
		if d.ChangeOrderQty != 0 {
			coQty = money(d.ChangeOrderQty)
		}
		items = append(items, []any{
			d.Document, d.LineNum, d.Item, money(d.Quantity), "$" + money(d.Price), "$" + money(d.ExtendedPrice),
			d.LocationCode, d.ChangeOrderDesc, coQty,
		})
	}
	return map[string]string{
		"document_summary": markdownTable("Document Summary",
			[]string{"Document", "Type", "Creation Date", "Submission Date", "OU", "Supplier", "Document Creator"}, docs),
		"workflow": markdownTable("Approval Workflow Details",
			[]string{"Document", "Line", "Assignee", "Manager", "Assignment Date", "Days Elapsed", "Time Elapsed", "Status"}, workflow),
		"line_items": markdownTable("Line Items Details",
			[]string{"Document", "Line", "Item", "Quantity", "Price", "Extended Price", "Location", "Change Order", "CO Qty"}, items),
	}
}

// supplierConfigColumns are the report columns returned per configuration.
// PO_COMM_EMAIL is surfaced as "Supplier Email Address".
var supplierConfigColumns = []string{
	"SUPPLIER_NAME", "SUPPLIER_NUMBER", "PERSON_FIRST_NAME", "PERSON_LAST_NAME", "USERNAME",
	"ACCESS_LEVEL", "ACCESS_TO", "ROLE", "EMAIL_ADDRESS",
	"VENDOR_SITE_CODE", "NAME", "PURCHASING_SITE_FLAG", "RFQ_ONLY_SITE_FLAG", "PAY_SITE_FLAG",
	"PRIMARY_PAY_SITE_FLAG", "EFFECTIVE_START_DATE", "EFFECTIVE_END_DATE", "SUPPLIER_NOTIF_METHOD",
	"SERVICE_PROVIDER_NAME", "B2B_COMM_METHOD_CODE", "DOCS",
}

// SupplierConfigsResult is the output of get_supplier_configs.
type SupplierConfigsResult struct {
	TotalResults    int                 `json:"total_results"`
	Items           []map[string]string `json:"items"`
	ExecutionTime   float64             `json:"execution_time"`
	ParametersUsed  map[string]string   `json:"parameters_used"`
	FormattedTables map[string]string   `json:"formatted_tables"`
}

// SupplierConfigs returns supplier contact, site and B2B settings.
func (s *Service) SupplierConfigs(ctx context.Context, args tool.Arguments) (*SupplierConfigsResult, error) {
	started := s.now()
	params := map[string]string{}
	if supplier := s.translate(Suppliers, args.String("supplier")); supplier != "" {
		params["P_SUPPLIER"] = supplier
	}

	_, rows, err := s.reportRows(ctx, supplierConfigsReport, params, ',')
	if err != nil {
		return nil, err
	}

	out := &SupplierConfigsResult{ParametersUsed: params, Items: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		cfg := make(map[string]string, len(supplierConfigColumns)+3)
		for _, col := range supplierConfigColumns {
			cfg[col] = row[col]
		}
		cfg["Supplier Email Address"] = row["PO_COMM_EMAIL"]
		cfg["last_update_date"] = row["LAST_UPDATE_DATE"]
		cfg["last_updated_by"] = row["LAST_UPDATED_BY"]
		out.Items = append(out.Items, cfg)
	}
	out.TotalResults = len(out.Items)
	out.FormattedTables = supplierConfigTables(out.Items)
	out.ExecutionTime = s.elapsedSeconds(started)
	return out, nil
}

// supplierConfigTables describes the first configuration; the report
// returns one row per site contact, and the header fields repeat.
func supplierConfigTables(configs []map[string]string) map[string]string {
	if len(configs) == 0 {
		return map[string]string{"main": "No supplier configurations found."}
	}
	c := configs[0]
	return map[string]string{
		"supplier_details": fieldValueTable("Supplier Details", [][2]string{
			{"Supplier Name", c["SUPPLIER_NAME"]},
			{"Supplier Number", c["SUPPLIER_NUMBER"]},
			{"Contact First Name", c["PERSON_FIRST_NAME"]},
			{"Contact Last Name", c["PERSON_LAST_NAME"]},
			{"Portal User Name", c["USERNAME"]},
			{"Portal User Access", c["ACCESS_LEVEL"]},
			{"Portal User Access To", c["ACCESS_TO"]},
			{"Portal User Roles Access", c["ROLE"]},
			{"Contact Email", c["EMAIL_ADDRESS"]},
		}),
		"site_details": fieldValueTable("Supplier Site Details", [][2]string{
			{"Supplier Site", c["VENDOR_SITE_CODE"]},
			{"Proc BU", c["NAME"]},
			{"Purchasing Site Flag", c["PURCHASING_SITE_FLAG"]},
			{"RFQ Site Flag", c["RFQ_ONLY_SITE_FLAG"]},
			{"Pay Site Flag", c["PAY_SITE_FLAG"]},
			{"Primary Pay Site Flag", c["PRIMARY_PAY_SITE_FLAG"]},
			{"Eff Start Date", c["EFFECTIVE_START_DATE"]},
			{"Eff End Date", c["EFFECTIVE_END_DATE"]},
			{"Supplier Notification Method", c["SUPPLIER_NOTIF_METHOD"]},
			{"Supplier Email Address", c["Supplier Email Address"]},
		}),
		"b2b_details": fieldValueTable("Supplier Site B2B/EDI Details", [][2]string{
			{"Supplier Site", c["VENDOR_SITE_CODE"]},
			{"Proc BU", c["NAME"]},
			{"Service Provider Name", c["SERVICE_PROVIDER_NAME"]},
			{"B2B Comm Method", c["B2B_COMM_METHOD_CODE"]},
			{"B2B Docs", c["DOCS"]},
		}),
	}
}
