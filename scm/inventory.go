package scm

import (
	"context"
	"strings"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/tool"
)

var (
	balanceColumns     = []string{"OPENING_ON_HAND_BALANCE", "ENDING_ON_HAND_BALANCE", "TOTAL_RECEIPTS", "TOTAL_SHIPMENTS", "TOTAL_ADJUSTMENTS"}
	transactionColumns = []string{"TRANSACTION_QUANTITY", "PRIMARY_QUANTITY"}
)

const pendingStatus = "Pending"

// inventoryQuery holds the warehouse and date window shared by the
// inventory reports.
type inventoryQuery struct {
	warehouse string
	start     string
	end       string
	params    map[string]string
	used      map[string]any
}

func (s *Service) inventoryQuery(args tool.Arguments, itemKey string, optionalArgs ...string) (*inventoryQuery, error) {
	q := &inventoryQuery{
		warehouse: s.translate(Warehouses, args.String("p_wh_code")),
		start:     args.String("p_date_start"),
		end:       args.String("p_date_end"),
		params:    map[string]string{},
	}
	switch {
	case q.warehouse == "":
		return nil, tool.InvalidArguments("p_wh_code is required")
	case q.start == "":
		return nil, tool.InvalidArguments("p_date_start is required")
	case q.end == "":
		return nil, tool.InvalidArguments("p_date_end is required")
	}
	q.params["P_WH_CODE"] = q.warehouse
	q.params["P_DATE_START"] = q.start
	q.params["P_DATE_END"] = q.end
	q.used = map[string]any{
		"p_wh_code":    q.warehouse,
		"p_date_start": q.start,
		"p_date_end":   q.end,
	}
	names := append([]string{itemKey}, optionalArgs...)
	for _, name := range names {
		v := args.String(name)
		q.used[name] = optional(v)
		if v != "" {
			q.params[strings.ToUpper(name)] = v
		}
	}
	return q, nil
}

func (q *inventoryQuery) dateRange() string {
	return q.start + " to " + q.end
}

// BalanceTotals sums inventory balances for a subinventory or item.
type BalanceTotals struct {
	OpeningBalance    float64 `json:"opening_balance"`
	EndingBalance     float64 `json:"ending_balance"`
	Receipts          float64 `json:"receipts"`
	Shipments         float64 `json:"shipments"`
	Adjustments       float64 `json:"adjustments"`
	ItemCount         int     `json:"item_count,omitempty"`
	SubinventoryCount int     `json:"subinventory_count,omitempty"`
}

func (b *BalanceTotals) add(item map[string]any) {
	b.OpeningBalance += floatField(item, "opening_on_hand_balance")
	b.EndingBalance += floatField(item, "ending_on_hand_balance")
	b.Receipts += floatField(item, "total_receipts")
	b.Shipments += floatField(item, "total_shipments")
	b.Adjustments += floatField(item, "total_adjustments")
}

// InventorySummaryResult is the output of lookup_inventory_summary.
type InventorySummaryResult struct {
	TotalResults int `json:"total_results"`
	Summary      struct {
		TotalItems          int     `json:"total_items"`
		TotalOpeningBalance float64 `json:"total_opening_balance"`
		TotalEndingBalance  float64 `json:"total_ending_balance"`
		TotalReceipts       float64 `json:"total_receipts"`
		TotalShipments      float64 `json:"total_shipments"`
		TotalAdjustments    float64 `json:"total_adjustments"`
		WarehouseCode       string  `json:"warehouse_code"`
		DateRange           string  `json:"date_range"`
	} `json:"summary"`
	ParametersUsed map[string]any `json:"parameters_used"`
	GroupedItems   struct {
		BySubinventory map[string]*BalanceTotals `json:"by_subinventory"`
		ByItem         map[string]*BalanceTotals `json:"by_item"`
	} `json:"grouped_items"`
	InventoryItems []map[string]any `json:"inventory_items"`
}

// InventorySummary returns on-hand balances for a warehouse and date window,
// totalled overall and grouped by subinventory and item.
func (s *Service) InventorySummary(ctx context.Context, args tool.Arguments) (*InventorySummaryResult, error) {
	q, err := s.inventoryQuery(args, "p_item", "p_subinventory_code")
	if err != nil {
		return nil, err
	}
	_, rows, err := s.reportRows(ctx, inventorySummaryReport, q.params, ',')
	if err != nil {
		return nil, err
	}

	out := &InventorySummaryResult{ParametersUsed: q.used, InventoryItems: make([]map[string]any, 0, len(rows))}
	bySub := map[string]*BalanceTotals{}
	byItem := map[string]*BalanceTotals{}
	for _, row := range rows {
		item := lowerRow(row, balanceColumns...)
		out.InventoryItems = append(out.InventoryItems, item)

		out.Summary.TotalOpeningBalance += floatField(item, "opening_on_hand_balance")
		out.Summary.TotalEndingBalance += floatField(item, "ending_on_hand_balance")
		out.Summary.TotalReceipts += floatField(item, "total_receipts")
		out.Summary.TotalShipments += floatField(item, "total_shipments")
		out.Summary.TotalAdjustments += floatField(item, "total_adjustments")

		if sub := stringField(item, "subinventory"); sub != "" {
			t := bySub[sub]
			if t == nil {
				t = &BalanceTotals{}
				bySub[sub] = t
			}
			t.add(item)
			t.ItemCount++
		}
		if number := stringField(item, "item_number"); number != "" {
			t := byItem[number]
			if t == nil {
				t = &BalanceTotals{}
				byItem[number] = t
			}
			t.add(item)
			t.SubinventoryCount++
		}
	}

	out.TotalResults = len(out.InventoryItems)
	out.Summary.TotalItems = out.TotalResults
	out.Summary.WarehouseCode = q.warehouse
	out.Summary.DateRange = q.dateRange()
	out.GroupedItems.BySubinventory = bySub
	out.GroupedItems.ByItem = byItem
	s.logger.Info("inventory summary completed", "warehouse", q.warehouse, "items", out.TotalResults)
	return out, nil
}

// TransactionTotals splits transaction counts and quantities by status.
type TransactionTotals struct {
	PendingCount      int     `json:"pending_count"`
	CompletedCount    int     `json:"completed_count"`
	PendingQuantity   float64 `json:"pending_quantity"`
	CompletedQuantity float64 `json:"completed_quantity"`
	TotalCount        int     `json:"total_count"`
	TotalQuantity     float64 `json:"total_quantity"`
}

func (t *TransactionTotals) add(pending bool, qty float64) {
	if pending {
		t.PendingCount++
		t.PendingQuantity += qty
	} else {
		t.CompletedCount++
		t.CompletedQuantity += qty
	}
	t.TotalCount++
	t.TotalQuantity += qty
}

// InventoryTransactionsResult is the output of lookup_inventory_transactions.
type InventoryTransactionsResult struct {
	TotalResults int `json:"total_results"`
	Summary      struct {
		TotalTransactions     int     `json:"total_transactions"`
		PendingTransactions   int     `json:"pending_transactions"`
		CompletedTransactions int     `json:"completed_transactions"`
		TotalQuantity         float64 `json:"total_quantity"`
		PendingQuantity       float64 `json:"pending_quantity"`
		CompletedQuantity     float64 `json:"completed_quantity"`
		WarehouseCode         string  `json:"warehouse_code"`
		DateRange             string  `json:"date_range"`
	} `json:"summary"`
	ParametersUsed      map[string]any `json:"parameters_used"`
	GroupedTransactions struct {
		ByItem            map[string]*TransactionTotals `json:"by_item"`
		BySubinventory    map[string]*TransactionTotals `json:"by_subinventory"`
		ByTransactionType map[string]*TransactionTotals `json:"by_transaction_type"`
	} `json:"grouped_transactions"`
	Transactions []map[string]any `json:"transactions"`
}

// InventoryTransactions splits transactions into pending and completed and
// groups them by item, subinventory and transaction type.
func (s *Service) InventoryTransactions(ctx context.Context, args tool.Arguments) (*InventoryTransactionsResult, error) {
	q, err := s.inventoryQuery(args, "p_item", "p_subinventory_code", "p_transaction_type")
	if err != nil {
		return nil, err
	}
	_, rows, err := s.reportRows(ctx, inventorySummaryReport, q.params, ',')
	if err != nil {
		return nil, err
	}

	out := &InventoryTransactionsResult{ParametersUsed: q.used, Transactions: make([]map[string]any, 0, len(rows))}
	groups := map[string]map[string]*TransactionTotals{
		"item_number":           {},
		"subinventory_code":     {},
		"transaction_type_name": {},
	}
	var total TransactionTotals
	for _, txn := range transactionRows(rows) {
		out.Transactions = append(out.Transactions, txn)
		pending := stringField(txn, "transaction_status") == pendingStatus
		qty := floatField(txn, "transaction_quantity")
		total.add(pending, qty)
		for key, group := range groups {
			name := stringField(txn, key)
			if name == "" {
				continue
			}
			t := group[name]
			if t == nil {
				t = &TransactionTotals{}
				group[name] = t
			}
			t.add(pending, qty)
		}
	}

	out.TotalResults = total.TotalCount
	out.Summary.TotalTransactions = total.TotalCount
	out.Summary.PendingTransactions = total.PendingCount
	out.Summary.CompletedTransactions = total.CompletedCount
	out.Summary.TotalQuantity = total.TotalQuantity
	out.Summary.PendingQuantity = total.PendingQuantity
	out.Summary.CompletedQuantity = total.CompletedQuantity
	out.Summary.WarehouseCode = q.warehouse
	out.Summary.DateRange = q.dateRange()
	out.GroupedTransactions.ByItem = groups["item_number"]
	out.GroupedTransactions.BySubinventory = groups["subinventory_code"]
	out.GroupedTransactions.ByTransactionType = groups["transaction_type_name"]
	s.logger.Info("inventory transactions completed",
		"warehouse", q.warehouse,
		"transactions", total.TotalCount,
		"pending", total.PendingCount,
		"completed", total.CompletedCount,
	)
	return out, nil
}

// InventoryTransactionDetailsResult is the output of
// lookup_inventory_transaction_details.
type InventoryTransactionDetailsResult struct {
	TotalResults       int              `json:"total_results"`
	ParametersUsed     map[string]any   `json:"parameters_used"`
	TransactionDetails []map[string]any `json:"transaction_details"`
}

// InventoryTransactionDetails returns transaction level rows.
func (s *Service) InventoryTransactionDetails(ctx context.Context, args tool.Arguments) (*InventoryTransactionDetailsResult, error) {
	q, err := s.inventoryQuery(args, "p_item_number", "p_subinventory_code", "p_transaction_type")
	if err != nil {
		return nil, err
	}
	_, rows, err := s.reportRows(ctx, inventoryDetailsReport, q.params, ',')
	if err != nil {
		return nil, err
	}
	details := transactionRows(rows)
	return &InventoryTransactionDetailsResult{
		TotalResults:       len(details),
		ParametersUsed:     q.used,
		TransactionDetails: details,
	}, nil
}

func transactionRows(rows []oracle.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, lowerRow(row, transactionColumns...))
	}
	return out
}
