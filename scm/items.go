package scm

import (
	"context"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// itemFields maps PIM report columns to the labels items are returned with.
var itemFields = []struct {
	column string
	label  string
}{
	{"CATEGORY_NAME", "Item Category"},
	{"ITEM_NUMBER", "Item Number/SKU/Product"},
	{"ITEM_DESCRIPTION", "Description"},
	{"ORGANIZATION_CODE", "Organization/Warehouse"},
	{"CREATION_DATE", "Item Creation Date"},
	{"CREATED_BY", "Created By"},
	{"LAST_UPDATE_DATE", "Item Update Date"},
	{"LAST_UPDATED_BY", "Updated by"},
	{"RING_FENCING_ENABLED_FLAG", "Ring Fencing Enabled"},
	{"SKU_SHARING_COUNTRY", "SKU Sharing Country"},
	{"SKU_SHARING_WAREHOUSE", "SKU Sharing Warehouse"},
	{"ITEM_EFF", "D2C Enabled"},
	{"SKU_PRICE", "SKU Price"},
}

const (
	labelCategory    = "Item Category"
	labelWarehouse   = "Organization/Warehouse"
	labelD2C         = "D2C Enabled"
	labelRingFencing = "Ring Fencing Enabled"

	// skuSharingEffectivity is the ITEM_EFF value of D2C enabled items.
	skuSharingEffectivity = "SKU Sharing"
)

// Item is one PIM item keyed by display label.
type Item map[string]any

// ItemGroup collects the items sharing a category or warehouse.
type ItemGroup struct {
	TotalItems int    `json:"total_items"`
	Items      []Item `json:"items"`
}

// ItemDetailsResult is the output of lookup_item_details.
type ItemDetailsResult struct {
	TotalItems     int            `json:"total_items"`
	ParametersUsed map[string]any `json:"parameters_used"`
	GroupedItems   struct {
		ByCategory            map[string]*ItemGroup `json:"by_category"`
		ByWarehouse           map[string]*ItemGroup `json:"by_warehouse"`
		SpecialConfigurations struct {
			D2CEnabled []Item `json:"d2c_enabled"`
			RingFenced []Item `json:"ring_fenced"`
		} `json:"special_configurations"`
	} `json:"grouped_items"`
	Items []Item `json:"items"`
}

// ItemDetails looks up PIM items, optionally keeping only D2C enabled (Y) or
// disabled (N) ones.
func (s *Service) ItemDetails(ctx context.Context, args tool.Arguments) (*ItemDetailsResult, error) {
	params := map[string]string{}
	used := map[string]any{}
	d2c := args.String("p_d2c")
	if d2c != "" && d2c != "Y" && d2c != "N" {
		return nil, tool.InvalidArguments("p_d2c must be either 'Y' or 'N'")
	}
	days, given, err := offsetParam(params, args)
	if err != nil {
		return nil, err
	}
	if given {
		used["offset_days"] = days
	}
	for _, name := range []string{"p_item_number", "p_category", "p_d2c"} {
		if v := setParam(params, name, args, name); v != "" {
			used[name] = v
		}
	}
	if org := s.translate(Warehouses, args.String("p_org")); org != "" {
		params["p_org"] = org
		used["p_org"] = org
	}

	_, rows, err := s.reportRows(ctx, itemDetailsReport, params, ',')
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, ok := s.itemFromRow(row)
		if !ok {
			continue
		}
		if d2c != "" {
			enabled, known := item[labelD2C].(bool)
			if !known || enabled != (d2c == "Y") {
				continue
			}
		}
		items = append(items, item)
	}

	out := &ItemDetailsResult{TotalItems: len(items), ParametersUsed: used, Items: items}
	out.GroupedItems.ByCategory = groupItems(items, labelCategory)
	out.GroupedItems.ByWarehouse = groupItems(items, labelWarehouse)
	out.GroupedItems.SpecialConfigurations.D2CEnabled = []Item{}
	out.GroupedItems.SpecialConfigurations.RingFenced = []Item{}
	for _, item := range items {
		if enabled, _ := item[labelD2C].(bool); enabled {
			out.GroupedItems.SpecialConfigurations.D2CEnabled = append(out.GroupedItems.SpecialConfigurations.D2CEnabled, item)
		}
		if fenced, _ := item[labelRingFencing].(bool); fenced {
			out.GroupedItems.SpecialConfigurations.RingFenced = append(out.GroupedItems.SpecialConfigurations.RingFenced, item)
		}
	}
	s.logger.Info("item details completed", "items", len(items), "rows", len(rows))
	return out, nil
}

// itemFromRow maps a report row to an Item. Rows with no values are skipped.
func (s *Service) itemFromRow(row oracle.Row) (Item, bool) {
	empty := true
	for _, v := range row {
		if v != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil, false
	}

	item := make(Item, len(itemFields))
	for _, f := range itemFields {
		v := row[f.column]
		if v == "" {
			item[f.label] = nil
			continue
		}
		switch f.column {
		case "ITEM_EFF":
			item[f.label] = v == skuSharingEffectivity
		case "RING_FENCING_ENABLED_FLAG":
			item[f.label] = v == "Y"
		case "SKU_PRICE":
			price, ok := parseNumber(v)
			if !ok {
				s.logger.Warn("invalid SKU price", "value", v)
				item[f.label] = nil
				continue
			}
			item[f.label] = price
		default:
			item[f.label] = v
		}
	}
	return item, true
}

func groupItems(items []Item, label string) map[string]*ItemGroup {
	out := map[string]*ItemGroup{}
	for _, item := range items {
		key, _ := item[label].(string)
		if key == "" {
			continue
		}
		g := out[key]
		if g == nil {
			g = &ItemGroup{}
			out[key] = g
		}
		g.TotalItems++
		g.Items = append(g.Items, item)
	}
	return out
}
