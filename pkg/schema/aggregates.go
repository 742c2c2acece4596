package schema

// TotalRule declares a derived-aggregate relationship: a column on a parent
// table that must always equal the sum of price*quantity over the item rows
// referencing it. The maintainer recomputes the total from the full item set
// of each affected parent, never incrementally.
type TotalRule struct {
	// ItemTable is the table whose rows contribute to the total (order_items).
	ItemTable string

	// ParentKeyColumn is the FK column on the item table naming the parent
	// (order_id).
	ParentKeyColumn string

	// ParentTable is the table carrying the derived column (orders).
	ParentTable string

	// TotalColumn is the derived column on the parent (total_price_cents).
	TotalColumn string

	// PriceColumn and QuantityColumn are the item columns whose product is
	// summed.
	PriceColumn    string
	QuantityColumn string
}

// DepletionRule declares the stock-depletion relationship: fulfilling an item
// row decrements the quantity of the stock row matching the item's product in
// a chosen store. A decrement below zero aborts the transaction.
type DepletionRule struct {
	// ItemTable is the table whose rows are fulfilled (order_items).
	ItemTable string

	// StockTable is the table holding per-product-per-store quantities
	// (inventory).
	StockTable string

	// ItemProductColumn names the product on the item row (product_id).
	ItemProductColumn string

	// StockProductColumn and StockStoreColumn identify the stock row
	// (product_id, store_id).
	StockProductColumn string
	StockStoreColumn   string

	// ItemQuantityColumn is the decrement amount; StockQuantityColumn is the
	// column decremented.
	ItemQuantityColumn  string
	StockQuantityColumn string
}
