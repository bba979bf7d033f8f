package cart

import (
	"github.com/shopspring/decimal"
)

// Line is one position of an ephemeral cart. Name, Price and Stock are
// snapshots of the product at the time the line was created; Stock is the
// ceiling quantity edits are clamped against during a merge.
type Line struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Stock     uint            `json:"stock"`
}

// Cart is the request-scoped basket. It is loaded from the session store at
// the start of a request and written back at the end; handlers only ever
// touch this value, never a shared session bag.
//
// Total and Count are caches derived from Lines, Recalculate refreshes them.
// FromDurable marks a cart whose lines were sourced from durable storage
// rather than built up locally.
type Cart struct {
	Lines       []Line          `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	Count       int             `json:"count"`
	FromDurable bool            `json:"-"`
}

func New() *Cart {
	return &Cart{Lines: []Line{}, Total: decimal.Zero}
}

// Recalculate derives Total and Count from the line set. Lines with a
// non-positive quantity are treated as already removed and skipped.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	count := 0
	for _, l := range c.Lines {
		if l.Quantity <= 0 {
			continue
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	c.Total = total
	c.Count = count
}

func (c *Cart) find(productID uint) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Get returns the line for productID, if any.
func (c *Cart) Get(productID uint) (Line, bool) {
	if i := c.find(productID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Add merges quantity into an existing line or appends a new one, then
// recalculates. The snapshot fields of an existing line are left as they
// were taken at add time.
func (c *Cart) Add(l Line) {
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	if i := c.find(l.ProductID); i >= 0 {
		c.Lines[i].Quantity += l.Quantity
	} else {
		c.Lines = append(c.Lines, l)
	}
	c.Recalculate()
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// below removes the line; a non-positive quantity is never kept.
func (c *Cart) SetQuantity(productID uint, quantity int) {
	i := c.find(productID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	} else {
		c.Lines[i].Quantity = quantity
	}
	c.Recalculate()
}

// Remove drops the line for productID, if present.
func (c *Cart) Remove(productID uint) {
	c.SetQuantity(productID, 0)
}

// Clear empties the cart and resets the durable-sourced mark.
func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.FromDurable = false
	c.Recalculate()
}

// resolved returns the lines that count: positive quantity and a real
// product id. This is the set checkout operates on.
func (c *Cart) resolved() []Line {
	out := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity <= 0 || l.ProductID == 0 {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Resolved exposes the filtered line set for checkout.
func (c *Cart) Resolved() []Line {
	return c.resolved()
}
