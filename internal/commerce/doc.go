// Package commerce implements the shopping cart and order checkout.
//
// Each user has at most one cart, created on first use. Adding a product
// that is already in the cart sums the quantities; the summed quantity may
// not exceed the product's stock.
//
// PlaceOrder runs in one SQL transaction: it reads current prices, checks
// and decrements stock by direct arithmetic, writes the order and its items,
// and clears the cart when the order was built from it. There is no stock
// reservation; two concurrent checkouts serialise on the single SQLite
// writer. Cancelling a PENDING or CONFIRMED order restores its stock.
package commerce
