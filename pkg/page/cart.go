package page

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// CartName is the registry name of CartPage.
const CartName = "cart"

// Cart screen locators
var (
	CartItems      = core.ByClass("cart_item")
	CartItemNames  = core.ByCSS(".cart_item .inventory_item_name")
	CartItemPrices = core.ByCSS(".cart_item .inventory_item_price")
	CartQuantities = core.ByClass("cart_quantity")
	CartRemove     = core.ByCSS(".cart_item button.cart_button")
	ContinueButton = core.ByID("continue-shopping")
	CheckoutButton = core.ByID("checkout")
)

const cartURLMarker = "cart.html"

// CartPage models the cart screen.
type CartPage struct {
	Base
}

// NewCartPage creates a CartPage.
func NewCartPage(e *action.Executor, baseURL string) *CartPage {
	return &CartPage{Base: NewBase(e, baseURL)}
}

func (p *CartPage) Name() string { return CartName }

// Load opens the cart directly. It needs a logged-in session.
func (p *CartPage) Load(ctx context.Context) error {
	return p.Open(ctx, "/"+cartURLMarker)
}

func (p *CartPage) IsLoaded(ctx context.Context) (bool, error) {
	return p.OnURL(ctx, cartURLMarker)
}

func (p *CartPage) Title(ctx context.Context) (string, error) {
	return p.ReadText(ctx, PageTitle)
}

func (p *CartPage) ItemCount(ctx context.Context) (int, error) {
	return p.Count(ctx, CartItems)
}

func (p *CartPage) ItemNames(ctx context.Context) ([]string, error) {
	return p.ReadAll(ctx, CartItemNames)
}

func (p *CartPage) ItemPrices(ctx context.Context) ([]string, error) {
	return p.ReadAll(ctx, CartItemPrices)
}

func (p *CartPage) IsEmpty(ctx context.Context) (bool, error) {
	n, err := p.ItemCount(ctx)
	return n == 0, err
}

// RemoveItem removes the index-th cart line and waits for the list to shrink.
func (p *CartPage) RemoveItem(ctx context.Context, index int) error {
	before, err := p.ItemCount(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= before {
		return core.Failf("no cart item at index %d (cart has %d)", index, before)
	}
	if err := p.ClickByScript(ctx, CartRemove, index); err != nil {
		return err
	}
	return p.Await(ctx, wait.Custom(fmt.Sprintf("fewer than %d cart items", before),
		func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, CartItems)
			if err != nil {
				return false, err
			}
			return len(els) < before, nil
		}))
}

// ContinueShopping returns to the inventory.
func (p *CartPage) ContinueShopping(ctx context.Context) error {
	if err := p.Click(ctx, ContinueButton); err != nil {
		return err
	}
	return p.WaitForURL(ctx, inventoryURLMarker)
}

// Checkout starts the checkout.
func (p *CartPage) Checkout(ctx context.Context) error {
	if err := p.Click(ctx, CheckoutButton); err != nil {
		return err
	}
	return p.WaitForURL(ctx, "checkout-step-one")
}
