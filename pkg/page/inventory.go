package page

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// InventoryName is the registry name of InventoryPage.
const InventoryName = "inventory"

// Inventory screen locators
var (
	PageTitle          = core.ByClass("title")
	InventoryItems     = core.ByClass("inventory_item")
	ProductNameLabels  = core.ByClass("inventory_item_name")
	ProductPriceLabels = core.ByClass("inventory_item_price")
	AddToCartButtons   = core.ByXPath("//button[contains(text(), 'Add to cart')]")
	RemoveButtons      = core.ByXPath("//button[contains(text(), 'Remove')]")
	CartBadge          = core.ByClass("shopping_cart_badge")
	CartLink           = core.ByClass("shopping_cart_link")
	MenuButton         = core.ByID("react-burger-menu-btn")
	ProductSort        = core.ByClass("product_sort_container")
	ResetAppStateLink  = core.ByID("reset_sidebar_link")
)

const inventoryURLMarker = "inventory.html"

// InventoryPage models the product list.
type InventoryPage struct {
	Base
}

// NewInventoryPage creates an InventoryPage.
func NewInventoryPage(e *action.Executor, baseURL string) *InventoryPage {
	return &InventoryPage{Base: NewBase(e, baseURL)}
}

func (p *InventoryPage) Name() string { return InventoryName }

// Load opens the inventory directly. It needs a logged-in session.
func (p *InventoryPage) Load(ctx context.Context) error {
	return p.Open(ctx, "/"+inventoryURLMarker)
}

// IsLoaded reports whether the inventory is showing.
func (p *InventoryPage) IsLoaded(ctx context.Context) (bool, error) {
	return p.OnURL(ctx, inventoryURLMarker)
}

// Title returns the header title.
func (p *InventoryPage) Title(ctx context.Context) (string, error) {
	return p.ReadText(ctx, PageTitle)
}

func (p *InventoryPage) ProductCount(ctx context.Context) (int, error) {
	return p.Count(ctx, InventoryItems)
}

func (p *InventoryPage) ProductNames(ctx context.Context) ([]string, error) {
	return p.ReadAll(ctx, ProductNameLabels)
}

func (p *InventoryPage) ProductPrices(ctx context.Context) ([]string, error) {
	return p.ReadAll(ctx, ProductPriceLabels)
}

// AddProductToCart clicks the index-th "Add to cart" button still showing
// and waits for the page to confirm it. Indices count remaining add buttons,
// not catalogue positions.
func (p *InventoryPage) AddProductToCart(ctx context.Context, index int) error {
	before, err := p.Count(ctx, RemoveButtons)
	if err != nil {
		return err
	}
	nth := core.ByXPath(fmt.Sprintf("(//button[contains(text(), 'Add to cart')])[%d]", index+1))
	if err := p.ClickByScript(ctx, nth, 0); err != nil {
		return err
	}

	err = p.Await(ctx, wait.CountAtLeast(RemoveButtons, before+1))
	var wte *core.WaitTimeoutError
	if err == nil || !errors.As(err, &wte) || wte.Cancelled() {
		return err
	}
	// Fall back to the badge, which is all some layouts update.
	if fallback := p.AwaitWithin(ctx, wait.PresenceOf(CartBadge), errorGrace); fallback != nil {
		return err
	}
	return nil
}

// CartCount returns the badge number, 0 when there is no badge.
func (p *InventoryPage) CartCount(ctx context.Context) (int, error) {
	texts, err := p.ReadAll(ctx, CartBadge)
	if err != nil || len(texts) == 0 {
		return 0, err
	}
	n, err := strconv.Atoi(texts[0])
	if err != nil {
		return 0, fmt.Errorf("cart badge %q: %w", texts[0], err)
	}
	return n, nil
}

// OpenCart clicks the cart icon and waits for the cart page.
func (p *InventoryPage) OpenCart(ctx context.Context) error {
	if err := p.Click(ctx, CartLink); err != nil {
		return err
	}
	return p.WaitForURL(ctx, cartURLMarker)
}

func (p *InventoryPage) IsMenuPresent(ctx context.Context) (bool, error) {
	return p.IsPresent(ctx, MenuButton)
}

func (p *InventoryPage) IsCartIconPresent(ctx context.Context) (bool, error) {
	return p.IsPresent(ctx, CartLink)
}

// ResetAppState empties the cart through the side menu's reset link, then
// reloads the inventory so the buttons reflect it.
func (p *InventoryPage) ResetAppState(ctx context.Context) error {
	if err := p.ClickByScript(ctx, ResetAppStateLink, 0); err != nil {
		return err
	}
	if err := p.Load(ctx); err != nil {
		return err
	}
	return p.Await(ctx, wait.AbsenceOf(CartBadge))
}
