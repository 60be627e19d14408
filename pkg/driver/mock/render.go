package mock

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// render returns the HTML for the current page. Interactive elements carry
// data-action (and data-index) so clicks can be dispatched.
func (s *store) render() string {
	var b strings.Builder
	title := "Swag Labs"
	b.WriteString("<!DOCTYPE html><html><head><title>" + title + "</title></head><body>")
	b.WriteString(`<div id="root"><div class="page_wrapper">`)

	switch s.page {
	case pageLogin:
		s.renderLogin(&b)
	case pageInventory:
		s.renderHeader(&b)
		s.renderInventory(&b)
	case pageCart:
		s.renderHeader(&b)
		s.renderCart(&b)
	case pageCheckout:
		s.renderHeader(&b)
		b.WriteString(`<div class="checkout_info"><input id="first-name" type="text" value="` + s.value("first-name") + `">` +
			`<input id="last-name" type="text" value="` + s.value("last-name") + `">` +
			`<input id="postal-code" type="text" value="` + s.value("postal-code") + `">` +
			`<button id="cancel" data-action="cancel">Cancel</button></div>`)
	case pageNotFound:
		b.WriteString(`<h1 class="not_found">404 Not Found</h1>`)
	}

	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func (s *store) value(id string) string {
	return html.EscapeString(s.form[id])
}

func (s *store) renderLogin(b *strings.Builder) {
	b.WriteString(`<div class="login_logo">Swag Labs</div><div class="login_wrapper"><form>`)
	b.WriteString(`<input class="input_error form_input" placeholder="Username" type="text" data-test="username" id="user-name" name="user-name" value="` + s.value("user-name") + `">`)
	b.WriteString(`<input class="input_error form_input" placeholder="Password" type="password" data-test="password" id="password" name="password" value="` + s.value("password") + `">`)
	b.WriteString(`<div class="error-message-container`)
	if s.errorMsg != "" {
		b.WriteString(` error"><h3 data-test="error">` + html.EscapeString(s.errorMsg) +
			`<button class="error-button" data-test="error-button" data-action="dismiss-error"></button></h3>`)
	} else {
		b.WriteString(`">`)
	}
	b.WriteString(`</div>`)
	b.WriteString(`<input type="submit" class="submit-button btn_action" data-test="login-button" id="login-button" name="login-button" value="Login" data-action="login">`)
	b.WriteString(`</form></div>`)
}

func (s *store) renderHeader(b *strings.Builder) {
	b.WriteString(`<div class="primary_header">`)
	b.WriteString(`<div class="bm-menu-wrap"`)
	if !s.menuOpen {
		b.WriteString(` hidden`)
	}
	b.WriteString(`>` +
		`<a id="inventory_sidebar_link" class="bm-item menu-item" data-action="all-items">All Items</a>` +
		`<a id="logout_sidebar_link" class="bm-item menu-item" data-action="logout">Logout</a>` +
		`<a id="reset_sidebar_link" class="bm-item menu-item" data-action="reset">Reset App State</a></div>`)
	b.WriteString(`<button id="react-burger-menu-btn" data-action="menu">Open Menu</button>`)
	b.WriteString(`<div class="app_logo">Swag Labs</div>`)
	b.WriteString(`<div id="shopping_cart_container" class="shopping_cart_container">`)
	b.WriteString(`<a class="shopping_cart_link" data-test="shopping-cart-link" data-action="cart">`)
	if n := len(s.cart); n > 0 {
		b.WriteString(`<span class="shopping_cart_badge" data-test="shopping-cart-badge">` + strconv.Itoa(n) + `</span>`)
	}
	b.WriteString(`</a></div></div>`)
	b.WriteString(`<div class="header_secondary_container"><span class="title" data-test="title">` + s.title() + `</span>`)
	if s.page == pageInventory {
		b.WriteString(`<select class="product_sort_container" data-test="product-sort-container">` +
			`<option value="az">Name (A to Z)</option><option value="za">Name (Z to A)</option></select>`)
	}
	b.WriteString(`</div>`)
}

func (s *store) renderInventory(b *strings.Builder) {
	b.WriteString(`<div class="inventory_container"><div class="inventory_list">`)
	for i, p := range Catalogue {
		slug := productSlug(p.Name)
		b.WriteString(`<div class="inventory_item" data-test="inventory-item">`)
		b.WriteString(`<div class="inventory_item_name" data-test="inventory-item-name">` + html.EscapeString(p.Name) + `</div>`)
		b.WriteString(`<div class="pricebar"><div class="inventory_item_price" data-test="inventory-item-price">` + p.Price + `</div>`)
		if s.cart[i] {
			fmt.Fprintf(b, `<button class="btn btn_secondary btn_small btn_inventory" id="remove-%s" data-action="remove" data-index="%d">Remove</button>`, slug, i)
		} else {
			fmt.Fprintf(b, `<button class="btn btn_primary btn_small btn_inventory" id="add-to-cart-%s" data-action="add" data-index="%d">Add to cart</button>`, slug, i)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div></div>`)
}

func (s *store) renderCart(b *strings.Builder) {
	b.WriteString(`<div class="cart_contents_container"><div class="cart_list">`)
	b.WriteString(`<div class="cart_quantity_label">QTY</div><div class="cart_desc_label">Description</div>`)
	for _, i := range s.cartItems() {
		p := Catalogue[i]
		b.WriteString(`<div class="cart_item" data-test="inventory-item"><div class="cart_quantity" data-test="item-quantity">1</div>`)
		b.WriteString(`<div class="cart_item_label"><div class="inventory_item_name" data-test="inventory-item-name">` + html.EscapeString(p.Name) + `</div>`)
		b.WriteString(`<div class="item_pricebar"><div class="inventory_item_price" data-test="inventory-item-price">` + p.Price + `</div>`)
		fmt.Fprintf(b, `<button class="btn btn_secondary btn_small cart_button" id="remove-%s" data-action="remove" data-index="%d">Remove</button>`, productSlug(p.Name), i)
		b.WriteString(`</div></div></div>`)
	}
	b.WriteString(`</div><div class="cart_footer">`)
	b.WriteString(`<button class="btn btn_secondary back btn_medium" id="continue-shopping" data-action="continue">Continue Shopping</button>`)
	b.WriteString(`<button class="btn btn_action btn_medium checkout_button" id="checkout" data-action="checkout">Checkout</button>`)
	b.WriteString(`</div></div>`)
}
