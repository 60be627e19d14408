package mock

import (
	"sort"
	"strings"
)

// Product is one catalogue entry of the simulated storefront.
type Product struct {
	Name  string
	Price string
}

// Catalogue mirrors the demo storefront inventory, in display order.
var Catalogue = []Product{
	{"Sauce Labs Backpack", "$29.99"},
	{"Sauce Labs Bike Light", "$9.99"},
	{"Sauce Labs Bolt T-Shirt", "$15.99"},
	{"Sauce Labs Fleece Jacket", "$49.99"},
	{"Sauce Labs Onesie", "$7.99"},
	{"Test.allTheThings() T-Shirt (Red)", "$15.99"},
}

// Password accepted for every known user.
const Password = "secret_sauce"

// Known users
const (
	UserStandard          = "standard_user"
	UserLockedOut         = "locked_out_user"
	UserProblem           = "problem_user"
	UserPerformanceGlitch = "performance_glitch_user"
)

var knownUsers = map[string]bool{
	UserStandard:          true,
	UserLockedOut:         true,
	UserProblem:           true,
	UserPerformanceGlitch: true,
}

// Error banner texts
const (
	MsgUsernameRequired = "Epic sadface: Username is required"
	MsgPasswordRequired = "Epic sadface: Password is required"
	MsgLockedOut        = "Epic sadface: Sorry, this user has been locked out."
	MsgBadCredentials   = "Epic sadface: Username and password do not match any user in this service"
)

type pageKind int

const (
	pageLogin pageKind = iota
	pageInventory
	pageCart
	pageCheckout
	pageNotFound
)

var pagePaths = map[pageKind]string{
	pageLogin:     "/",
	pageInventory: "/inventory.html",
	pageCart:      "/cart.html",
	pageCheckout:  "/checkout-step-one.html",
	pageNotFound:  "/404",
}

// store is the storefront state behind the rendered pages.
type store struct {
	page     pageKind
	user     string
	cart     map[int]bool
	errorMsg string
	form     map[string]string // input id -> value
	menuOpen bool
}

func newStore() *store {
	return &store{
		page: pageLogin,
		cart: make(map[int]bool),
		form: make(map[string]string),
	}
}

// login validates credentials. ok reports a successful login.
func (s *store) login(username, password string) (ok bool) {
	switch {
	case username == "":
		s.errorMsg = MsgUsernameRequired
	case password == "":
		s.errorMsg = MsgPasswordRequired
	case !knownUsers[username] || password != Password:
		s.errorMsg = MsgBadCredentials
	case username == UserLockedOut:
		s.errorMsg = MsgLockedOut
	default:
		s.errorMsg = ""
		return true
	}
	return false
}

func (s *store) enter(user string) {
	if s.user != user {
		s.cart = make(map[int]bool)
	}
	s.user = user
	s.page = pageInventory
	s.form = make(map[string]string)
}

// addToCart returns false when the click has no effect.
func (s *store) addToCart(index int) bool {
	if index < 0 || index >= len(Catalogue) {
		return false
	}
	// problem_user cannot add every other product, like the real site.
	if s.user == UserProblem && index%2 == 1 {
		return false
	}
	s.cart[index] = true
	return true
}

func (s *store) removeFromCart(index int) {
	delete(s.cart, index)
}

// logout drops the session and its cart.
func (s *store) logout() {
	s.user = ""
	s.cart = make(map[int]bool)
	s.page = pageLogin
	s.menuOpen = false
	s.form = make(map[string]string)
}

func (s *store) cartItems() []int {
	items := make([]int, 0, len(s.cart))
	for i := range s.cart {
		items = append(items, i)
	}
	sort.Ints(items)
	return items
}

// route resolves a path for navigation.
func (s *store) route(path string) {
	path = "/" + strings.TrimLeft(path, "/")
	s.errorMsg = ""
	s.menuOpen = false
	switch path {
	case "/", "/index.html":
		s.page = pageLogin
	case pagePaths[pageInventory], pagePaths[pageCart], pagePaths[pageCheckout]:
		if s.user == "" {
			s.page = pageLogin
			s.errorMsg = "Epic sadface: You can only access '" + path + "' when you are logged in."
			return
		}
		for kind, p := range pagePaths {
			if p == path {
				s.page = kind
			}
		}
	default:
		s.page = pageNotFound
	}
}

func (s *store) title() string {
	switch s.page {
	case pageInventory:
		return "Products"
	case pageCart:
		return "Your Cart"
	case pageCheckout:
		return "Checkout: Your Information"
	case pageNotFound:
		return "Not Found"
	default:
		return ""
	}
}

func productSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.':
			b.WriteByte('-')
		}
	}
	return b.String()
}
