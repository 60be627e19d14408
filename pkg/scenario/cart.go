package scenario

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/expect"
	"github.com/devicelab-dev/pageflow/pkg/page"
)

// CartName is the registry name of CartScenario.
const CartName = "cart"

// Cart actions. The Spanish names used by older data files are aliases.
const (
	ActionAddAndVerify   = "add_and_verify"
	ActionAddAndRemove   = "add_and_remove"
	ActionVerifyContents = "verify_contents"
)

var actionAliases = map[string]string{
	"agregar_y_verificar": ActionAddAndVerify,
	"agregar_y_remover":   ActionAddAndRemove,
	"verificar_contenido": ActionVerifyContents,
}

// Field names, English first.
var (
	actionFields   = []string{"action", "accion"}
	indexFields    = []string{"product_index", "producto_index"}
	indicesFields  = []string{"product_indices", "productos_indices"}
	expectedFields = []string{"expected_count", "cantidad_esperada"}
)

// CartScenario logs in, empties the cart and runs one cart record. The
// record shape picks the case:
//
//	product_indices + expected_count   add several, check badge and cart
//	action + product_index             add_and_verify | add_and_remove | verify_contents
//	numeric id                         add that product, badge goes up by one
//
// An optional assert field is an expression over cart_count, items and url.
type CartScenario struct {
	User     string
	Password string
}

func (s *CartScenario) Name() string { return CartName }

type cartRun struct {
	env *executor.Env
	rec core.TestRecord
	inv *page.InventoryPage
	crt *page.CartPage
}

func (s *CartScenario) Run(ctx context.Context, env *executor.Env, rec core.TestRecord) error {
	r := &cartRun{env: env, rec: rec}
	var err error
	if r.inv, err = page.Get[*page.InventoryPage](env.Pages, page.InventoryName, env.Exec, env.BaseURL); err != nil {
		return err
	}
	if r.crt, err = page.Get[*page.CartPage](env.Pages, page.CartName, env.Exec, env.BaseURL); err != nil {
		return err
	}
	if err := s.login(ctx, env); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := r.inv.ResetAppState(ctx); err != nil {
		return fmt.Errorf("reset app state: %w", err)
	}

	switch {
	case hasAny(rec, indicesFields):
		err = r.multiple(ctx)
	case hasAny(rec, actionFields):
		err = r.action(ctx)
	default:
		err = r.single(ctx)
	}
	if err != nil {
		return err
	}
	return r.checkAssert(ctx)
}

func (s *CartScenario) login(ctx context.Context, env *executor.Env) error {
	user, pass := s.User, s.Password
	if user == "" {
		user, pass = "standard_user", "secret_sauce"
	}
	login, err := page.Get[*page.LoginPage](env.Pages, page.LoginName, env.Exec, env.BaseURL)
	if err != nil {
		return err
	}
	if err := login.Load(ctx); err != nil {
		return err
	}
	if err := login.Login(ctx, user, pass); err != nil {
		return err
	}
	return login.WaitForURL(ctx, "inventory.html")
}

func (r *cartRun) single(ctx context.Context) error {
	index, err := r.rec.Int("id")
	if err != nil {
		return r.dataErr("id", err)
	}
	return r.addAndCheckBadge(ctx, index)
}

func (r *cartRun) multiple(ctx context.Context) error {
	field := firstPresent(r.rec, indicesFields)
	indices, err := r.rec.Ints(field)
	if err != nil {
		return r.dataErr(field, err)
	}
	want := len(indices)
	if f := firstPresent(r.rec, expectedFields); f != "" {
		if want, err = r.rec.Int(f); err != nil {
			return r.dataErr(f, err)
		}
	}

	for _, i := range indices {
		if err := r.inv.AddProductToCart(ctx, i); err != nil {
			return fmt.Errorf("add product %d: %w", i, err)
		}
	}
	badge, err := r.inv.CartCount(ctx)
	if err != nil {
		return err
	}
	if badge != want {
		return core.Mismatch("cart badge", want, badge)
	}
	if err := r.inv.OpenCart(ctx); err != nil {
		return err
	}
	items, err := r.crt.ItemCount(ctx)
	if err != nil {
		return err
	}
	if items != want {
		return core.Mismatch("cart items", want, items)
	}
	return nil
}

func (r *cartRun) action(ctx context.Context) error {
	name := strings.ToLower(r.rec.String(firstPresent(r.rec, actionFields)))
	if alias, ok := actionAliases[name]; ok {
		name = alias
	}
	field := firstPresent(r.rec, indexFields)
	if field == "" {
		return r.dataErr(indexFields[0], fmt.Errorf("field not present"))
	}
	index, err := r.rec.Int(field)
	if err != nil {
		return r.dataErr(field, err)
	}
	r.env.Logger.Debug("cart action", zap.String("action", name), zap.Int("index", index))

	switch name {
	case ActionAddAndVerify:
		return r.addAndCheckBadge(ctx, index)

	case ActionAddAndRemove:
		if err := r.inv.AddProductToCart(ctx, index); err != nil {
			return err
		}
		before, err := r.inv.CartCount(ctx)
		if err != nil {
			return err
		}
		if err := r.inv.OpenCart(ctx); err != nil {
			return err
		}
		if err := r.crt.RemoveItem(ctx, 0); err != nil {
			return err
		}
		if err := r.inv.Load(ctx); err != nil {
			return err
		}
		after, err := r.inv.CartCount(ctx)
		if err != nil {
			return err
		}
		if after >= before {
			return core.Failf("cart badge did not drop after removal: %d -> %d", before, after)
		}
		return nil

	case ActionVerifyContents:
		names, err := r.inv.ProductNames(ctx)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(names) {
			return core.Failf("no product at index %d (inventory has %d)", index, len(names))
		}
		want := names[index]
		if err := r.inv.AddProductToCart(ctx, index); err != nil {
			return err
		}
		if err := r.inv.OpenCart(ctx); err != nil {
			return err
		}
		items, err := r.crt.ItemNames(ctx)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it == want {
				return nil
			}
		}
		return core.Mismatch("cart contents", want, items)
	}
	return core.Failf("unknown cart action %q", name)
}

func (r *cartRun) addAndCheckBadge(ctx context.Context, index int) error {
	before, err := r.inv.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := r.inv.AddProductToCart(ctx, index); err != nil {
		return fmt.Errorf("add product %d: %w", index, err)
	}
	after, err := r.inv.CartCount(ctx)
	if err != nil {
		return err
	}
	if after != before+1 {
		return core.Mismatch("cart badge", before+1, after)
	}
	return nil
}

// checkAssert evaluates the record's assert expression, if any.
func (r *cartRun) checkAssert(ctx context.Context) error {
	expression := r.rec.String("assert")
	if expression == "" {
		return nil
	}
	count, err := r.inv.CartCount(ctx)
	if err != nil {
		return err
	}
	items, err := r.crt.ItemNames(ctx)
	if err != nil {
		return err
	}
	url, err := r.env.Exec.CurrentURL(ctx)
	if err != nil {
		return err
	}
	return expect.Check(expression, expect.Observations{
		"cart_count": count,
		"items":      items,
		"url":        url,
	})
}

func (r *cartRun) dataErr(field string, err error) error {
	return &core.DataFormatError{
		Path:   r.rec.Source(),
		Reason: fmt.Sprintf("record %s: field %q: %v", r.rec.CaseID(), field, err),
	}
}

func hasAny(rec core.TestRecord, names []string) bool {
	return firstPresent(rec, names) != ""
}

func firstPresent(rec core.TestRecord, names []string) string {
	for _, n := range names {
		if rec.Has(n) {
			return n
		}
	}
	return ""
}
