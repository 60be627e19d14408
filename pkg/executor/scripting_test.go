package executor

import (
	"testing"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func TestExpandDollarVar(t *testing.T) {
	tests := []struct {
		text, name, value, want string
	}{
		{"hello $USER", "USER", "bob", "hello bob"},
		{"$USER/$USER", "USER", "bob", "bob/bob"},
		{"$USERNAME", "USER", "bob", "$USERNAME"},
		{"$USER_ID $USER", "USER", "bob", "$USER_ID bob"},
		{"no refs", "USER", "bob", "no refs"},
		{"$USER.", "USER", "", "."},
	}
	for _, tt := range tests {
		if got := expandDollarVar(tt.text, tt.name, tt.value); got != tt.want {
			t.Errorf("expandDollarVar(%q, %q) = %q, want %q", tt.text, tt.name, got, tt.want)
		}
	}
}

func TestScriptEngine_ExpandVariables(t *testing.T) {
	rec, err := core.NewTestRecord(core.RecordSpec{
		CaseID:   "TC001",
		Expected: "success",
		Fields:   map[string]interface{}{"username": "standard_user", "count": 2, "password": "pa$APP"},
	})
	if err != nil {
		t.Fatal(err)
	}

	se := NewScriptEngine(nil)
	se.SetRecord(rec)
	se.SetVariables(map[string]string{"APP_USER": "env_user", "APP": "demo"})

	tests := []struct {
		in, want string
	}{
		{"${username}", "standard_user"},
		{"${count + 1}", "3"},
		{"${case_id}-${expected}", "TC001-success"},
		{"$APP_USER on $APP", "env_user on demo"},
		{"${APP_USER}", "env_user"},
		{"${missing}", "${missing}"},
		{"${password}", "pa$APP"},
		{"$APP-${password}", "demo-pa$APP"},
		{"${coupon || 'none'}", "none"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := se.ExpandVariables(tt.in); got != tt.want {
			t.Errorf("ExpandVariables(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScriptEngine_RecordValuesNotReexpanded(t *testing.T) {
	t.Setenv("PAGEFLOW_HOME", "/root")
	rec, err := core.NewTestRecord(core.RecordSpec{
		CaseID:   "TC002",
		Expected: "success",
		Fields:   map[string]interface{}{"password": "pa$PAGEFLOW_HOME"},
	})
	if err != nil {
		t.Fatal(err)
	}

	se := NewScriptEngine(nil)
	se.ImportSystemEnv()
	se.SetRecord(rec)

	if got, want := se.ExpandVariables("${password}"), "pa$PAGEFLOW_HOME"; got != want {
		t.Errorf("ExpandVariables(${password}) = %q, want %q", got, want)
	}
	if got, want := se.ExpandVariables("$PAGEFLOW_HOME/${password}"), "/root/pa$PAGEFLOW_HOME"; got != want {
		t.Errorf("mixed = %q, want %q", got, want)
	}
}

func TestScriptEngine_ImportSystemEnv(t *testing.T) {
	t.Setenv("PAGEFLOW_TEST_VAR", "from-env")
	t.Setenv("lower_case_var", "ignored")

	se := NewScriptEngine(nil)
	se.ImportSystemEnv()
	se.SetVariable("PAGEFLOW_TEST_VAR", "overridden")

	if got := se.GetVariable("PAGEFLOW_TEST_VAR"); got != "overridden" {
		t.Errorf("GetVariable() = %q, want %q", got, "overridden")
	}
	if got := se.GetVariable("lower_case_var"); got != "" {
		t.Errorf("lower-case variable imported: %q", got)
	}
}

func TestScriptEngine_ExpandLocator(t *testing.T) {
	se := NewScriptEngine(nil)
	se.SetVariable("ITEM", "sauce-labs-backpack")

	loc, err := se.ExpandLocator(core.ByID("add-to-cart-$ITEM"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Value() != "add-to-cart-sauce-labs-backpack" || loc.Strategy() != core.StrategyID {
		t.Errorf("ExpandLocator() = %s", loc)
	}
}
