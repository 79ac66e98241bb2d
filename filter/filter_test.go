package filter

import (
	"testing"

	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/host/hostmem"
	"github.com/slid-mod/slid/trait"
)

func registryFixture(t *testing.T) *Registry {
	t.Helper()
	r, err := Init(trait.DefaultEvaluator())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestInit(t *testing.T) {
	r := registryFixture(t)

	if n := len(r.All()); n < 30 {
		t.Fatalf("suspiciously small taxonomy: %d filters", n)
	}

	roots := r.FamilyRoots()
	if len(roots) == 0 {
		t.Fatal("no family roots")
	}
	for _, root := range roots {
		f, have := r.Get(root)
		if !have {
			t.Fatalf("root %q not registered", root)
		}
		if f.Parent != "" {
			t.Fatalf("root %q has a parent", root)
		}
	}

	for _, root := range roots {
		for _, child := range r.Children(root) {
			got, _ := r.Root(child)
			if got != root {
				t.Fatalf("child %q: root %q, want %q", child, got, root)
			}
		}
	}
}

func TestTaxonomyBreadth(t *testing.T) {
	r := registryFixture(t)

	if n := len(r.All()); n < 50 {
		t.Fatalf("taxonomy shrank: %d filters", n)
	}
	for _, id := range []ID{
		"weapons.silver", "weapons.staves", "armor.unique",
		"clothing.fine", "jewelry.rings", "jewelry.necklaces",
		"books.rare", "ingredients.rare", "soulgems.empty",
		"materials.parts", "valuables.enchanted", "misc.instruments",
	} {
		if _, have := r.Get(id); !have {
			t.Fatalf("missing %q", id)
		}
	}

	empty := &hostmem.Item{ID: 1, ItemName: "Petty Soul Gem", FormType: host.FormSoulGem, Value: 10}
	filled := &hostmem.Item{ID: 2, ItemName: "Petty Soul Gem", FormType: host.FormSoulGem, Value: 30,
		KeywordList: []string{"SoulGemFilled"}}
	if !r.Match("soulgems.empty", empty) || r.Match("soulgems.empty", filled) {
		t.Fatal("soulgems.empty mismatch")
	}
	if !r.Match("soulgems.filled", filled) || r.Match("soulgems.filled", empty) {
		t.Fatal("soulgems.filled mismatch")
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	r := registryFixture(t)
	if _, have := r.Get("Weapons"); !have {
		t.Fatal("case-insensitive lookup failed")
	}
	if _, have := r.Get("WEAPONS.ONEHANDED"); !have {
		t.Fatal("case-insensitive child lookup failed")
	}
}

func TestMatch(t *testing.T) {
	r := registryFixture(t)

	sword := &hostmem.Item{ID: 1, ItemName: "Iron Sword", FormType: host.FormWeapon, Value: 30, Sub: "onehanded"}
	bow := &hostmem.Item{ID: 2, ItemName: "Long Bow", FormType: host.FormWeapon, Value: 50, Sub: "ranged"}
	tome := &hostmem.Item{ID: 3, ItemName: "Tome: Flames", FormType: host.FormBook, Value: 50, KeywordList: []string{"VendorItemSpellTome"}}
	ring := &hostmem.Item{ID: 4, ItemName: "Gold Diamond Ring", FormType: host.FormArmor, Value: 900, Sub: "jewelry"}
	apple := &hostmem.Item{ID: 5, ItemName: "Apple", FormType: host.FormFood, Value: 2}

	tests := []struct {
		id   ID
		item host.Item
		want bool
	}{
		{"weapons", sword, true},
		{"weapons.onehanded", sword, true},
		{"weapons.twohanded", sword, false},
		{"weapons.ranged", bow, true},
		{"books", tome, true},
		{"books.spelltomes", tome, true},
		{"books.recipes", tome, false},
		{"jewelry", ring, true},
		{"valuables", ring, true},
		{"armor", ring, false}, // jewelry excluded from armor family
		{"food", apple, true},
		{"valuables", apple, false},
		{"nosuchfilter", apple, false},
	}

	for _, test := range tests {
		if got := r.Match(test.id, test.item); got != test.want {
			t.Fatalf("Match(%q, %s) = %v, want %v", test.id, test.item.Name(), got, test.want)
		}
	}
}

// A child must never match an item its family root would not.
func TestChildWithinFamily(t *testing.T) {
	r := registryFixture(t)

	items := []host.Item{
		&hostmem.Item{ID: 1, ItemName: "Iron Sword", FormType: host.FormWeapon, Value: 30, Sub: "onehanded"},
		&hostmem.Item{ID: 2, ItemName: "Steel Dagger", FormType: host.FormWeapon, Value: 20, Sub: "onehanded"},
		&hostmem.Item{ID: 3, ItemName: "Leather Boots", FormType: host.FormArmor, Value: 15, Sub: "light"},
		&hostmem.Item{ID: 4, ItemName: "Hide", FormType: host.FormMisc, Value: 10, KeywordList: []string{"VendorItemAnimalHide"}},
		&hostmem.Item{ID: 5, ItemName: "Diamond", FormType: host.FormMisc, Value: 800, KeywordList: []string{"VendorItemGem"}},
		&hostmem.Item{ID: 6, ItemName: "Lockpick", FormType: host.FormMisc, Value: 2, KeywordList: []string{"VendorItemTool"}},
	}

	for _, root := range r.FamilyRoots() {
		for _, child := range r.Children(root) {
			for _, it := range items {
				if r.Match(child, it) && !r.Match(root, it) {
					t.Fatalf("%q matches %s but root %q does not", child, it.Name(), root)
				}
			}
		}
	}
}

func TestDefaultWhooshFilters(t *testing.T) {
	r := registryFixture(t)
	ws := r.DefaultWhooshFilters()
	if len(ws) == 0 {
		t.Fatal("no default whoosh filters")
	}
	for _, id := range ws {
		f, have := r.Get(id)
		if !have || f.Parent != "" {
			t.Fatalf("whoosh filter %q is not a family root", id)
		}
	}
}

func TestLoadRejectsBadTaxonomies(t *testing.T) {
	eval := trait.DefaultEvaluator()
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate id", `
filters:
  - {id: a, name: A, match: {all: [Weapon]}}
  - {id: a, name: A2, match: {all: [Armor]}}
`},
		{"unknown parent", `
filters:
  - {id: a, name: A, parent: nope, match: {all: [Weapon]}}
`},
		{"nested child", `
filters:
  - {id: a, name: A, match: {all: [Weapon]}}
  - {id: b, name: B, parent: a, match: {all: [OneHanded]}}
  - {id: c, name: C, parent: b, match: {all: [Enchanted]}}
`},
	}
	for _, test := range tests {
		if _, err := Load([]byte(test.yaml), eval); err == nil {
			t.Fatalf("%s: expected an error", test.name)
		}
	}
}

func TestMatcherConjoin(t *testing.T) {
	parent := Matcher{All: []trait.Trait{trait.Misc}, Any: []trait.Trait{trait.Keyword("A"), trait.Keyword("B")}}
	child := Matcher{MinValue: 100}.conjoin(parent)

	mk := func(value int, kws ...trait.Trait) trait.Set {
		// Build a set through the evaluator to keep Set construction
		// in one place.
		item := &hostmem.Item{ID: 99, ItemName: "x", FormType: host.FormMisc, Value: value}
		for _, kw := range kws {
			item.KeywordList = append(item.KeywordList, string(kw[len("Keyword:"):]))
		}
		return trait.DefaultEvaluator().TraitsOf(item)
	}

	if child.Test(mk(500)) {
		t.Fatal("conjoined Any group lost")
	}
	if !child.Test(mk(500, trait.Keyword("A"))) {
		t.Fatal("should match with keyword A and value 500")
	}
	if child.Test(mk(50, trait.Keyword("A"))) {
		t.Fatal("child MinValue lost")
	}
}
