package fieldz

import "testing"

func TestKeyPath(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		p := Path("items", 2, "name")
		if got := p.String(); got != "items.2.name" {
			t.Errorf("expected items.2.name, got %s", got)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		p := Path("items", 2)
		if name, ok := p[0].FieldName(); !ok || name != "items" {
			t.Errorf("expected field items, got %v", p[0])
		}
		if i, ok := p[1].Position(); !ok || i != 2 {
			t.Errorf("expected index 2, got %v", p[1])
		}
	})

	t.Run("Equal", func(t *testing.T) {
		if !Path("a", 1).Equal(Path("a", 1)) {
			t.Error("identical paths should be equal")
		}
		if Path("a", 1).Equal(Path("a", "1")) {
			t.Error("index 1 and field \"1\" should differ")
		}
	})
}

func TestContextDerivation(t *testing.T) {
	obj := &testObject{name: "order"}
	app := NewApp()
	base := NewContext(Int(1),
		WithPath(Path("items")),
		WithObject(obj),
		WithIntent(IntentMany),
		WithApp(app),
	)

	t.Run("WithValue keeps everything else", func(t *testing.T) {
		c := base.WithValue(String("x"))
		if !Equal(c.Value(), String("x")) {
			t.Errorf("expected new value, got %s", c.Value())
		}
		if !Equal(base.Value(), Int(1)) {
			t.Error("original context was modified")
		}
		if o, _ := c.Object(); o != Object(obj) || c.Intent() != IntentMany || c.App() != app {
			t.Error("object, intent or app was lost")
		}
	})

	t.Run("Child paths never alias", func(t *testing.T) {
		a := base.Child(Index(0))
		b := base.Child(Index(1))
		if a.Path().String() != "items.0" || b.Path().String() != "items.1" {
			t.Errorf("unexpected paths %s and %s", a.Path(), b.Path())
		}
		if base.Path().String() != "items" {
			t.Errorf("parent path changed to %s", base.Path())
		}
	})

	t.Run("Path returns a copy", func(t *testing.T) {
		p := base.Path()
		p[0] = Field("other")
		if base.Path().String() != "items" {
			t.Error("caller mutated the context path")
		}
	})

	t.Run("ChildValue", func(t *testing.T) {
		c := base.ChildValue(Field("sku"), String("A1"))
		if c.Path().String() != "items.sku" || !Equal(c.Value(), String("A1")) {
			t.Errorf("unexpected child %s = %s", c.Path(), c.Value())
		}
	})

	t.Run("Missing object", func(t *testing.T) {
		if _, ok := NewContext(Null()).Object(); ok {
			t.Error("expected no object")
		}
	})
}

func TestIntentString(t *testing.T) {
	tests := map[Intent]string{
		IntentSingle:     "single",
		IntentMany:       "many",
		IntentNestedMany: "nested_many",
	}
	for intent, want := range tests {
		if got := intent.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}
