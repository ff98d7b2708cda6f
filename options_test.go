package vnc

import "testing"

func TestOptionsObservers(t *testing.T) {
	o := NewOptions(DefaultOptionValues())
	var got []OptionValues
	unsubscribe := o.Subscribe(func(v OptionValues) { got = append(got, v) })

	o.Update(func(v *OptionValues) { v.PreferredPixelFormat = PixelFormat8bit })
	if len(got) != 1 || got[0].PreferredPixelFormat.BPP != 8 || !got[0].AcceptClipboard {
		t.Fatalf("notifications %+v", got)
	}
	if o.Values().PreferredPixelFormat.BPP != 8 {
		t.Fatalf("value not stored")
	}

	unsubscribe()
	o.Update(func(v *OptionValues) { v.AcceptClipboard = false })
	if len(got) != 1 {
		t.Fatalf("notified after unsubscribe")
	}
}

func TestOptionsObserverMayReadValues(t *testing.T) {
	o := NewOptions(DefaultOptionValues())
	var seen bool
	o.Subscribe(func(OptionValues) { seen = !o.Values().AcceptClipboard })
	o.Update(func(v *OptionValues) { v.AcceptClipboard = false })
	if !seen {
		t.Fatalf("observer saw stale values")
	}
}

func TestClosedConnectionUnsubscribes(t *testing.T) {
	o := NewOptions(DefaultOptionValues())
	cc, err := NewClientConn(newMockConn(nil), &ClientConfig{Renderer: &recorder{}, Options: o})
	if err != nil {
		t.Fatal(err)
	}
	cc.Close()
	o.Update(func(v *OptionValues) { v.PreferredPixelFormat = PixelFormat16bit })
	cc.intentsMu.Lock()
	queued := len(cc.intents)
	cc.intentsMu.Unlock()
	if queued != 0 {
		t.Fatalf("closed connection still observes options")
	}
}
