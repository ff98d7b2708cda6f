package vnc

import "sync"

// OptionValues are the user adjustable settings of a session.
type OptionValues struct {
	PreferredPixelFormat PixelFormat
	AcceptClipboard      bool
}

// DefaultOptionValues asks for full colour and accepts the clipboard.
func DefaultOptionValues() OptionValues {
	return OptionValues{
		PreferredPixelFormat: PixelFormat32bit,
		AcceptClipboard:      true,
	}
}

// Options holds live settings and notifies its observers on change.
// One Options may be shared by several connections.
type Options struct {
	mu        sync.Mutex
	values    OptionValues
	nextID    int
	observers map[int]func(OptionValues)
}

func NewOptions(v OptionValues) *Options {
	return &Options{values: v, observers: make(map[int]func(OptionValues))}
}

// Values returns a copy of the current settings.
func (o *Options) Values() OptionValues {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.values
}

// Subscribe registers fn to be called after every Update. The returned
// function removes the registration.
func (o *Options) Subscribe(fn func(OptionValues)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.observers[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.observers, id)
	}
}

// Update applies fn to the settings and notifies observers with the result.
func (o *Options) Update(fn func(*OptionValues)) {
	o.mu.Lock()
	fn(&o.values)
	v := o.values
	observers := make([]func(OptionValues), 0, len(o.observers))
	for _, obs := range o.observers {
		observers = append(observers, obs)
	}
	o.mu.Unlock()

	for _, obs := range observers {
		obs(v)
	}
}
