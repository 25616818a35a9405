package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/thruflo/camloop/internal/imagefetch"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fetch records one call to ScriptedResolver.Fetch.
type Fetch struct {
	Address    string
	Credential string
	Timeout    time.Duration
}

// ScriptedResolver is an imagefetch.Resolver returning canned results per
// address. Unknown addresses get the default image.
type ScriptedResolver struct {
	mu      sync.Mutex
	images  map[string]imagefetch.Image
	errs    map[string]error
	fetches []Fetch
	Default imagefetch.Image
}

// NewScriptedResolver returns a resolver serving SampleJPEG for every
// address.
func NewScriptedResolver() *ScriptedResolver {
	return &ScriptedResolver{
		images:  make(map[string]imagefetch.Image),
		errs:    make(map[string]error),
		Default: imagefetch.Image{Data: SampleJPEG, ContentType: "image/jpeg"},
	}
}

// Serve makes address return img.
func (r *ScriptedResolver) Serve(address string, img imagefetch.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[address] = img
	delete(r.errs, address)
}

// Fail makes address return err.
func (r *ScriptedResolver) Fail(address string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[address] = err
}

// Fetch implements imagefetch.Resolver.
func (r *ScriptedResolver) Fetch(_ context.Context, address, credential string, timeout time.Duration) (imagefetch.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, Fetch{Address: address, Credential: credential, Timeout: timeout})
	if err, ok := r.errs[address]; ok {
		return imagefetch.Image{}, err
	}
	if img, ok := r.images[address]; ok {
		return img, nil
	}
	return r.Default, nil
}

// Fetches returns a copy of the recorded calls.
func (r *ScriptedResolver) Fetches() []Fetch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fetch, len(r.fetches))
	copy(out, r.fetches)
	return out
}
