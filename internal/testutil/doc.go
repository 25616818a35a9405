// Package testutil provides shared test helpers for camloop.
//
// # Fixtures
//
//   - SampleTargets(), SampleConfig() - a validated three-camera config
//   - SampleJPEG - a tiny JPEG body for fake camera endpoints
//
// # Fakes
//
//   - Clock - a settable time source for the loop controller
//   - ScriptedResolver - an image resolver returning canned results and
//     recording every fetch
//
// # Helpers
//
//   - ContextWithTestDeadline(t, fallback), ShortOperationContext(t)
//   - MustMarshalJSON(t, v), MustUnmarshalJSON(t, data, v)
//   - WriteTestFile(t, base, path, content)
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    cfg := testutil.SampleConfig()
//	    resolver := testutil.NewScriptedResolver()
//	    clock := testutil.NewClock(testutil.Epoch)
//	    // ... build a controller from cfg, resolver and clock.Now ...
//	}
package testutil
