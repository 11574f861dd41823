// Package render turns a URL into the visible text and anchors of the page.
//
// # Renderers
//
//   - Browser: headless Chrome driven through chromedp. Needed for sites that
//     build their policy pages with JavaScript.
//   - Static: a plain HTTP GET parsed with golang.org/x/net/html. Cheap,
//     and sufficient for server-rendered sites and tests.
//
// Both implement Renderer, so the locator and crawler do not care which one
// they run against.
//
// # Wait policies
//
// A render takes a WaitPolicy. WaitFast returns as soon as the document body
// exists; WaitSettled additionally waits until the network is almost idle,
// which catches content injected after load. Callers use WaitFast first and
// fall back to WaitSettled when the fast result looks too short.
//
// # Sessions
//
// Every Render call is one rendering session. The Browser renderer opens an
// isolated browser context per call (no cookies or storage shared between
// sites) and always closes it before returning, including on error and
// timeout.
package render
