// Package server exposes policy analysis over HTTP.
//
// Routes:
//
//	POST /analyze   {"url": "https://example.com"}
//	GET  /healthz
//
// A successful analysis answers 200 with {"summary", "source"}, where source
// is "cached" or "new". A URL that does not start with "http" is a 400, a
// site without a findable policy a 404, a policy without readable text a
// 422 and any other failure a 500. Every error body is {"error": "..."}.
//
// Concurrent requests for the same site share one analysis.
package server
