// Package core provides the calculation service behind the HTTP API and
// the command line tool.
//
// The package holds the domain logic independent of any transport. Web
// handlers, the CLI and tests all drive the same [Service].
//
// # Architecture
//
//   - Stores: [ModelStore] keeps serialized workbooks by name and version,
//     [HistoryStore] keeps one record per successful calculation.
//   - Cache: [ModelCache] holds deserialized models keyed by file version,
//     loading each one at most once however many requests miss at the
//     same time.
//   - Requests: [ParseInputOutput] and [ParseTemplate] turn the caller's
//     JSON into fully-qualified cell identifiers before anything runs.
//   - Calculation: [Calculate] evaluates a model once for a request and
//     reduces every output to a single value or nil.
//
// # Calculation Flow
//
//  1. [Service.ResolveFileVersion] picks the stored version (0 = newest).
//  2. Inputs, outputs, the output template and document target are
//     validated; any failure rejects the whole request.
//  3. The model is fetched from the cache and evaluated.
//  4. The calculation is recorded in the history store.
//  5. Spreadsheet and document outputs are written, then the response is
//     built from the template or the default shape.
//
// # Error Handling
//
// Every operation returns an [*Error] carrying a [Kind] and a support code.
// [MapError] turns any error into a [UserMessage]; codes are listed in
// error_messages.go.
package core
