// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunAuthenticate, RunRefresh, etc.) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies, so flows can be tested with fakes and the Engine type stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, session registry,
// token codec, rate limiters, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine, which also maps store failures onto
// its own error taxonomy before they reach a flow.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
