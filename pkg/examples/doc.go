// Package examples provides reference collaborators for the
// subscription manager.
//
// SimProvider is a simulated resource provider: each acquisition
// becomes ready after a configurable latency. It backs the subs-repl
// tool and the integration tests, and can serve as a template for real
// Provider implementations.
package examples
