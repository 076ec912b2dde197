// Package llm contains adapters for invoking chat completion backends. It
// abstracts away provider-specific APIs and normalizes request/response
// lifecycles for classification and strategy reasoning.
package llm
