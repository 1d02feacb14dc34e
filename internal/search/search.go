// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search retrieves web evidence for a question. It issues queries
// against a primary provider, falls back to a secondary provider when the
// primary is unavailable, and turns the raw results into Documents with
// usable page content.
package search

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// Provider searches a single web search backend. Each backend (Tavily,
// DuckDuckGo) implements this interface per the Strategy pattern.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) Outcome
}

// OutcomeKind classifies a provider call.
type OutcomeKind int

const (
	// OutcomeOK carries results or a free-text payload.
	OutcomeOK OutcomeKind = iota
	// OutcomeUnavailable means the provider cannot serve requests at all
	// (not configured, rejected credentials).
	OutcomeUnavailable
	// OutcomeTransient is any other failure of a single call.
	OutcomeTransient
	// OutcomeCertificate is a TLS/certificate failure. The provider is not
	// retried for the rest of the call.
	OutcomeCertificate
)

// String returns the label used in logs, trace events and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeTransient:
		return "transient_error"
	case OutcomeCertificate:
		return "certificate_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the typed result of one provider call.
type Outcome struct {
	Kind OutcomeKind

	// Results holds structured results when the provider returns them.
	Results []RawResult

	// Payload holds a single free-text response when the provider does not
	// return structured results.
	Payload string

	// Err is set for every kind except OutcomeOK.
	Err error
}

// OK returns a successful outcome with structured results.
func OK(results []RawResult) Outcome {
	return Outcome{Kind: OutcomeOK, Results: results}
}

// Text returns a successful outcome carrying a free-text payload.
func Text(payload string) Outcome {
	return Outcome{Kind: OutcomeOK, Payload: payload}
}

// Unavailable returns an outcome for a provider that cannot be used.
func Unavailable(err error) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Err: err}
}

// Failed classifies err into a certificate or transient outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: Classify(err), Err: err}
}

// Empty reports whether the outcome produced nothing usable.
func (o Outcome) Empty() bool {
	return len(o.Results) == 0 && strings.TrimSpace(o.Payload) == ""
}

// Classify maps a transport error to an outcome kind. Typed TLS and x509
// errors are certificate failures. For compatibility with providers that
// only surface a message, any error whose text mentions "ssl" or
// "certificate" (any case) is also treated as one; that check is locale
// and wording dependent.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeOK
	}
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &unknownAuthority),
		errors.As(err, &invalidCert),
		errors.As(err, &hostname),
		errors.As(err, &verification),
		errors.As(err, &recordHeader):
		return OutcomeCertificate
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "ssl") || strings.Contains(msg, "certificate") {
		return OutcomeCertificate
	}
	return OutcomeTransient
}

// RawResult is one provider result before it becomes a Document. Providers
// disagree on field names, so both url/link and snippet/body are kept.
type RawResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"`
	Content string `json:"content"`
}

// Location returns the result URL, preferring url over link.
func (r RawResult) Location() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Link
}

// Summary returns the provider snippet, preferring snippet over body.
func (r RawResult) Summary() string {
	if r.Snippet != "" {
		return r.Snippet
	}
	return r.Body
}

// GenerateQueries returns existing unchanged when it is non-empty (retry
// passes reuse the first pass's queries). Otherwise it returns the question
// itself followed by its "overview" and "examples" variants.
func GenerateQueries(question string, existing []string) []string {
	if len(existing) > 0 {
		return existing
	}
	return []string{
		question,
		question + " overview",
		question + " examples",
	}
}
