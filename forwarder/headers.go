package forwarder

import "strings"

// HeaderField is one name/value pair as received, preserving the exact
// casing and position the inbound runtime handed to us.
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered, possibly-multi-value header collection. Lookups
// are case-insensitive; iteration preserves insertion order, matching the
// "ordered, multi-value, case-insensitive" capability required of
// InboundContext in spec §6.
type Headers []HeaderField

// Values returns every value recorded under name, in insertion order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Get returns the first value recorded under name, if any.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// HeaderSink is the write side of a header bag: a request's general
// headers, a request body's content headers, or a response's headers.
// Add reports whether the name was accepted by this particular bag; the
// HeaderPipeline uses that to route content-specific headers to the body
// producer's bag instead of the general one.
type HeaderSink interface {
	Add(name, value string) bool
}

// MapHeaderSink is a HeaderSink backed by a plain ordered Headers value;
// it never rejects a name and is used for response headers and for the
// body-content header bag, neither of which need rejection routing.
type MapHeaderSink struct {
	Fields *Headers
}

func (s MapHeaderSink) Add(name, value string) bool {
	*s.Fields = append(*s.Fields, HeaderField{Name: name, Value: value})
	return true
}

// GeneralRequestHeaderSink rejects the small set of content-specific
// header names (the ones that belong on an HTTP message body rather than
// the envelope), exactly as .NET's HttpRequestMessage.Headers does when a
// caller tries to add Content-Length or Content-Type there directly. The
// HeaderPipeline falls back to the body producer's bag on rejection.
type GeneralRequestHeaderSink struct {
	Fields *Headers
}

var contentSpecificHeaders = map[string]struct{}{
	"content-length":      {},
	"content-type":        {},
	"content-encoding":    {},
	"content-language":    {},
	"content-location":    {},
	"content-md5":         {},
	"content-range":       {},
	"content-disposition": {},
	"expires":             {},
	"last-modified":       {},
}

func isContentSpecificHeader(name string) bool {
	_, ok := contentSpecificHeaders[strings.ToLower(name)]
	return ok
}

func (s GeneralRequestHeaderSink) Add(name, value string) bool {
	if isContentSpecificHeader(name) {
		return false
	}
	*s.Fields = append(*s.Fields, HeaderField{Name: name, Value: value})
	return true
}

// HeaderPipeline copies headers between inbound and outbound messages,
// applying the skip lists and folding rules of spec §4.3.
type HeaderPipeline struct{}

// CopyRequestHeaders iterates inbound in insertion order, skipping empty
// values and HTTP/2 pseudo-headers, folding multi-value Cookie into one
// "; "-joined value, and routing each remaining header to general or
// content body headers. Exactly one of general/content accepts each name.
func (HeaderPipeline) CopyRequestHeaders(inbound Headers, general, content HeaderSink) {
	cookies := inbound.Values("Cookie")
	wroteCookie := false

	for _, f := range inbound {
		if f.Value == "" {
			continue
		}
		if strings.HasPrefix(f.Name, ":") {
			continue
		}
		if strings.EqualFold(f.Name, "Cookie") {
			if wroteCookie {
				continue
			}
			wroteCookie = true
			folded := strings.Join(cookies, "; ")
			if !general.Add(f.Name, folded) {
				content.Add(f.Name, folded)
			}
			continue
		}
		if !general.Add(f.Name, f.Value) {
			content.Add(f.Name, f.Value)
		}
	}
}

// CopyResponseHeaders copies every header from source to destination
// verbatim, preserving multi-value structure, except Transfer-Encoding
// which the outbound transport manages itself.
func (HeaderPipeline) CopyResponseHeaders(source Headers, destination HeaderSink) {
	for _, f := range source {
		if strings.EqualFold(f.Name, "Transfer-Encoding") {
			continue
		}
		destination.Add(f.Name, f.Value)
	}
}
