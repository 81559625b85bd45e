// Package failure holds the error kinds produced while guarding a request and
// resolving a favicon. Packages return *Error values; only the outermost HTTP
// layer turns a Kind into a status code.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota

	// guard
	KindUsage
	KindSelfReference
	KindBannedReferrer
	KindThrottled

	// fetch
	KindInvalidProtocol
	KindSSRFBlocked
	KindBadRedirect
	KindTooManyRedirects
	KindBadContentType
	KindUpstreamStatus
	KindNetwork
	KindHTMLReadTooLarge

	// scrape
	KindNoFavicon
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindUsage:            "usage",
	KindSelfReference:    "self_reference",
	KindBannedReferrer:   "banned_referrer",
	KindThrottled:        "throttled",
	KindInvalidProtocol:  "invalid_protocol",
	KindSSRFBlocked:      "ssrf_blocked",
	KindBadRedirect:      "bad_redirect",
	KindTooManyRedirects: "too_many_redirects",
	KindBadContentType:   "bad_content_type",
	KindUpstreamStatus:   "upstream_status",
	KindNetwork:          "network",
	KindHTMLReadTooLarge: "html_too_large",
	KindNoFavicon:        "no_favicon",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single result type threaded from the guard and the fetch
// pipeline up to the responder. Message is the literal reason string sent to
// the client.
type Error struct {
	Kind Kind
	// Status is the upstream HTTP status for KindUpstreamStatus, zero otherwise.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Fixed reason strings.
const (
	MsgUsage            = "Usage: GET /domain.com"
	MsgSelfReference    = "No, I cannot get my own favicon"
	MsgBannedReferrer   = "Referrer is banned"
	MsgThrottled        = "Too many requests"
	MsgInvalidProtocol  = "Invalid protocol"
	MsgSSRFBlocked      = "Blocked host"
	MsgBadRedirect      = "Bad redirect"
	MsgTooManyRedirects = "Too many redirects"
	MsgHTMLTooLarge     = "HTML is too large"
	MsgNoFavicon        = "No favicon"
)

func Usage() *Error          { return New(KindUsage, MsgUsage) }
func SelfReference() *Error  { return New(KindSelfReference, MsgSelfReference) }
func BannedReferrer() *Error { return New(KindBannedReferrer, MsgBannedReferrer) }
func Throttled() *Error      { return New(KindThrottled, MsgThrottled) }
func NoFavicon() *Error      { return New(KindNoFavicon, MsgNoFavicon) }

func UpstreamStatus(status int) *Error {
	return &Error{Kind: KindUpstreamStatus, Status: status, Message: fmt.Sprintf("Status %d", status)}
}

func BadContentType(contentType string) *Error {
	return New(KindBadContentType, fmt.Sprintf("Bad content type: %s", contentType))
}

// Network keeps the transport error message as the client-visible reason.
func Network(err error) *Error {
	return Wrap(KindNetwork, err.Error(), err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
