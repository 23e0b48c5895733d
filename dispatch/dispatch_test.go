package dispatch

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func terminal(status int) Handler {
	return func(req *message.Request) *message.Response { return message.NewResponse(status) }
}

func TestChainRunsOutsideIn(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(req *message.Request) *message.Response {
				order = append(order, name)
				return next(req)
			}
		}
	}

	h := Chain(terminal(200), mw("outer"), mw("inner"))
	h(message.NewRequest(message.ProtocolHTTP1))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestChainShortCircuitsWithoutCallingNext(t *testing.T) {
	called := false
	blocker := func(next Handler) Handler {
		return func(req *message.Request) *message.Response {
			return message.NewResponse(403)
		}
	}
	inner := func(next Handler) Handler {
		return func(req *message.Request) *message.Response {
			called = true
			return next(req)
		}
	}

	h := Chain(terminal(200), blocker, inner)
	resp := h(message.NewRequest(message.ProtocolHTTP1))

	assert.False(t, called)
	assert.Equal(t, 403, resp.Status)
}

type customError struct{ msg string }

func (e *customError) Error() string { return e.msg }

func TestExceptionRegistryResolvesByType(t *testing.T) {
	registry := NewExceptionRegistry()
	registry.Register("", &customError{}, func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(422)
	})
	registry.Fallback("", func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(500)
	})

	h := Guard(registry, func(req *message.Request) *message.Response {
		panic(&customError{msg: "bad input"})
	})

	resp := h(message.NewRequest(message.ProtocolHTTP1))
	assert.Equal(t, 422, resp.Status)
}

func TestExceptionRegistryFallsBackToGeneral(t *testing.T) {
	registry := NewExceptionRegistry()
	registry.Fallback("", func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(500)
	})

	h := Guard(registry, func(req *message.Request) *message.Response {
		panic(errors.New("boom"))
	})

	resp := h(message.NewRequest(message.ProtocolHTTP1))
	assert.Equal(t, 500, resp.Status)
}

func TestExceptionRegistryRouteSpecificHandlerBeatsGlobalForSameType(t *testing.T) {
	registry := NewExceptionRegistry()
	registry.Register("/widgets", &customError{}, func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(409)
	})
	registry.Register("", &customError{}, func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(422)
	})

	h := Guard(registry, func(req *message.Request) *message.Response {
		panic(&customError{msg: "conflict"})
	})

	widgets := message.NewRequest(message.ProtocolHTTP1)
	widgets.RouteTemplate = "/widgets"
	assert.Equal(t, 409, h(widgets).Status)

	other := message.NewRequest(message.ProtocolHTTP1)
	other.RouteTemplate = "/other"
	assert.Equal(t, 422, h(other).Status)
}

func TestExceptionRegistryRouteFallbackBeatsGlobalType(t *testing.T) {
	registry := NewExceptionRegistry()
	registry.Fallback("/widgets", func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(409)
	})
	registry.Register("", &customError{}, func(req *message.Request, reason interface{}) *message.Response {
		return message.NewResponse(422)
	})

	h := Guard(registry, func(req *message.Request) *message.Response {
		panic(&customError{msg: "conflict"})
	})

	req := message.NewRequest(message.ProtocolHTTP1)
	req.RouteTemplate = "/widgets"
	assert.Equal(t, 409, h(req).Status)
}

func TestBasicAuthAcceptsValidCredentials(t *testing.T) {
	h := BasicAuth("realm", map[string]string{"alice": "secret"})(terminal(200))

	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:secret")))

	resp := h(req)
	assert.Equal(t, 200, resp.Status)
}

func TestBasicAuthRejectsBadCredentials(t *testing.T) {
	h := BasicAuth("realm", map[string]string{"alice": "secret"})(terminal(200))

	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:wrong")))

	resp := h(req)
	assert.Equal(t, 401, resp.Status)
}

func TestHeaderAuthAcceptsConfiguredToken(t *testing.T) {
	h := HeaderAuth("X-Api-Key", "abc123")(terminal(200))

	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("X-Api-Key", "abc123")

	resp := h(req)
	assert.Equal(t, 200, resp.Status)
}

func TestStaticHeadersAppliedToResponse(t *testing.T) {
	h := StaticHeaders(map[string]string{"X-Frame-Options": "DENY"})(terminal(200))

	resp := h(message.NewRequest(message.ProtocolHTTP1))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
