package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func noopHandler(req *message.Request) *message.Response { return message.NewResponse(200) }

func register(t *testing.T, r *Router, method, template string) {
	t.Helper()
	err := r.Register(method, template, noopHandler)
	assert.NoError(t, err)
}

func TestLiteralBeatsTypedSegment(t *testing.T) {
	r := New()
	register(t, r, "GET", "/users/me")
	register(t, r, "GET", "/users/{id:int}")

	res := r.Match("GET", "/users/me")
	assert.False(t, res.NotFound)
	assert.Empty(t, res.Params)

	res2 := r.Match("GET", "/users/42")
	assert.False(t, res2.NotFound)
	assert.Equal(t, "42", res2.Params["id"])
}

func TestBacktrackingFromFailedIntBranchDoesNotLeakParam(t *testing.T) {
	r := New()
	register(t, r, "GET", "/{id:int}/foo")
	register(t, r, "GET", "/{name:str}/bar")

	res := r.Match("GET", "/42/bar")
	assert.False(t, res.NotFound)
	assert.Equal(t, map[string]string{"name": "42"}, res.Params)
}

func TestIntBeatsStrSegment(t *testing.T) {
	r := New()
	register(t, r, "GET", "/items/{id:int}")
	register(t, r, "GET", "/items/{name:str}")

	res := r.Match("GET", "/items/7")
	assert.Equal(t, "7", res.Params["id"])

	res2 := r.Match("GET", "/items/abc")
	assert.Equal(t, "abc", res2.Params["name"])
}

func TestPathTypeCapturesRemainder(t *testing.T) {
	r := New()
	register(t, r, "GET", "/static/{rest:path}")

	res := r.Match("GET", "/static/css/app.css")
	assert.False(t, res.NotFound)
	assert.Equal(t, "css/app.css", res.Params["rest"])
}

func TestMatchReportsMatchedTemplate(t *testing.T) {
	r := New()
	register(t, r, "GET", "/widgets/{id:int}")

	res := r.Match("GET", "/widgets/7")
	assert.False(t, res.NotFound)
	assert.Equal(t, "/widgets/{id:int}", res.Template)
}

func TestMethodNotAllowedListsAllow(t *testing.T) {
	r := New()
	register(t, r, "GET", "/widgets")
	register(t, r, "POST", "/widgets")

	res := r.Match("DELETE", "/widgets")
	assert.True(t, res.MethodNotAllowed)
	assert.ElementsMatch(t, []string{"GET", "POST"}, res.Allow)
}

func TestNotFound(t *testing.T) {
	r := New()
	register(t, r, "GET", "/widgets")

	res := r.Match("GET", "/nope")
	assert.True(t, res.NotFound)
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	r := New()
	register(t, r, "GET", "/widgets")

	err := r.Register("GET", "/widgets", noopHandler)
	assert.Error(t, err)
	var conflict *RouteConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestPercentDecodeAfterSplit(t *testing.T) {
	r := New()
	register(t, r, "GET", "/files/{name:str}")

	res := r.Match("GET", "/files/a%2Fb")
	assert.False(t, res.NotFound)
	assert.Equal(t, "a/b", res.Params["name"])
}

func TestPathTypeMustBeTerminal(t *testing.T) {
	r := New()
	err := r.Register("GET", "/{rest:path}/tail", noopHandler)
	assert.Error(t, err)
}
