package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mnemo/pkg/memory"
)

func TestParseRequest(t *testing.T) {
	router := NewRPCRouter()

	t.Run("valid", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"id":"1","method":"memory.status","jsonrpc":"2.0"}`))
		require.NoError(t, err)
		assert.Equal(t, "1", req.ID)
		assert.Equal(t, "memory.status", req.Method)
	})

	t.Run("defaults jsonrpc version", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"id":"1","method":"memory.status"}`))
		require.NoError(t, err)
		assert.Equal(t, "2.0", req.JSONRPC)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{not json`))
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, ParseError, rpcErr.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{"method":"memory.status"}`))
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, InvalidRequest, rpcErr.Code)
	})

	t.Run("missing method", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{"id":"1"}`))
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, InvalidRequest, rpcErr.Code)
	})
}

func TestRouteRequest_MethodNotFound(t *testing.T) {
	router := NewRPCRouter()

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "nope", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouteRequest_Success(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return params["value"], nil
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{
		ID:      "1",
		Method:  "echo",
		Params:  map[string]interface{}{"value": "hello"},
		JSONRPC: "2.0",
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "hello", resp.Result)
	assert.Equal(t, "1", resp.ID)
}

func TestRouteRequest_ErrorMapping(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("missing", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, memory.ErrNotFound
	}))
	require.NoError(t, router.RegisterMethod("broken", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "missing", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, NotFound, resp.Error.Code)

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "broken", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
}

func TestRouteRequest_SchemaValidation(t *testing.T) {
	router := NewRPCRouter()
	called := false
	require.NoError(t, router.RegisterMethod("memory.search", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		called = true
		return nil, nil
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{
		ID:      "1",
		Method:  "memory.search",
		Params:  map[string]interface{}{"limit": 5},
		JSONRPC: "2.0",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.False(t, called)
}

func TestRouteRequest_Idempotency(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("counted", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	req := &RPCRequest{ID: "1", Method: "counted", JSONRPC: "2.0", IdempotencyKey: "key-1"}
	first := router.RouteRequest(context.Background(), req)
	second := router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "counted", JSONRPC: "2.0", IdempotencyKey: "key-1"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "2", second.ID)
}

func TestHasMethodAndGetMethods(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("a", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, nil
	}))

	assert.True(t, router.HasMethod("a"))
	assert.False(t, router.HasMethod("b"))
	assert.Contains(t, router.GetMethods(), "a")

	assert.Error(t, router.RegisterMethod("nil", nil))
}
