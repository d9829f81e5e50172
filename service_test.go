package gatekit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/policy"
	"github.com/gatekit/gatekit/service/approval"
	"github.com/gatekit/gatekit/service/audit"
	"github.com/gatekit/gatekit/service/event"
	"github.com/gatekit/gatekit/service/gate"
	"github.com/gatekit/gatekit/service/secgate"
	"github.com/gatekit/gatekit/service/tool"
)

type greetInput struct {
	Name string `json:"name"`
}

type greetOutput struct {
	Greeting string `json:"greeting"`
}

type greetService struct{}

func (greetService) Name() string { return "greeter" }

func (greetService) Methods() tool.Signatures {
	return tool.Signatures{
		{Name: "hello", Input: reflect.TypeOf(&greetInput{}), Output: reflect.TypeOf(&greetOutput{})},
	}
}

func (greetService) Method(name string) (tool.Executable, error) {
	if name != "hello" {
		return nil, tool.NewMethodNotFoundError(name)
	}
	return func(_ context.Context, in, out interface{}) error {
		out.(*greetOutput).Greeting = "hello " + in.(*greetInput).Name
		return nil
	}, nil
}

// moderation starts a classifier stub rating every text with the label.
func moderation(label policy.Label, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		var request struct {
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&request)
		scores := make([]map[string]any, 0, len(request.Texts))
		for _, text := range request.Texts {
			scores = append(scores, map[string]any{"text": text, "mainLabel": string(label), "mainConfidence": 0.88})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":      200,
			"requestId": "req-1",
			"data":      map[string]any{"success": true, "requestId": "req-1", "data": scores},
		})
	}))
}

func newService(t *testing.T, config *Config, options ...Option) *Service {
	t.Helper()
	options = append(options, WithConfig(config), WithExtensionServices(greetService{}))
	srv := New(options...)
	t.Cleanup(srv.Shutdown)
	return srv
}

// approve resolves the next pending approval through the shared surface.
func approve(t *testing.T, srv *Service, decision approval.Decision) {
	t.Helper()
	ctx := context.Background()
	require.Eventually(t, func() bool {
		pending, err := srv.ListPending(ctx)
		if err != nil || len(pending) == 0 {
			return false
		}
		return srv.Resolve(ctx, pending[0].ID, string(decision)) == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_ExecuteTool(t *testing.T) {
	t.Run("without audit config tools just run", func(t *testing.T) {
		srv := newService(t, nil)
		result, err := srv.ExecuteTool(context.Background(), &gate.Call{
			ID: "c1", Tool: "greeter", Method: "hello", Args: map[string]any{"name": "ann"},
		})
		require.NoError(t, err)
		assert.Equal(t, gate.StatusOK, result.Status)
		assert.Equal(t, "hello ann", result.Output.(*greetOutput).Greeting)
	})

	t.Run("confirm rated call resolved through the facade", func(t *testing.T) {
		server := moderation(policy.LabelPolitics, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		srv := newService(t, config)

		go approve(t, srv, approval.DecisionAllow)
		result, err := srv.ExecuteTool(context.Background(), &gate.Call{
			ID: "c2", Tool: "greeter", Method: "hello", Args: map[string]any{"name": "bo"},
		})
		require.NoError(t, err)
		assert.Equal(t, gate.StatusOK, result.Status)
	})

	t.Run("block rated call never reaches the tool", func(t *testing.T) {
		server := moderation(policy.LabelIllegal, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		srv := newService(t, config)

		result, err := srv.ExecuteTool(context.Background(), &gate.Call{ID: "c3", Tool: "greeter", Method: "hello"})
		require.NoError(t, err)
		assert.Equal(t, gate.StatusBlocked, result.Status)
	})
}

func TestService_ExecuteToolPublishesEvents(t *testing.T) {
	events, err := event.New("memory")
	require.NoError(t, err)

	received := make(chan *event.Event[*gate.Result], 1)
	require.NoError(t, event.SetListenerOf(events, func(e *event.Event[*gate.Result]) {
		select {
		case received <- e:
		default:
		}
	}))

	srv := newService(t, nil, WithEventService(events))
	_, err = srv.ExecuteTool(context.Background(), &gate.Call{
		ID: "c4", Tool: "greeter", Method: "hello", SessionKey: "session-7", Args: map[string]any{"name": "cy"},
	})
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, "tool.executed", e.Context.EventType)
		assert.Equal(t, "session-7", e.Context.SessionKey)
		assert.Equal(t, gate.StatusOK, e.Data.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("tool execution event not received")
	}
}

func TestService_AuditResponse(t *testing.T) {
	t.Run("audit off allows", func(t *testing.T) {
		srv := newService(t, nil)
		verdict, err := srv.AuditResponse(context.Background(), "hi", "hello there", "")
		require.NoError(t, err)
		assert.True(t, verdict.Allowed)
	})

	t.Run("block refuses outright", func(t *testing.T) {
		server := moderation(policy.LabelViolence, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		srv := newService(t, config)

		verdict, err := srv.AuditResponse(context.Background(), "hi", "harmful text", "")
		require.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Contains(t, verdict.Message, "内容安全审核未通过")
		assert.Empty(t, verdict.ApprovalID)
	})

	t.Run("confirm waits for a reviewer", func(t *testing.T) {
		server := moderation(policy.LabelPolitics, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		srv := newService(t, config)

		go approve(t, srv, approval.DecisionAllow)
		verdict, err := srv.AuditResponse(context.Background(), "what about X", "response text", "session-1")
		require.NoError(t, err)
		assert.True(t, verdict.Allowed)
		assert.NotEmpty(t, verdict.ApprovalID)
	})

	t.Run("reviewer block refuses", func(t *testing.T) {
		server := moderation(policy.LabelDiscrimination, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		srv := newService(t, config)

		go approve(t, srv, approval.DecisionBlock)
		verdict, err := srv.AuditResponse(context.Background(), "", "response text", "")
		require.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Contains(t, verdict.Message, "拦截")
	})

	t.Run("reviewer timeout refuses", func(t *testing.T) {
		server := moderation(policy.LabelUnethical, nil)
		defer server.Close()

		config := DefaultConfig()
		config.Audit = audit.Config{Enabled: true, BaseURL: server.URL, Token: "secret"}
		config.Approval.TimeoutMs = 30
		srv := newService(t, config)

		verdict, err := srv.AuditResponse(context.Background(), "", "response text", "")
		require.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Contains(t, verdict.Message, "超时")
	})
}

func TestService_Resolve(t *testing.T) {
	srv := newService(t, nil)
	ctx := context.Background()

	assert.Error(t, srv.Resolve(ctx, "", "allow"))
	assert.Error(t, srv.Resolve(ctx, "some-id", "maybe"))
	assert.ErrorIs(t, srv.Resolve(ctx, "unknown-id", "allow"), ErrApprovalNotFound)
}

func TestService_UpdateConfig(t *testing.T) {
	srv := newService(t, nil)
	assert.False(t, srv.Gateway().IsEnabled())

	config := DefaultConfig()
	config.Gateway = secgate.Config{BaseURL: "http://sec.local", TimeoutMs: 1000}
	require.NoError(t, srv.UpdateConfig(config))
	assert.True(t, srv.Gateway().IsEnabled())

	invalid := DefaultConfig()
	invalid.Approval.TimeoutMs = -1
	assert.Error(t, srv.UpdateConfig(invalid))
}
