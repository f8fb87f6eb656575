// Package e2e runs requests through a config-built behavior stack over every
// transport and checks that they all observe the same pipeline.
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/client"
	"github.com/felixgeelhaar/mediate/config"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/testutil"
	"github.com/felixgeelhaar/mediate/transport"
	"github.com/felixgeelhaar/mediate/validation"
)

type CreateEmployee struct {
	Name string `json:"name" validate:"required,max=20"`
}

func (CreateEmployee) Category() mediator.Category { return mediator.CategoryCommand }

type DeleteEmployee struct {
	ID string `json:"id" validate:"required"`
}

func (DeleteEmployee) Category() mediator.Category { return mediator.CategoryCommand }

type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type stack struct {
	mediator *mediator.Mediator
	logger   *testutil.Logger
	metrics  *behavior.Metrics
}

func newStack(t *testing.T) *stack {
	t.Helper()

	cfg := &config.Config{
		Pipeline: config.PipelineConfig{Timeout: 2 * time.Second},
		Auth: config.AuthConfig{
			Enabled:       true,
			Public:        []string{"CreateEmployee"},
			AdminRequests: []string{"DeleteEmployee"},
			AdminRole:     "admin",
			Tokens: []config.TokenConfig{
				{Token: "root", ID: "alice", Roles: []string{"admin"}},
				{Token: "dev", ID: "bob"},
			},
		},
		Telemetry: config.TelemetryConfig{ServiceName: "e2e", Metrics: true},
	}

	registry := validation.NewRegistry()
	validation.Register[CreateEmployee](registry, validation.MustStruct[CreateEmployee]())
	validation.Register[DeleteEmployee](registry, validation.MustStruct[DeleteEmployee]())

	s := &stack{
		logger:  &testutil.Logger{},
		metrics: behavior.NewMetrics(prometheus.NewRegistry()),
	}
	s.mediator = mediator.New(mediator.WithBehaviors(config.BuildStack(cfg, config.StackDeps{
		Logger:   s.logger,
		Registry: registry,
		Metrics:  s.metrics,
	})...))

	mediator.MustRegister(s.mediator, func(ctx context.Context, req CreateEmployee) (Employee, error) {
		return Employee{ID: "e-" + req.Name, Name: req.Name}, nil
	})
	mediator.MustRegister(s.mediator, func(ctx context.Context, req DeleteEmployee) (Employee, error) {
		return Employee{ID: req.ID}, nil
	})
	return s
}

// caller sends one request over some transport.
type caller func(t *testing.T, name string, payload any, token string) (Employee, *transport.ErrorBody)

func clientCaller(tr client.Transport) caller {
	return func(t *testing.T, name string, payload any, token string) (Employee, *transport.ErrorBody) {
		t.Helper()
		var opts []client.Option
		if token != "" {
			opts = append(opts, client.WithToken(token))
		}

		var emp Employee
		err := client.New(tr, opts...).Call(context.Background(), name, payload, &emp)
		var remote *client.Error
		if errors.As(err, &remote) {
			return Employee{}, &remote.Body
		}
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return emp, nil
	}
}

func websocketCaller(conn *websocket.Conn) caller {
	id := 0
	return func(t *testing.T, name string, payload any, token string) (Employee, *transport.ErrorBody) {
		t.Helper()
		id++

		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		frame := transport.Frame{ID: strconv.Itoa(id), Name: name, Payload: data}
		if token != "" {
			frame.Metadata = map[string]string{"Authorization": "Bearer " + token}
		}
		if err := conn.WriteJSON(frame); err != nil {
			t.Fatalf("write frame: %v", err)
		}

		var reply struct {
			ID     string               `json:"id"`
			Result json.RawMessage      `json:"result"`
			Error  *transport.ErrorBody `json:"error"`
		}
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if reply.ID != frame.ID {
			t.Fatalf("reply ID = %q, want %q", reply.ID, frame.ID)
		}
		if reply.Error != nil {
			return Employee{}, reply.Error
		}

		var emp Employee
		if err := json.Unmarshal(reply.Result, &emp); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		return emp, nil
	}
}

func TestTransportsShareThePipeline(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())

	srv := transport.NewHTTP("127.0.0.1:0", s.mediator,
		transport.WithWebSocket("/ws"),
		transport.WithShutdownTimeout(time.Second),
	)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ListenAddr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	addr := srv.ListenAddr()
	if addr == "" {
		cancel()
		t.Fatal("server did not start")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		cancel()
		t.Fatalf("dial websocket: %v", err)
	}

	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	stdio := transport.NewStdio(s.mediator, transport.WithStdin(serverR), transport.WithStdout(serverW))
	stdioDone := make(chan error, 1)
	go func() {
		err := stdio.Serve(context.Background())
		serverW.Close()
		stdioDone <- err
	}()
	stream := client.NewStreamTransport(clientR, clientW)

	httpTransport := client.NewHTTPTransport("http://" + addr)

	callers := map[string]caller{
		"http":      clientCaller(httpTransport),
		"websocket": websocketCaller(conn),
		"stdio":     clientCaller(stream),
	}

	for name, call := range callers {
		t.Run(name, func(t *testing.T) {
			emp, errBody := call(t, "CreateEmployee", CreateEmployee{Name: "Ada"}, "")
			if errBody != nil || emp.ID != "e-Ada" {
				t.Errorf("create = %+v, %+v", emp, errBody)
			}

			_, errBody = call(t, "CreateEmployee", CreateEmployee{Name: "Adalovelace-Byron-King"}, "")
			if errBody == nil || errBody.Code != behavior.OutcomeValidationFailed {
				t.Fatalf("expected validation failure, got %+v", errBody)
			}
			if len(errBody.Errors) != 1 || errBody.Errors[0].Field != "name" || errBody.Errors[0].Message != "must be at most 20 characters" {
				t.Errorf("field errors = %+v", errBody.Errors)
			}

			if _, errBody = call(t, "DeleteEmployee", DeleteEmployee{ID: "e-1"}, ""); errBody == nil || errBody.Code != behavior.OutcomeUnauthenticated {
				t.Errorf("anonymous delete = %+v", errBody)
			}
			if _, errBody = call(t, "DeleteEmployee", DeleteEmployee{ID: "e-1"}, "dev"); errBody == nil || errBody.Code != behavior.OutcomeForbidden {
				t.Errorf("developer delete = %+v", errBody)
			}
			// authorization runs before validation
			if _, errBody = call(t, "DeleteEmployee", DeleteEmployee{}, "dev"); errBody == nil || errBody.Code != behavior.OutcomeForbidden {
				t.Errorf("invalid developer delete = %+v", errBody)
			}
			if emp, errBody = call(t, "DeleteEmployee", DeleteEmployee{ID: "e-1"}, "root"); errBody != nil || emp.ID != "e-1" {
				t.Errorf("admin delete = %+v, %+v", emp, errBody)
			}
			if _, errBody = call(t, "FireEveryone", struct{}{}, "root"); errBody == nil || errBody.Code != transport.CodeNotFound {
				t.Errorf("unknown request = %+v", errBody)
			}
		})
	}

	requests := s.metrics.Requests
	for outcome, want := range map[string]float64{
		behavior.OutcomeSuccess:          3,
		behavior.OutcomeValidationFailed: 3,
	} {
		if got := promtest.ToFloat64(requests.WithLabelValues("CreateEmployee", outcome)); got != want {
			t.Errorf("CreateEmployee %s = %v, want %v", outcome, got, want)
		}
	}
	if got := promtest.ToFloat64(requests.WithLabelValues("DeleteEmployee", behavior.OutcomeForbidden)); got != 6 {
		t.Errorf("DeleteEmployee forbidden = %v, want 6", got)
	}

	if got := len(s.logger.Messages("warn")); got == 0 {
		t.Error("expected validation and authorization warnings")
	}

	conn.Close()
	if err := stream.Close(); err != nil {
		t.Errorf("close stdio client: %v", err)
	}
	if err := <-stdioDone; err != nil {
		t.Errorf("stdio Serve() = %v", err)
	}

	cancel()
	select {
	case err := <-served:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	_ = httpTransport.Close()
}
