package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOrchestrator records dispatched commands and serves a canned reply.
type stubOrchestrator struct {
	cmds []model.Command
	note model.Notification
	err  error
}

func (s *stubOrchestrator) Dispatch(ctx context.Context, cmd model.Command) (model.Notification, error) {
	s.cmds = append(s.cmds, cmd)
	return s.note, s.err
}

func postCommand(t *testing.T, orch *stubOrchestrator, body string) *httptest.ResponseRecorder {
	t.Helper()
	server := newIntakeServer(":0", orch, slog.Default())
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	server.router().ServeHTTP(recorder, request)
	return recorder
}

// TestIntake_BindsSnakeCaseFields verifies the chat layer's snake_case JSON
// keys land on the command struct.
func TestIntake_BindsSnakeCaseFields(t *testing.T) {
	orch := &stubOrchestrator{note: model.Notification{Message: "ok"}}

	recorder := postCommand(t, orch, `{
		"action": "launch",
		"actor": "jane.doe",
		"public_key": "ssh-ed25519 AAAA",
		"ami_key": "ubuntu",
		"instance_type": "t3.micro",
		"mount": "ebs",
		"startup_script": "echo hi",
		"instance_id": "i-1",
		"size_gib": 100,
		"confirmed": true
	}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, orch.cmds, 1)
	cmd := orch.cmds[0]
	assert.Equal(t, model.ActionLaunch, cmd.Action)
	assert.Equal(t, model.User("jane.doe"), cmd.Actor)
	assert.Equal(t, "ssh-ed25519 AAAA", cmd.PublicKey)
	assert.Equal(t, "ubuntu", cmd.AMIKey)
	assert.Equal(t, "t3.micro", cmd.InstanceType)
	assert.Equal(t, model.MountEBS, cmd.Mount)
	assert.Equal(t, "echo hi", cmd.StartupScript)
	assert.Equal(t, "i-1", cmd.InstanceID)
	assert.Equal(t, int32(100), cmd.SizeGiB)
	assert.True(t, cmd.Confirmed)
	assert.Contains(t, recorder.Body.String(), "ok")
}

func TestIntake_RejectsMissingActor(t *testing.T) {
	orch := &stubOrchestrator{}

	recorder := postCommand(t, orch, `{"action": "status"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, orch.cmds)
}

// TestIntake_ErrorStatusMapping verifies each error class maps to its HTTP
// status so the front end never parses error strings.
func TestIntake_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: instance i-1", model.ErrNotFound), http.StatusNotFound},
		{"invalid transition", fmt.Errorf("%w: instance i-1 is stopping", model.ErrInvalidTransition), http.StatusConflict},
		{"resource conflict", fmt.Errorf("%w: volume vol-1 already exists", model.ErrResourceConflict), http.StatusConflict},
		{"policy violation", fmt.Errorf("%w: max size is 500", model.ErrPolicyViolation), http.StatusUnprocessableEntity},
		{"no key pair", fmt.Errorf("%w: upload your public key first", model.ErrNoKeyPair), http.StatusUnprocessableEntity},
		{"degraded", fmt.Errorf("%w: volume vol-1", model.ErrDegraded), http.StatusServiceUnavailable},
		{"transient cloud", &model.CloudError{Op: "StopInstances", Code: "Throttling", Transient: true, Err: fmt.Errorf("slow down")}, http.StatusServiceUnavailable},
		{"unclassified", fmt.Errorf("unexpected response shape"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orch := &stubOrchestrator{err: tc.err}

			recorder := postCommand(t, orch, `{"action": "stop", "actor": "alice", "instance_id": "i-1"}`)

			assert.Equal(t, tc.want, recorder.Code)
		})
	}
}
