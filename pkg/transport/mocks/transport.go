// Package mocks provides testify mocks of the transport interfaces.
package mocks

import (
	"context"

	"github.com/softap-protocol/softap-go/pkg/transport"
	"github.com/softap-protocol/softap-go/pkg/wire"
	"github.com/stretchr/testify/mock"
)

// MockTransport mocks the transport.Transport interface.
type MockTransport struct {
	mock.Mock
}

// NewMockTransport creates a MockTransport whose expectations are asserted
// when the test ends.
func NewMockTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTransport {
	m := &MockTransport{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send mocks the Send method. Expectations match on the command name via
// CommandNamed, or on the full command.
func (m *MockTransport) Send(ctx context.Context, cmd wire.Command) (*wire.Response, error) {
	args := m.Called(ctx, cmd)
	var resp *wire.Response
	if r := args.Get(0); r != nil {
		resp = r.(*wire.Response)
	}
	return resp, args.Error(1)
}

// Kind mocks the Kind method.
func (m *MockTransport) Kind() transport.Kind {
	args := m.Called()
	return args.Get(0).(transport.Kind)
}

// CommandNamed matches a wire.Command argument by name.
func CommandNamed(name string) any {
	return mock.MatchedBy(func(cmd wire.Command) bool {
		return cmd.Name() == name
	})
}

// Response decodes a JSON literal into a wire.Response, panicking on error.
func Response(jsonText string) *wire.Response {
	resp, err := wire.Decode([]byte(jsonText))
	if err != nil {
		panic(err)
	}
	return resp
}

var _ transport.Transport = (*MockTransport)(nil)
