package server_test

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/stretchr/testify/mock"
)

type mockBackend struct {
	mock.Mock
}

var _ backend.Backend = (*mockBackend)(nil)

func verdictOf(args mock.Arguments) *backend.Verdict {
	v, _ := args.Get(0).(*backend.Verdict)
	return v
}

func bytesOf(args mock.Arguments) []byte {
	b, _ := args.Get(0).([]byte)
	return b
}

func (m *mockBackend) Authorize(_ context.Context, params url.Values) (*backend.Verdict, error) {
	args := m.Called(params)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) Issue(_ context.Context, req backend.IssueRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) Fail(_ context.Context, req backend.FailRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) Token(_ context.Context, req backend.TokenRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) Introspect(_ context.Context, params url.Values) (*backend.Verdict, error) {
	args := m.Called(params)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) Revoke(_ context.Context, req backend.RevocationRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) PushAuthorizationRequest(_ context.Context, req backend.PushedAuthorizationRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) RegisterClient(_ context.Context, metadata []byte) (*backend.Verdict, error) {
	args := m.Called(metadata)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) GrantManagement(_ context.Context, req backend.GrantManagementRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) UserInfo(_ context.Context, accessToken string) (*backend.Verdict, error) {
	args := m.Called(accessToken)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) UserInfoIssue(_ context.Context, req backend.UserInfoIssueRequest) (*backend.Verdict, error) {
	args := m.Called(req)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) FederationConfiguration(_ context.Context) (*backend.Verdict, error) {
	args := m.Called()
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) FederationRegistration(_ context.Context, entityConfiguration string) (*backend.Verdict, error) {
	args := m.Called(entityConfiguration)
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) CredentialIssuerMetadata(_ context.Context) (*backend.Verdict, error) {
	args := m.Called()
	return verdictOf(args), args.Error(1)
}

func (m *mockBackend) ServiceConfiguration(_ context.Context) ([]byte, error) {
	args := m.Called()
	return bytesOf(args), args.Error(1)
}

func (m *mockBackend) ServiceJWKS(_ context.Context) ([]byte, error) {
	args := m.Called()
	return bytesOf(args), args.Error(1)
}
