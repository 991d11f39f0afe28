package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	AuthServiceName    = "tithe.v1.AuthService"
	SessionServiceName = "tithe.v1.SessionService"
)

// Procedure paths.
const (
	AuthServiceRegisterProcedure       = "/tithe.v1.AuthService/Register"
	AuthServiceLoginProcedure          = "/tithe.v1.AuthService/Login"
	AuthServiceGetCurrentUserProcedure = "/tithe.v1.AuthService/GetCurrentUser"

	SessionServiceCalculateProcedure        = "/tithe.v1.SessionService/Calculate"
	SessionServiceListSessionsProcedure     = "/tithe.v1.SessionService/ListSessions"
	SessionServiceGetSessionProcedure       = "/tithe.v1.SessionService/GetSession"
	SessionServiceSaveSessionProcedure      = "/tithe.v1.SessionService/SaveSession"
	SessionServiceDeleteSessionProcedure    = "/tithe.v1.SessionService/DeleteSession"
	SessionServiceListBucketsProcedure      = "/tithe.v1.SessionService/ListBuckets"
	SessionServiceRemoveAttachmentProcedure = "/tithe.v1.SessionService/RemoveAttachment"
)

// PublicProcedures can be called without a token.
var PublicProcedures = []string{
	AuthServiceRegisterProcedure,
	AuthServiceLoginProcedure,
	SessionServiceCalculateProcedure,
}

// ─── AuthService ────────────────────────────────────────────────────────────

type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewAuthServiceHandler returns the mount path and handler for svc.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

type AuthServiceClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withJSONClient(opts)
	return &AuthServiceClient{
		register:       connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

// ─── SessionService ─────────────────────────────────────────────────────────

type SessionServiceHandler interface {
	Calculate(context.Context, *connect.Request[CalculateRequest]) (*connect.Response[CalculateResponse], error)
	ListSessions(context.Context, *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error)
	GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error)
	SaveSession(context.Context, *connect.Request[SaveSessionRequest]) (*connect.Response[SaveSessionResponse], error)
	DeleteSession(context.Context, *connect.Request[DeleteSessionRequest]) (*connect.Response[DeleteSessionResponse], error)
	ListBuckets(context.Context, *connect.Request[ListBucketsRequest]) (*connect.Response[ListBucketsResponse], error)
	RemoveAttachment(context.Context, *connect.Request[RemoveAttachmentRequest]) (*connect.Response[RemoveAttachmentResponse], error)
}

// NewSessionServiceHandler returns the mount path and handler for svc.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(SessionServiceCalculateProcedure, connect.NewUnaryHandler(SessionServiceCalculateProcedure, svc.Calculate, opts...))
	mux.Handle(SessionServiceListSessionsProcedure, connect.NewUnaryHandler(SessionServiceListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(SessionServiceGetSessionProcedure, connect.NewUnaryHandler(SessionServiceGetSessionProcedure, svc.GetSession, opts...))
	mux.Handle(SessionServiceSaveSessionProcedure, connect.NewUnaryHandler(SessionServiceSaveSessionProcedure, svc.SaveSession, opts...))
	mux.Handle(SessionServiceDeleteSessionProcedure, connect.NewUnaryHandler(SessionServiceDeleteSessionProcedure, svc.DeleteSession, opts...))
	mux.Handle(SessionServiceListBucketsProcedure, connect.NewUnaryHandler(SessionServiceListBucketsProcedure, svc.ListBuckets, opts...))
	mux.Handle(SessionServiceRemoveAttachmentProcedure, connect.NewUnaryHandler(SessionServiceRemoveAttachmentProcedure, svc.RemoveAttachment, opts...))
	return "/" + SessionServiceName + "/", mux
}

type SessionServiceClient struct {
	calculate        *connect.Client[CalculateRequest, CalculateResponse]
	listSessions     *connect.Client[ListSessionsRequest, ListSessionsResponse]
	getSession       *connect.Client[GetSessionRequest, GetSessionResponse]
	saveSession      *connect.Client[SaveSessionRequest, SaveSessionResponse]
	deleteSession    *connect.Client[DeleteSessionRequest, DeleteSessionResponse]
	listBuckets      *connect.Client[ListBucketsRequest, ListBucketsResponse]
	removeAttachment *connect.Client[RemoveAttachmentRequest, RemoveAttachmentResponse]
}

func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withJSONClient(opts)
	return &SessionServiceClient{
		calculate:        connect.NewClient[CalculateRequest, CalculateResponse](httpClient, baseURL+SessionServiceCalculateProcedure, opts...),
		listSessions:     connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+SessionServiceListSessionsProcedure, opts...),
		getSession:       connect.NewClient[GetSessionRequest, GetSessionResponse](httpClient, baseURL+SessionServiceGetSessionProcedure, opts...),
		saveSession:      connect.NewClient[SaveSessionRequest, SaveSessionResponse](httpClient, baseURL+SessionServiceSaveSessionProcedure, opts...),
		deleteSession:    connect.NewClient[DeleteSessionRequest, DeleteSessionResponse](httpClient, baseURL+SessionServiceDeleteSessionProcedure, opts...),
		listBuckets:      connect.NewClient[ListBucketsRequest, ListBucketsResponse](httpClient, baseURL+SessionServiceListBucketsProcedure, opts...),
		removeAttachment: connect.NewClient[RemoveAttachmentRequest, RemoveAttachmentResponse](httpClient, baseURL+SessionServiceRemoveAttachmentProcedure, opts...),
	}
}

func (c *SessionServiceClient) Calculate(ctx context.Context, req *connect.Request[CalculateRequest]) (*connect.Response[CalculateResponse], error) {
	return c.calculate.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) SaveSession(ctx context.Context, req *connect.Request[SaveSessionRequest]) (*connect.Response[SaveSessionResponse], error) {
	return c.saveSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) DeleteSession(ctx context.Context, req *connect.Request[DeleteSessionRequest]) (*connect.Response[DeleteSessionResponse], error) {
	return c.deleteSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListBuckets(ctx context.Context, req *connect.Request[ListBucketsRequest]) (*connect.Response[ListBucketsResponse], error) {
	return c.listBuckets.CallUnary(ctx, req)
}

func (c *SessionServiceClient) RemoveAttachment(ctx context.Context, req *connect.Request[RemoveAttachmentRequest]) (*connect.Response[RemoveAttachmentResponse], error) {
	return c.removeAttachment.CallUnary(ctx, req)
}

func withJSON(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
}

func withJSONClient(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
}
