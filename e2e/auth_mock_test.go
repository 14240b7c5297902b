//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultBillingCallerAPIKey   = "billing-caller-key"
	defaultBillingNoAccessAPIKey = "billing-no-access-key"
	defaultBillingAppAPIKey      = "billing-app-api-key"
	defaultBillingAuthMockAddr   = "0.0.0.0:38085"

	operatorServiceName = "billing-operator"
	billingAccessName   = "billing-service"
)

// billingAuth is the auth service stand-in the billing service validates
// operator keys against.
var billingAuth = &billingAuthGRPCServer{}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func billingCallerAPIKey() string {
	return envOrDefault("BILLING_CALLER_API_KEY", defaultBillingCallerAPIKey)
}

func billingNoAccessAPIKey() string {
	return envOrDefault("BILLING_NO_ACCESS_API_KEY", defaultBillingNoAccessAPIKey)
}

func billingAppAPIKey() string {
	return envOrDefault("BILLING_APP_API_KEY", defaultBillingAppAPIKey)
}

type billingAuthGRPCServer struct {
	authpb.UnimplementedAuthServiceServer

	mu        sync.Mutex
	validated map[string]int
}

// access maps an operator key to the services it may call. The no-access key
// is valid but lacks billing.
func (s *billingAuthGRPCServer) access(apiKey string) ([]string, bool) {
	switch apiKey {
	case billingCallerAPIKey():
		return []string{billingAccessName, "subscriptions-service"}, true
	case billingNoAccessAPIKey():
		return []string{"subscriptions-service"}, true
	default:
		return nil, false
	}
}

func (s *billingAuthGRPCServer) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if incomingAPIKey(ctx) != billingAppAPIKey() {
		return nil, status.Error(codes.Unauthenticated, "unauthorized caller")
	}

	apiKey := strings.TrimSpace(req.GetApiKey())
	allowed, ok := s.access(apiKey)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
	s.record(apiKey)

	return &authpb.ValidateInternalAccessResponse{
		ServiceName:   operatorServiceName,
		AllowedAccess: allowed,
	}, nil
}

func (s *billingAuthGRPCServer) record(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validated == nil {
		s.validated = map[string]int{}
	}
	s.validated[apiKey]++
}

// validations reports how many times the billing service validated apiKey.
func (s *billingAuthGRPCServer) validations(apiKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated[apiKey]
}

func incomingAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func TestMain(m *testing.M) {
	for name, value := range map[string]string{
		"BILLING_CALLER_API_KEY":    defaultBillingCallerAPIKey,
		"BILLING_NO_ACCESS_API_KEY": defaultBillingNoAccessAPIKey,
		"BILLING_APP_API_KEY":       defaultBillingAppAPIKey,
	} {
		if os.Getenv(name) == "" {
			_ = os.Setenv(name, value)
		}
	}

	addr := envOrDefault("BILLING_AUTH_MOCK_ADDR", defaultBillingAuthMockAddr)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start billing auth grpc mock on %s: %v\n", addr, err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	authpb.RegisterAuthServiceServer(grpcServer, billingAuth)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	exitCode := m.Run()

	grpcServer.GracefulStop()
	_ = listener.Close()

	os.Exit(exitCode)
}
