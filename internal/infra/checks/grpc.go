package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCCheck probes a service through the standard gRPC health protocol.
// The connection is established lazily and reused across checks.
type GRPCCheck struct {
	endpoint string
	service  string // health check service name, "" for the server itself
	conn     *grpc.ClientConn
}

// NewGRPCCheck creates a checker for the given endpoint. An https:// scheme
// or a :443 port selects TLS; otherwise the connection is plaintext.
func NewGRPCCheck(endpoint, service string) (*GRPCCheck, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc endpoint %s: %w", target, err)
	}

	return &GRPCCheck{endpoint: endpoint, service: service, conn: conn}, nil
}

// CheckHealth implements domain.HealthChecker.
func (c *GRPCCheck) CheckHealth(ctx context.Context) error {
	client := healthpb.NewHealthClient(c.conn)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
	if err != nil {
		return fmt.Errorf("grpc health check failed: %w", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc service not serving, status: %s", resp.Status)
	}
	return nil
}

// Close releases the underlying connection.
func (c *GRPCCheck) Close() error {
	return c.conn.Close()
}
